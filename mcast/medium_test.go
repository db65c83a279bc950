package mcast

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-advmesh/mesh"
)

// fakeConn is an in-memory net.PacketConn.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	writes [][]byte
}

var _ net.PacketConn = (*fakeConn)(nil)

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case <-c.done:
		return 0, nil, net.ErrClosed
	case data := <-c.inbound:
		return copy(p, data), &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 7777}, nil
	}
}

func (c *fakeConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	select {
	case <-c.done:
		return 0, net.ErrClosed
	default:
	}

	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	c.mu.Unlock()

	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr { return &net.UDPAddr{} }
func (c *fakeConn) SetDeadline(time.Time) error { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.writes)
}

func newTestMedium(t *testing.T, opts ...Option) (*Medium, *fakeConn) {
	t.Helper()

	opts = append([]Option{WithRepeatInterval(10 * time.Millisecond)}, opts...)
	cfg, err := NewConfig(DefaultAddress, opts...)
	require.NoError(t, err)

	conn := newFakeConn()
	m := newMedium(context.Background(), cfg, conn)
	t.Cleanup(func() { _ = m.Close() })

	return m, conn
}

func packFrame(t *testing.T, typ mesh.MessageType, source, destination uint16, seq uint8) []byte {
	t.Helper()

	data, err := (&mesh.Frame{Header: mesh.Header{
		NetworkID: 7, Source: source, Destination: destination, SequenceID: seq, Type: typ,
	}}).Pack()
	require.NoError(t, err)

	return data
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(DefaultAddress)
	require.NoError(t, err)
	assert.Equal(t, DefaultRepeatInterval, cfg.RepeatInterval())
	assert.Equal(t, DefaultFrameBuffer, cfg.FrameBuffer())
	assert.Equal(t, 7777, cfg.GroupAddr().Port)

	_, err = NewConfig("10.0.0.1:7777")
	require.Error(t, err, "unicast address")

	_, err = NewConfig("not an address")
	require.Error(t, err)

	_, err = NewConfig(DefaultAddress, WithRepeatInterval(time.Millisecond))
	require.Error(t, err)

	_, err = NewConfig(DefaultAddress, WithFrameBuffer(0))
	require.Error(t, err)

	_, err = NewConfig(DefaultAddress, WithLogger(nil))
	require.Error(t, err)
}

func TestMedium_AdvertiseRepeatsUntilExpiry(t *testing.T) {
	m, conn := newTestMedium(t)

	m.Advertise(packFrame(t, mesh.Broadcast, 1, mesh.BroadcastAddress, 3), 60*time.Millisecond)

	assert.Eventually(t, func() bool { return m.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, conn.writeCount(), 3)

	n := conn.writeCount()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, conn.writeCount(), "no write after expiry")
	assert.Equal(t, uint64(n), m.SentCount()) //nolint:gosec // test values
}

func TestMedium_AdvertiseCopiesData(t *testing.T) {
	m, conn := newTestMedium(t)

	data := packFrame(t, mesh.Broadcast, 1, mesh.BroadcastAddress, 3)
	m.Advertise(data, time.Second)
	data[0] = 0xEE

	require.Eventually(t, func() bool { return conn.writeCount() > 0 }, time.Second, time.Millisecond)

	conn.mu.Lock()
	first := conn.writes[0]
	conn.mu.Unlock()
	assert.Equal(t, byte(7), first[0])
}

func TestMedium_CancelAdvertisement(t *testing.T) {
	m, conn := newTestMedium(t)

	m.Advertise(packFrame(t, mesh.Stateful, 1, 2, 9), 10*time.Second)
	m.Advertise(packFrame(t, mesh.Stateful, 1, 2, 10), 10*time.Second)
	require.Equal(t, 2, m.ActiveCount())

	m.CancelAdvertisement(1, 9)
	assert.Equal(t, 1, m.ActiveCount())

	m.CancelAdvertisement(2, 10) // other source
	assert.Equal(t, 1, m.ActiveCount())

	m.CancelAdvertisement(1, 10)
	assert.Equal(t, 0, m.ActiveCount())

	n := conn.writeCount()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, conn.writeCount())
}

func TestMedium_ReadvertiseReplaces(t *testing.T) {
	m, _ := newTestMedium(t)

	frame := packFrame(t, mesh.Stateful, 1, 2, 9)
	m.Advertise(frame, 10*time.Second)
	m.Advertise(frame, 10*time.Second)

	assert.Equal(t, 1, m.ActiveCount())

	// an acknowledgment with the same sequence id is a distinct advertisement
	m.Advertise(packFrame(t, mesh.StatefulAck, 1, 5, 9), 10*time.Second)
	assert.Equal(t, 2, m.ActiveCount())
}

func TestMedium_NonFrameSentOnce(t *testing.T) {
	m, conn := newTestMedium(t)

	m.Advertise([]byte{1, 2, 3}, time.Second)

	assert.Equal(t, 1, conn.writeCount())
	assert.Equal(t, 0, m.ActiveCount())
}

func TestMedium_Frames(t *testing.T) {
	m, conn := newTestMedium(t)

	frame := packFrame(t, mesh.Broadcast, 2, mesh.BroadcastAddress, 1)
	conn.inbound <- frame

	select {
	case got := <-m.Frames():
		assert.Equal(t, frame, got)
	case <-time.After(time.Second):
		t.Fatal("frame not received")
	}

	assert.Equal(t, uint64(1), m.RecvCount())
}

func TestMedium_FrameBufferFull(t *testing.T) {
	m, conn := newTestMedium(t, WithFrameBuffer(1))

	for range 3 {
		conn.inbound <- packFrame(t, mesh.Broadcast, 2, mesh.BroadcastAddress, 1)
	}

	assert.Eventually(t, func() bool { return m.DroppedCount() == 2 }, time.Second, time.Millisecond)
	assert.Len(t, m.Frames(), 1)
}

func TestMedium_Close(t *testing.T) {
	m, _ := newTestMedium(t)

	m.Advertise(packFrame(t, mesh.Stateful, 1, 2, 9), 10*time.Second)

	require.NoError(t, m.Close())
	require.ErrorIs(t, m.Close(), ErrClosed)

	assert.Equal(t, 0, m.ActiveCount())

	_, ok := <-m.Frames()
	assert.False(t, ok)

	m.Advertise(packFrame(t, mesh.Stateful, 1, 2, 10), time.Second)
	assert.Equal(t, 0, m.ActiveCount())
}
