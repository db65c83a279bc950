// Package mcast provides a broadcast medium over IPv4 UDP multicast.
//
// Every advertisement is re-sent at a fixed interval for its whole duration,
// or until it is cancelled, the way a radio advertiser repeats its packets.
// Every datagram received on the group is published on the Frames channel.
package mcast

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-advmesh/internal/pool"
	"github.com/arloliu/go-advmesh/internal/task"
	"github.com/arloliu/go-advmesh/logger"
	"github.com/arloliu/go-advmesh/mesh"
)

// ErrClosed is returned when the medium is already closed.
var ErrClosed = errors.New("mcast: medium closed")

// readBufferSize leaves room to notice oversized datagrams.
const readBufferSize = 2 * mesh.MaxFrameSize

// adKey identifies an active advertisement.
type adKey struct {
	source      uint16
	destination uint16
	seq         uint8
	msgType     mesh.MessageType
}

// repeater re-sends one advertisement until it expires or is stopped.
type repeater struct {
	data     []byte
	deadline time.Time
	stop     chan struct{}
	once     sync.Once
}

func (r *repeater) cancel() {
	r.once.Do(func() { close(r.stop) })
}

// Medium is a multicast broadcast medium. It is goroutine-safe.
type Medium struct {
	cfg    *Config
	conn   net.PacketConn
	logger logger.Logger

	frames  chan []byte
	active  *xsync.MapOf[adKey, *repeater]
	taskMgr *task.Manager
	closed  atomic.Bool

	sentCount    atomic.Uint64
	recvCount    atomic.Uint64
	droppedCount atomic.Uint64
}

// NewMedium joins the multicast group of cfg and starts receiving frames.
func NewMedium(ctx context.Context, cfg *Config) (*Medium, error) {
	conn, err := listen(ctx, cfg.groupAddr)
	if err != nil {
		return nil, err
	}

	return newMedium(ctx, cfg, conn), nil
}

func newMedium(ctx context.Context, cfg *Config, conn net.PacketConn) *Medium {
	m := &Medium{
		cfg:     cfg,
		conn:    conn,
		logger:  cfg.logger.With("group", cfg.groupAddr.String()),
		frames:  make(chan []byte, cfg.frameBuffer),
		active:  xsync.NewMapOf[adKey, *repeater](),
		taskMgr: task.NewManager(ctx, cfg.logger),
	}

	if err := m.taskMgr.StartLoop("mcast-receiver", m.receiveLoop); err != nil {
		m.logger.Error("mcast: failed to start receiver", "error", err)
	}

	return m
}

// Frames returns the channel of received datagrams. It is closed by Close.
func (m *Medium) Frames() <-chan []byte { return m.frames }

// ActiveCount returns the number of advertisements being repeated.
func (m *Medium) ActiveCount() int { return m.active.Size() }

// SentCount returns the number of datagrams written.
func (m *Medium) SentCount() uint64 { return m.sentCount.Load() }

// RecvCount returns the number of datagrams received.
func (m *Medium) RecvCount() uint64 { return m.recvCount.Load() }

// DroppedCount returns the number of datagrams dropped because the frame
// channel was full.
func (m *Medium) DroppedCount() uint64 { return m.droppedCount.Load() }

// Advertise repeats a copy of data on the group for duration. A new
// advertisement of the same frame identity replaces the previous one.
func (m *Medium) Advertise(data []byte, duration time.Duration) {
	if m.closed.Load() {
		return
	}

	r := &repeater{
		data:     slices.Clone(data),
		deadline: time.Now().Add(duration),
		stop:     make(chan struct{}),
	}

	frame, err := mesh.ParseFrame(r.data)
	if err != nil {
		// not a mesh frame, nothing can cancel it: send it once
		m.write(r.data)
		return
	}

	key := adKey{
		source:      frame.Source,
		destination: frame.Destination,
		seq:         frame.SequenceID,
		msgType:     frame.Type,
	}

	if prev, loaded := m.active.LoadAndStore(key, r); loaded {
		prev.cancel()
	}

	if err := m.taskMgr.Start("mcast-repeater", m.repeatFunc(key, r)); err != nil {
		m.release(key, r)
		m.logger.Debug("mcast: advertisement not started", "error", err)
	}
}

// CancelAdvertisement stops repeating every active advertisement carrying
// (source, seq).
func (m *Medium) CancelAdvertisement(source uint16, seq uint8) {
	m.active.Range(func(key adKey, r *repeater) bool {
		if key.source == source && key.seq == seq {
			r.cancel()
			m.release(key, r)
		}

		return true
	})
}

// Close stops every advertisement, leaves the group and closes the frame
// channel.
func (m *Medium) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	m.taskMgr.Stop()
	err := m.conn.Close()
	m.taskMgr.Wait()

	m.active.Clear()
	close(m.frames)

	m.logger.Debug("mcast: medium closed", "sent", m.SentCount(), "received", m.RecvCount())

	return err
}

// repeatFunc returns a task that sends r once per repeat interval until its
// deadline.
func (m *Medium) repeatFunc(key adKey, r *repeater) task.Func {
	return func() bool {
		ctx := m.taskMgr.Context()

		for {
			m.write(r.data)

			wait := min(m.cfg.repeatInterval, time.Until(r.deadline))
			if wait <= 0 || !pool.Wait(ctx, wait, r.stop) || !time.Now().Before(r.deadline) {
				break
			}
		}

		m.release(key, r)

		return false
	}
}

// release removes key from the active advertisements if it still maps to r.
func (m *Medium) release(key adKey, r *repeater) {
	m.active.Compute(key, func(cur *repeater, loaded bool) (*repeater, bool) {
		return cur, !loaded || cur == r
	})
}

func (m *Medium) write(data []byte) {
	if _, err := m.conn.WriteTo(data, m.cfg.groupAddr); err != nil {
		if !m.closed.Load() {
			m.logger.Warn("mcast: write failed", "error", err)
		}

		return
	}

	m.sentCount.Add(1)
}

func (m *Medium) receiveLoop(ctx context.Context) {
	buf := make([]byte, readBufferSize)

	for {
		n, from, err := m.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || m.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			m.logger.Warn("mcast: read failed", "error", err)

			continue
		}

		m.recvCount.Add(1)

		select {
		case m.frames <- slices.Clone(buf[:n]):
		default:
			m.droppedCount.Add(1)
			m.logger.Warn("mcast: frame channel full, datagram dropped", "from", from, "size", n)
		}
	}
}
