package node

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-advmesh/mesh"
)

// hub connects pipeMediums: every advertisement is heard once by every other
// attached medium.
type hub struct {
	mu      sync.Mutex
	members []*pipeMedium
	drop    func(from *pipeMedium, data []byte) bool
}

type pipeMedium struct {
	hub    *hub
	frames chan []byte

	mu      sync.Mutex
	ads     [][]byte
	cancels int
	closed  bool
}

var _ Medium = (*pipeMedium)(nil)

func (h *hub) attach() *pipeMedium {
	m := &pipeMedium{hub: h, frames: make(chan []byte, 64)}

	h.mu.Lock()
	h.members = append(h.members, m)
	h.mu.Unlock()

	return m
}

func (m *pipeMedium) Advertise(data []byte, _ time.Duration) {
	cp := slices.Clone(data)

	m.mu.Lock()
	m.ads = append(m.ads, cp)
	m.mu.Unlock()

	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()

	if m.hub.drop != nil && m.hub.drop(m, cp) {
		return
	}

	for _, peer := range m.hub.members {
		if peer == m {
			continue
		}

		peer.mu.Lock()
		if !peer.closed {
			select {
			case peer.frames <- cp:
			default:
			}
		}
		peer.mu.Unlock()
	}
}

func (m *pipeMedium) CancelAdvertisement(uint16, uint8) {
	m.mu.Lock()
	m.cancels++
	m.mu.Unlock()
}

func (m *pipeMedium) Frames() <-chan []byte { return m.frames }

func (m *pipeMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *pipeMedium) adCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.ads)
}

func (m *pipeMedium) cancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cancels
}

func newTestNode(t *testing.T, medium Medium, networkID, deviceID uint16, opts ...Option) *Node {
	t.Helper()

	cfg, err := mesh.NewConfig(networkID, deviceID,
		mesh.WithRetryInterval(100*time.Millisecond),
		mesh.WithRetryJitter(0),
	)
	require.NoError(t, err)

	opts = append([]Option{WithTickInterval(5 * time.Millisecond)}, opts...)
	n, err := NewNode(context.Background(), cfg, medium, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	return n
}

func receive(t *testing.T, n *Node) Message {
	t.Helper()

	select {
	case msg := <-n.Messages():
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return Message{}
	}
}
