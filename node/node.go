// Package node hosts a mesh.Transport in a Go program.
//
// The transport is not goroutine-safe, so a Node owns it from a single
// dispatcher goroutine. Inbound frames, application requests and the
// periodic tick are serialized through that goroutine. Delivered messages
// are handed to the application on another goroutine, so a handler may call
// back into the Node.
package node

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-advmesh/internal/task"
	"github.com/arloliu/go-advmesh/logger"
	"github.com/arloliu/go-advmesh/mesh"
)

var (
	// ErrClosed is returned by operations on a closed Node.
	ErrClosed = errors.New("node: closed")
	// ErrMediumNil is returned when NewNode is called without a medium.
	ErrMediumNil = errors.New("node: medium is nil")
	// ErrRequestTimeout is returned when the dispatcher does not serve a
	// request in time.
	ErrRequestTimeout = errors.New("node: request timeout")
)

// Medium is the lower layer a Node advertises on and hears frames from.
type Medium interface {
	mesh.Advertiser
	// Frames returns the channel of frames heard on the medium.
	Frames() <-chan []byte
	// Close releases the medium.
	Close() error
}

// Message is an application message delivered to the node.
type Message struct {
	Source  uint16
	Payload []byte
}

// Handler processes a delivered message.
type Handler func(msg Message)

// request is a transport operation executed by the dispatcher.
//
// When replyChan is non-nil the dispatcher sends the result on it.
type request struct {
	op        func(t *mesh.Transport) (int, error)
	replyChan chan reply
}

type reply struct {
	value int
	err   error
}

// Node runs a mesh transport over a Medium.
type Node struct {
	cfg       *mesh.Config
	opts      options
	medium    Medium
	transport *mesh.Transport
	logger    logger.Logger

	requests   chan *request
	deliveries chan Message
	taskMgr    *task.Manager
	closed     atomic.Bool

	droppedCount atomic.Uint64
}

// NewNode creates a node for cfg over medium and starts its dispatcher.
// The node stops when ctx is cancelled or Close is called.
func NewNode(ctx context.Context, cfg *mesh.Config, medium Medium, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, mesh.ErrConfigNil
	}
	if medium == nil {
		return nil, ErrMediumNil
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt.apply(&o); err != nil {
			return nil, err
		}
	}

	n := &Node{
		cfg:        cfg,
		opts:       o,
		medium:     medium,
		logger:     cfg.GetLogger().With("networkID", cfg.NetworkID(), "deviceID", cfg.DeviceID()),
		requests:   make(chan *request),
		deliveries: make(chan Message, o.deliveryBuffer),
	}

	transport, err := mesh.NewTransport(cfg, &host{node: n})
	if err != nil {
		return nil, err
	}
	n.transport = transport

	n.taskMgr = task.NewManager(ctx, cfg.GetLogger())

	if err := n.taskMgr.StartLoop("node-dispatcher", n.dispatch); err != nil {
		return nil, err
	}

	if err := n.taskMgr.StartInterval("node-tick", n.tick, o.tickInterval); err != nil {
		n.taskMgr.Stop()
		return nil, err
	}

	if o.handler != nil {
		if err := n.taskMgr.StartLoop("node-delivery", n.deliverLoop); err != nil {
			n.taskMgr.Stop()
			return nil, err
		}
	}

	n.logger.Info("node: started", "tickInterval", o.tickInterval)

	return n, nil
}

// Config returns the transport configuration.
func (n *Node) Config() *mesh.Config { return n.cfg }

// Metrics returns the transport metrics.
func (n *Node) Metrics() *mesh.TransportMetrics { return n.transport.Metrics() }

// Messages returns the channel of delivered messages when no handler is set.
func (n *Node) Messages() <-chan Message { return n.deliveries }

// DroppedCount returns the number of delivered messages dropped because the
// delivery buffer was full.
func (n *Node) DroppedCount() uint64 { return n.droppedCount.Load() }

// Broadcast sends payload to every device on the network.
func (n *Node) Broadcast(ctx context.Context, payload []byte) error {
	payload = slices.Clone(payload)
	_, err := n.do(ctx, func(t *mesh.Transport) (int, error) {
		return 0, t.Broadcast(payload)
	})

	return err
}

// BroadcastGroup sends payload to the members of group.
func (n *Node) BroadcastGroup(ctx context.Context, group uint16, payload []byte) error {
	payload = slices.Clone(payload)
	_, err := n.do(ctx, func(t *mesh.Transport) (int, error) {
		return 0, t.BroadcastGroup(group, payload)
	})

	return err
}

// SendStateless sends payload to destination without acknowledgment.
func (n *Node) SendStateless(ctx context.Context, destination uint16, payload []byte) error {
	payload = slices.Clone(payload)
	_, err := n.do(ctx, func(t *mesh.Transport) (int, error) {
		return 0, t.SendStateless(destination, payload)
	})

	return err
}

// SendStateful sends payload reliably to destination and returns the
// sequence identifier assigned to it. It returns once the message is
// queued, not when it is acknowledged.
func (n *Node) SendStateful(ctx context.Context, destination uint16, payload []byte) (uint8, error) {
	payload = slices.Clone(payload)
	seq, err := n.do(ctx, func(t *mesh.Transport) (int, error) {
		seq, err := t.SendStateful(destination, payload)
		return int(seq), err
	})

	return uint8(seq), err //nolint:gosec // sequence ids fit in uint8
}

// IsPending reports whether the reliable send (destination, seq) still
// waits for its acknowledgment.
func (n *Node) IsPending(ctx context.Context, destination uint16, seq uint8) (bool, error) {
	v, err := n.do(ctx, func(t *mesh.Transport) (int, error) {
		if t.IsPending(destination, seq) {
			return 1, nil
		}

		return 0, nil
	})

	return v == 1, err
}

// PendingCount returns the number of reliable sends waiting for acknowledgment.
func (n *Node) PendingCount(ctx context.Context) (int, error) {
	return n.do(ctx, func(t *mesh.Transport) (int, error) {
		return t.PendingCount(), nil
	})
}

// JoinGroup adds the device to group.
func (n *Node) JoinGroup(ctx context.Context, group uint16) error {
	_, err := n.do(ctx, func(t *mesh.Transport) (int, error) {
		return 0, t.JoinGroup(group)
	})

	return err
}

// LeaveGroup removes the device from group.
func (n *Node) LeaveGroup(ctx context.Context, group uint16) error {
	_, err := n.do(ctx, func(t *mesh.Transport) (int, error) {
		return 0, t.LeaveGroup(group)
	})

	return err
}

// Close stops the dispatcher, closes the transport and the medium.
func (n *Node) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	n.taskMgr.Stop()
	n.taskMgr.Wait()

	// the dispatcher is gone, the transport can be used from here
	_ = n.transport.Close()
	err := n.medium.Close()

	n.logger.Info("node: closed")

	return err
}

// do runs op on the dispatcher and waits for its result.
func (n *Node) do(ctx context.Context, op func(t *mesh.Transport) (int, error)) (int, error) {
	if n.closed.Load() {
		return 0, ErrClosed
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.opts.requestTimeout)
		defer cancel()
	}

	req := &request{op: op, replyChan: make(chan reply, 1)}
	done := n.taskMgr.Context().Done()

	select {
	case <-done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, requestErr(ctx)
	case n.requests <- req:
	}

	select {
	case <-done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, requestErr(ctx)
	case r := <-req.replyChan:
		return r.value, r.err
	}
}

func requestErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrRequestTimeout
	}

	return ctx.Err()
}

// dispatch is the only goroutine touching the transport while the node runs.
func (n *Node) dispatch(ctx context.Context) {
	frames := n.medium.Frames()

	for {
		select {
		case <-ctx.Done():
			return

		case data, ok := <-frames:
			if !ok {
				n.logger.Warn("node: medium frame channel closed")
				frames = nil

				continue
			}
			n.transport.ProcessIncoming(data)

		case req := <-n.requests:
			value, err := req.op(n.transport)
			if req.replyChan != nil {
				req.replyChan <- reply{value: value, err: err}
			}
		}
	}
}

// tick queues the periodic task on the dispatcher. A tick is skipped when
// the dispatcher is busy.
func (n *Node) tick() bool {
	select {
	case n.requests <- &request{op: periodicTask}:
	default:
	}

	return true
}

func periodicTask(t *mesh.Transport) (int, error) {
	t.PeriodicTask()
	return 0, nil
}

func (n *Node) deliverLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.deliveries:
			n.opts.handler(msg)
		}
	}
}

// host adapts the Node to mesh.Host. Its methods run on the dispatcher.
type host struct {
	node *Node
}

var _ mesh.Host = (*host)(nil)

func (h *host) Advertise(data []byte, duration time.Duration) {
	h.node.medium.Advertise(data, duration)
}

func (h *host) CancelAdvertisement(source uint16, seq uint8) {
	h.node.medium.CancelAdvertisement(source, seq)
}

func (h *host) Deliver(source uint16, payload []byte) {
	msg := Message{Source: source, Payload: slices.Clone(payload)}

	select {
	case h.node.deliveries <- msg:
	default:
		h.node.droppedCount.Add(1)
		h.node.logger.Warn("node: delivery buffer full, message dropped", "source", source, "size", len(payload))
	}
}

func (h *host) Now() time.Time { return time.Now() }

func (h *host) Random() uint16 { return uint16(rand.Uint32()) } //nolint:gosec // sequence seeding and jitter only
