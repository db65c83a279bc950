package mesh

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-advmesh/logger"
)

// Transport is the mesh transport façade. It composes the frame codec, the
// address filter, the duplicate suppression cache, the pending-acknowledgment
// manager and the group membership table.
//
// Transport is NOT goroutine-safe. The host must serialize every call,
// including ProcessIncoming and PeriodicTask.
type Transport struct {
	cfg    *Config
	host   Host
	logger logger.Logger

	filter  addressFilter
	groups  *groupTable
	dedup   *dedupCache
	pending *pendingAckManager
	seqGen  seqGenerator

	// txBuf holds the frame being handed to the advertiser.
	txBuf [MaxFrameSize]byte

	closed  bool
	metrics TransportMetrics
}

// NewTransport initializes a transport with the given configuration and host.
//
// Every table is allocated here and never grows afterwards. The transport
// must be released with Close.
func NewTransport(cfg *Config, host Host) (*Transport, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if host == nil {
		return nil, ErrHostNil
	}

	t := &Transport{
		cfg:    cfg,
		host:   host,
		logger: cfg.logger.With("networkID", cfg.networkID, "deviceID", cfg.deviceID),
		groups: newGroupTable(cfg.groupCapacity),
		dedup:  newDedupCache(cfg.dedupCapacity, cfg.dedupWindow),
		seqGen: newSeqGenerator(host),
	}

	t.filter = addressFilter{
		networkID: cfg.networkID,
		deviceID:  cfg.deviceID,
		groups:    t.groups,
	}
	t.pending = newPendingAckManager(cfg, host, &t.metrics)
	t.pending.logger = t.logger

	t.logger.Debug("mesh: transport initialized",
		"pendingCapacity", cfg.pendingCapacity,
		"dedupCapacity", cfg.dedupCapacity,
		"groupCapacity", cfg.groupCapacity,
	)

	return t, nil
}

// Config returns the transport configuration.
func (t *Transport) Config() *Config { return t.cfg }

// Metrics returns the transport metrics.
func (t *Transport) Metrics() *TransportMetrics { return &t.metrics }

// PendingCount returns the number of reliable sends waiting for acknowledgment.
func (t *Transport) PendingCount() int { return t.pending.len() }

// IsPending reports whether the reliable send (destination, seq) is still waiting
// for acknowledgment.
func (t *Transport) IsPending(destination uint16, seq uint8) bool {
	return t.pending.find(destination, seq) >= 0
}

// IsMember reports whether the device belongs to group.
func (t *Transport) IsMember(group uint16) bool { return t.groups.contains(group) }

// --- Inbound ---

// ProcessIncoming handles a frame heard on the medium.
//
// Malformed frames and frames rejected by the address filter are dropped
// silently. Novel data frames are delivered to the host; Stateful frames are
// acknowledged on every observation, since the sender may have missed an
// earlier acknowledgment.
func (t *Transport) ProcessIncoming(data []byte) {
	if t.closed {
		return
	}

	t.metrics.incFrameRecvCount()

	frame, err := ParseFrame(data)
	if err != nil {
		t.metrics.incFrameMalformedCount()
		t.logger.Debug("mesh: malformed frame discarded", "size", len(data), "error", err)

		return
	}

	if err := t.filter.check(&frame.Header); err != nil {
		t.metrics.incFrameFilteredCount()
		if !errors.Is(err, ErrForeignNetwork) {
			t.logger.Debug("mesh: frame filtered",
				"type", frame.Type,
				"source", frame.Source,
				"destination", frame.Destination,
				"error", err,
			)
		}

		return
	}

	switch frame.Type {
	case StatefulAck:
		t.handleAck(&frame)

	case Stateful:
		t.handleData(&frame)
		if !t.closed {
			t.sendAck(&frame)
		}

	case Broadcast, GroupBroadcast, Stateless:
		t.handleData(&frame)
	}
}

func (t *Transport) handleData(frame *Frame) {
	now := t.host.Now()

	if t.dedup.observe(frame.Source, frame.SequenceID, now) == Repeat {
		t.metrics.incDuplicateCount()
		t.logger.Debug("mesh: duplicate message suppressed",
			"type", frame.Type,
			"source", frame.Source,
			"sequenceID", frame.SequenceID,
			"timesReceived", t.dedup.timesReceived(frame.Source, frame.SequenceID),
		)

		return
	}

	t.metrics.incDeliverCount()
	t.host.Deliver(frame.Source, frame.Payload)
}

func (t *Transport) handleAck(frame *Frame) {
	if frame.Destination != t.cfg.deviceID {
		t.metrics.incFrameFilteredCount()
		return
	}

	if !t.pending.acknowledge(frame.Source, frame.SequenceID) {
		t.logger.Debug("mesh: late or duplicate acknowledgment ignored",
			"source", frame.Source,
			"sequenceID", frame.SequenceID,
		)
	}
}

func (t *Transport) sendAck(frame *Frame) {
	ack := Header{
		Type:        StatefulAck,
		Destination: frame.Source,
		SequenceID:  frame.SequenceID,
	}

	if err := t.advertise(ack, nil); err != nil {
		t.logger.Error("mesh: failed to send acknowledgment", "destination", frame.Source, "error", err)
		return
	}

	t.metrics.incAckSendCount()
}

// --- Outbound ---

// Broadcast advertises payload to every device on the network.
func (t *Transport) Broadcast(payload []byte) error {
	if t.closed {
		return ErrClosed
	}

	return t.advertise(Header{Type: Broadcast, Destination: BroadcastAddress, SequenceID: t.seqGen.genID()}, payload)
}

// BroadcastGroup advertises payload to the members of group.
func (t *Transport) BroadcastGroup(group uint16, payload []byte) error {
	if t.closed {
		return ErrClosed
	}

	if !isValidGroupID(group) {
		return fmt.Errorf("%w: 0x%04X", ErrInvalidGroup, group)
	}

	return t.advertise(Header{Type: GroupBroadcast, Destination: group, SequenceID: t.seqGen.genID()}, payload)
}

// SendStateless advertises payload to a single device without acknowledgment.
func (t *Transport) SendStateless(destination uint16, payload []byte) error {
	if t.closed {
		return ErrClosed
	}

	if err := t.checkDestination(destination); err != nil {
		return err
	}

	return t.advertise(Header{Type: Stateless, Destination: destination, SequenceID: t.seqGen.genID()}, payload)
}

// SendStateful sends payload reliably to destination and returns the
// sequence identifier assigned to it.
//
// The frame is re-advertised every retry interval until the destination
// acknowledges it or the retry limit is reached. ErrTableFull is returned,
// and nothing is sent, when the pending table is full.
func (t *Transport) SendStateful(destination uint16, payload []byte) (uint8, error) {
	if t.closed {
		return 0, ErrClosed
	}

	if err := t.checkDestination(destination); err != nil {
		return 0, err
	}

	if len(payload) > MaxPayloadSize {
		return 0, fmt.Errorf("%w: got %d bytes", ErrPayloadTooLarge, len(payload))
	}

	if t.pending.full() {
		return 0, ErrTableFull
	}

	seq, ok := t.seqGen.genUnusedID(t.pending.inUse)
	if !ok {
		return 0, ErrTableFull
	}

	frame := Frame{
		Header: Header{
			NetworkID:   t.cfg.networkID,
			Source:      t.cfg.deviceID,
			Destination: destination,
			SequenceID:  seq,
			Type:        Stateful,
		},
		Payload: payload,
	}

	n, err := frame.MarshalTo(t.txBuf[:])
	if err != nil {
		return 0, err
	}

	if err := t.pending.enqueue(destination, seq, t.txBuf[:n], t.host.Now()); err != nil {
		return 0, err
	}

	return seq, nil
}

// advertise encodes a frame originated by this device and hands it to the host.
func (t *Transport) advertise(h Header, payload []byte) error {
	h.NetworkID = t.cfg.networkID
	h.Source = t.cfg.deviceID

	frame := Frame{Header: h, Payload: payload}

	n, err := frame.MarshalTo(t.txBuf[:])
	if err != nil {
		return err
	}

	t.host.Advertise(t.txBuf[:n], t.cfg.advertiseDuration)
	t.metrics.incFrameSendCount()

	return nil
}

func (t *Transport) checkDestination(destination uint16) error {
	if destination == BroadcastAddress || destination == t.cfg.deviceID {
		return fmt.Errorf("%w: 0x%04X", ErrInvalidDestination, destination)
	}

	return nil
}

// --- Groups ---

// JoinGroup adds the device to group. Joining a group twice is a no-op.
//
// Returns ErrInvalidGroup for reserved identifiers and ErrTableFull when the
// group table has no free slot.
func (t *Transport) JoinGroup(group uint16) error {
	if t.closed {
		return ErrClosed
	}

	if err := t.groups.join(group); err != nil {
		t.logger.Warn("mesh: join group failed", "group", group, "error", err)
		return err
	}

	return nil
}

// LeaveGroup removes the device from group. Returns ErrNotMember if the
// device does not belong to group.
func (t *Transport) LeaveGroup(group uint16) error {
	if t.closed {
		return ErrClosed
	}

	return t.groups.leave(group)
}

// --- Scheduler ---

// PeriodicTask retransmits or abandons due reliable sends and purges stale
// entries from the duplicate suppression cache. The host must call it at a
// regular cadence, well below the retry interval.
func (t *Transport) PeriodicTask() {
	if t.closed {
		return
	}

	now := t.host.Now()

	t.pending.tick(now)

	if n := t.dedup.purge(now); n > 0 {
		t.logger.Debug("mesh: stale dedup entries purged", "count", n)
	}
}

// Close releases the transport and clears every table. Pending reliable sends
// are dropped without notification.
func (t *Transport) Close() error {
	if t.closed {
		return ErrClosed
	}

	t.closed = true
	t.pending.reset()
	t.dedup.reset()
	t.groups.reset()

	t.logger.Debug("mesh: transport closed")

	return nil
}
