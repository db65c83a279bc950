package mesh

import (
	"time"

	"github.com/arloliu/go-advmesh/logger"
)

// pendingAck is a reliable send waiting for its acknowledgment.
type pendingAck struct {
	destination uint16
	sequenceID  uint8
	length      uint8 // payload length

	frame    [MaxFrameSize]byte
	frameLen int

	enqueuedAt  time.Time
	lastSentAt  time.Time
	nextDue     time.Time
	resentCount int
	used        bool
}

// pendingAckManager owns the in-flight reliable sends: it retransmits them
// on tick, retires them on acknowledgment and abandons them once the retry
// limit is reached.
//
// This type is NOT goroutine-safe; it is driven by the Transport's single
// execution context.
type pendingAckManager struct {
	entries []pendingAck

	deviceID          uint16
	retryInterval     time.Duration
	retryJitter       time.Duration
	maxRetries        int
	advertiseDuration time.Duration

	advertiser  Advertiser
	random      RandomSource
	onExhausted RetryExhaustedHandler
	logger      logger.Logger
	metrics     *TransportMetrics
}

func newPendingAckManager(cfg *Config, host Host, metrics *TransportMetrics) *pendingAckManager {
	return &pendingAckManager{
		entries:           make([]pendingAck, cfg.pendingCapacity),
		deviceID:          cfg.deviceID,
		retryInterval:     cfg.retryInterval,
		retryJitter:       cfg.retryJitter,
		maxRetries:        cfg.maxRetries,
		advertiseDuration: cfg.advertiseDuration,
		advertiser:        host,
		random:            host,
		onExhausted:       cfg.onRetryExhausted,
		logger:            cfg.logger,
		metrics:           metrics,
	}
}

// enqueue records a reliable send, advertises it immediately and schedules
// its first retry. frame is copied.
//
// Returns ErrTableFull, without touching the table, when no slot is free.
func (m *pendingAckManager) enqueue(destination uint16, seq uint8, frame []byte, now time.Time) error {
	slot := -1
	for i := range m.entries {
		if !m.entries[i].used {
			slot = i
			break
		}
	}

	if slot < 0 {
		m.logger.Warn("mesh: pending table full, reliable send refused",
			"destination", destination,
			"sequenceID", seq,
			"capacity", len(m.entries),
		)

		return ErrTableFull
	}

	e := &m.entries[slot]
	*e = pendingAck{
		destination: destination,
		sequenceID:  seq,
		length:      uint8(len(frame) - HeaderSize), //nolint:gosec // frame size is bounded by MaxFrameSize
		enqueuedAt:  now,
		used:        true,
	}
	e.frameLen = copy(e.frame[:], frame)

	m.send(e, now)
	m.metrics.setPendingGauge(m.len())

	return nil
}

// acknowledge retires the entry matching an inbound StatefulAck.
//
// The ACK's source is the device that received the original message, so it
// is matched against the entry's destination. Returns false for late or
// duplicate acknowledgments.
func (m *pendingAckManager) acknowledge(source uint16, seq uint8) bool {
	i := m.find(source, seq)
	if i < 0 {
		return false
	}

	m.logger.Debug("mesh: reliable send acknowledged",
		"destination", source,
		"sequenceID", seq,
		"resentCount", m.entries[i].resentCount,
	)

	m.entries[i] = pendingAck{}
	m.advertiser.CancelAdvertisement(m.deviceID, seq)
	m.metrics.incAckRecvCount()
	m.metrics.setPendingGauge(m.len())

	return true
}

// tick retransmits every due entry, or abandons it when the retry limit
// has been reached.
func (m *pendingAckManager) tick(now time.Time) {
	for i := range m.entries {
		e := &m.entries[i]
		if !e.used || now.Before(e.nextDue) {
			continue
		}

		if e.resentCount >= m.maxRetries {
			m.abandon(e)
			continue
		}

		e.resentCount++
		m.metrics.incRetryCount()
		m.logger.Debug("mesh: reliable send retry",
			"destination", e.destination,
			"sequenceID", e.sequenceID,
			"retry", e.resentCount,
			"maxRetry", m.maxRetries,
		)

		m.send(e, now)
	}
}

func (m *pendingAckManager) abandon(e *pendingAck) {
	dest, seq := e.destination, e.sequenceID

	m.logger.Warn("mesh: reliable send abandoned, retries exhausted",
		"destination", dest,
		"sequenceID", seq,
		"retries", e.resentCount,
		"elapsed", e.lastSentAt.Sub(e.enqueuedAt),
	)

	*e = pendingAck{}
	m.metrics.incAbandonCount()
	m.metrics.setPendingGauge(m.len())

	if m.onExhausted != nil {
		m.onExhausted(dest, seq)
	}
}

func (m *pendingAckManager) send(e *pendingAck, now time.Time) {
	m.advertiser.Advertise(e.frame[:e.frameLen], m.advertiseDuration)
	m.metrics.incFrameSendCount()

	e.lastSentAt = now
	e.nextDue = now.Add(m.retryInterval + m.jitter())
}

// jitter returns a random delay in [0, retryJitter] with millisecond resolution.
func (m *pendingAckManager) jitter() time.Duration {
	maxMs := int64(m.retryJitter / time.Millisecond)
	if maxMs <= 0 {
		return 0
	}

	return time.Duration(int64(m.random.Random())%(maxMs+1)) * time.Millisecond
}

func (m *pendingAckManager) find(destination uint16, seq uint8) int {
	for i := range m.entries {
		e := &m.entries[i]
		if e.used && e.destination == destination && e.sequenceID == seq {
			return i
		}
	}

	return -1
}

// inUse reports whether seq is held by any pending entry.
func (m *pendingAckManager) inUse(seq uint8) bool {
	for i := range m.entries {
		if m.entries[i].used && m.entries[i].sequenceID == seq {
			return true
		}
	}

	return false
}

func (m *pendingAckManager) full() bool {
	return m.len() == len(m.entries)
}

func (m *pendingAckManager) len() int {
	n := 0
	for i := range m.entries {
		if m.entries[i].used {
			n++
		}
	}

	return n
}

func (m *pendingAckManager) reset() {
	clear(m.entries)
	m.metrics.setPendingGauge(0)
}
