package mesh

import (
	"sync/atomic"
)

// TransportMetrics contains atomic metrics for a Transport.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type TransportMetrics struct {
	// FrameSendCount indicates the number of frames handed to the advertiser,
	// including retransmissions and acknowledgments.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of frames passed to ProcessIncoming.
	FrameRecvCount atomic.Uint64
	// FrameMalformedCount indicates the number of frames rejected by the codec.
	FrameMalformedCount atomic.Uint64
	// FrameFilteredCount indicates the number of frames dropped by the network
	// and address filter.
	FrameFilteredCount atomic.Uint64

	// DuplicateCount indicates the number of repeated data frames suppressed.
	DuplicateCount atomic.Uint64
	// DeliverCount indicates the number of messages delivered to the application.
	DeliverCount atomic.Uint64

	// AckSendCount indicates the number of acknowledgments advertised.
	AckSendCount atomic.Uint64
	// AckRecvCount indicates the number of acknowledgments that retired a pending send.
	AckRecvCount atomic.Uint64
	// RetryCount indicates the total number of reliable-send retransmissions.
	RetryCount atomic.Uint64
	// AbandonCount indicates the number of reliable sends abandoned after the retry limit.
	AbandonCount atomic.Uint64

	// PendingGauge indicates the number of reliable sends waiting for acknowledgment.
	PendingGauge atomic.Int64
}

func (m *TransportMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *TransportMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *TransportMetrics) incFrameMalformedCount() {
	m.FrameMalformedCount.Add(1)
}

func (m *TransportMetrics) incFrameFilteredCount() {
	m.FrameFilteredCount.Add(1)
}

func (m *TransportMetrics) incDuplicateCount() {
	m.DuplicateCount.Add(1)
}

func (m *TransportMetrics) incDeliverCount() {
	m.DeliverCount.Add(1)
}

func (m *TransportMetrics) incAckSendCount() {
	m.AckSendCount.Add(1)
}

func (m *TransportMetrics) incAckRecvCount() {
	m.AckRecvCount.Add(1)
}

func (m *TransportMetrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *TransportMetrics) incAbandonCount() {
	m.AbandonCount.Add(1)
}

func (m *TransportMetrics) setPendingGauge(n int) {
	m.PendingGauge.Store(int64(n))
}
