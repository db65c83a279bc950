package mesh

import "time"

// Advertiser is the outbound half of the broadcast medium.
type Advertiser interface {
	// Advertise broadcasts data for at least duration. data is only valid for
	// the duration of the call; implementations that queue must copy it.
	Advertise(data []byte, duration time.Duration)
	// CancelAdvertisement stops any pending transmission of the frame
	// identified by (source, seq). It is a no-op if none is pending.
	CancelAdvertisement(source uint16, seq uint8)
}

// MessageHandler receives novel application messages.
type MessageHandler interface {
	// Deliver is invoked synchronously once per novel message. payload is only
	// valid for the duration of the call.
	Deliver(source uint16, payload []byte)
}

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Time
}

// RandomSource supplies jitter and sequence entropy.
type RandomSource interface {
	Random() uint16
}

// Host bundles every collaborator a Transport requires from its environment.
type Host interface {
	Advertiser
	MessageHandler
	Clock
	RandomSource
}

// RetryExhaustedHandler is called when a reliable send is abandoned after the
// retry limit was reached without an acknowledgment.
type RetryExhaustedHandler func(destination uint16, seq uint8)
