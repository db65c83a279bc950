package medium

import (
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-advmesh/mesh"
)

// Handler receives a message delivered to a station. payload is only valid
// during the call.
type Handler func(st *Station, source uint16, payload []byte)

// Station is one device attached to an Air. It implements mesh.Host for its
// own transport.
type Station struct {
	id        uuid.UUID
	air       *Air
	transport *mesh.Transport
	handler   Handler
}

var _ mesh.Host = (*Station)(nil)

// ID returns the identity of the station on the medium.
func (st *Station) ID() uuid.UUID { return st.id }

// NetworkID returns the network the station belongs to.
func (st *Station) NetworkID() uint16 { return st.transport.Config().NetworkID() }

// DeviceID returns the device address of the station.
func (st *Station) DeviceID() uint16 { return st.transport.Config().DeviceID() }

// Transport returns the transport of the station.
func (st *Station) Transport() *mesh.Transport { return st.transport }

// Advertise queues a copy of data on the medium. The duration is ignored:
// the frame is heard once, on the next Step.
func (st *Station) Advertise(data []byte, _ time.Duration) {
	st.air.enqueue(st, data)
}

// CancelAdvertisement removes the queued advertisements of this station
// carrying (source, seq).
func (st *Station) CancelAdvertisement(source uint16, seq uint8) {
	if n := st.air.cancel(st, source, seq); n > 0 {
		st.air.logger.Debug("medium: queued advertisement cancelled",
			"station", st.id.String(),
			"source", source,
			"sequenceID", seq,
			"count", n,
		)
	}
}

// Deliver hands a message to the station handler.
func (st *Station) Deliver(source uint16, payload []byte) {
	if st.handler != nil {
		st.handler(st, source, payload)
	}
}

// Now returns the reading of the shared clock.
func (st *Station) Now() time.Time { return st.air.clock.Now() }

// Random returns a value from the random source of the medium.
func (st *Station) Random() uint16 { return st.air.random() }
