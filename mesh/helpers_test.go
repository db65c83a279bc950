package mesh

import (
	"testing"
	"time"
)

type advertisement struct {
	data     []byte
	duration time.Duration
}

type cancellation struct {
	source uint16
	seq    uint8
}

type delivery struct {
	source  uint16
	payload []byte
}

// recordingHost is a deterministic Host: a manually advanced clock, a fixed
// random value, and recorders for every outbound call.
type recordingHost struct {
	now    time.Time
	random uint16

	ads        []advertisement
	cancels    []cancellation
	deliveries []delivery

	onDeliver func(source uint16, payload []byte)
}

var _ Host = (*recordingHost)(nil)

func newRecordingHost() *recordingHost {
	return &recordingHost{now: time.Unix(1_700_000_000, 0)}
}

func (h *recordingHost) Advertise(data []byte, duration time.Duration) {
	cp := make([]byte, len(data))
	copy(cp, data)
	h.ads = append(h.ads, advertisement{data: cp, duration: duration})
}

func (h *recordingHost) CancelAdvertisement(source uint16, seq uint8) {
	h.cancels = append(h.cancels, cancellation{source: source, seq: seq})
}

func (h *recordingHost) Deliver(source uint16, payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	h.deliveries = append(h.deliveries, delivery{source: source, payload: cp})

	if h.onDeliver != nil {
		h.onDeliver(source, payload)
	}
}

func (h *recordingHost) Now() time.Time { return h.now }

func (h *recordingHost) Random() uint16 { return h.random }

func (h *recordingHost) advance(d time.Duration) { h.now = h.now.Add(d) }

// lastFrame decodes the most recent advertisement.
func (h *recordingHost) lastFrame(t *testing.T) Frame {
	t.Helper()

	if len(h.ads) == 0 {
		t.Fatal("lastFrame: no advertisement recorded")
	}

	f, err := ParseFrame(h.ads[len(h.ads)-1].data)
	if err != nil {
		t.Fatalf("lastFrame: %v", err)
	}

	return f
}

// newTestTransport creates a transport with jitter disabled so retry timing
// is exact.
func newTestTransport(t *testing.T, networkID, deviceID uint16, opts ...Option) (*Transport, *recordingHost) {
	t.Helper()

	defaults := []Option{WithRetryJitter(0)}

	cfg, err := NewConfig(networkID, deviceID, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestTransport: %v", err)
	}

	host := newRecordingHost()
	tr, err := NewTransport(cfg, host)
	if err != nil {
		t.Fatalf("newTestTransport: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	return tr, host
}

// mustPack encodes a frame, failing the test on error.
func mustPack(t *testing.T, f *Frame) []byte {
	t.Helper()

	data, err := f.Pack()
	if err != nil {
		t.Fatalf("mustPack: %v", err)
	}

	return data
}

func makeFrame(networkID, source, destination uint16, seq uint8, typ MessageType, payload []byte) *Frame {
	return &Frame{
		Header: Header{
			NetworkID:   networkID,
			Source:      source,
			Destination: destination,
			SequenceID:  seq,
			Type:        typ,
		},
		Payload: payload,
	}
}
