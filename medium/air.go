package medium

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-advmesh/internal/queue"
	"github.com/arloliu/go-advmesh/logger"
	"github.com/arloliu/go-advmesh/mesh"
)

// maxFlushRounds bounds Flush when stations keep answering each other.
const maxFlushRounds = 64

// ErrDuplicateDevice is returned by Attach when a station with the same
// network and device identifiers is already attached.
var ErrDuplicateDevice = errors.New("medium: device already attached")

// transmission is one queued advertisement.
type transmission struct {
	from   uuid.UUID
	source uint16
	seq    uint8
	data   []byte
}

// Air is the shared medium the stations advertise on.
type Air struct {
	clock  *ManualClock
	loss   LossFunc
	seed   uint64
	logger logger.Logger

	stations *xsync.MapOf[uuid.UUID, *Station]

	mu    sync.Mutex // guards queue and rng
	queue queue.Queue[transmission]
	rng   *rand.Rand

	sentCount    atomic.Uint64
	heardCount   atomic.Uint64
	droppedCount atomic.Uint64
}

// NewAir creates an empty medium.
func NewAir(opts ...Option) *Air {
	a := &Air{
		clock:    NewManualClock(time.Unix(0, 0)),
		logger:   logger.GetLogger(),
		stations: xsync.NewMapOf[uuid.UUID, *Station](),
		queue:    queue.NewSliceQueue[transmission](16),
	}

	for _, opt := range opts {
		opt.apply(a)
	}

	a.rng = rand.New(rand.NewPCG(a.seed, a.seed^0x9E3779B97F4A7C15)) //nolint:gosec // simulation randomness

	return a
}

// Clock returns the clock shared by every station.
func (a *Air) Clock() *ManualClock { return a.clock }

// Attach creates a station for (networkID, deviceID) with a transport built
// from opts. handler receives the messages delivered to the station and may
// be nil.
func (a *Air) Attach(networkID, deviceID uint16, handler Handler, opts ...mesh.Option) (*Station, error) {
	var dup bool
	a.stations.Range(func(_ uuid.UUID, st *Station) bool {
		if st.NetworkID() == networkID && st.DeviceID() == deviceID {
			dup = true
			return false
		}

		return true
	})
	if dup {
		return nil, fmt.Errorf("%w: network 0x%04X device 0x%04X", ErrDuplicateDevice, networkID, deviceID)
	}

	st := &Station{
		id:      uuid.New(),
		air:     a,
		handler: handler,
	}

	// station logger first, so that an explicit WithLogger in opts wins
	stLogger := a.logger.With("station", st.id.String())
	opts = append([]mesh.Option{mesh.WithLogger(stLogger)}, opts...)

	cfg, err := mesh.NewConfig(networkID, deviceID, opts...)
	if err != nil {
		return nil, err
	}

	st.transport, err = mesh.NewTransport(cfg, st)
	if err != nil {
		return nil, err
	}

	a.stations.Store(st.id, st)
	a.logger.Debug("medium: station attached", "station", st.id.String(), "networkID", networkID, "deviceID", deviceID)

	return st, nil
}

// Detach removes st from the medium, drops its queued advertisements and
// closes its transport.
func (a *Air) Detach(st *Station) error {
	if _, ok := a.stations.LoadAndDelete(st.id); !ok {
		return fmt.Errorf("medium: station %s not attached", st.id)
	}

	a.mu.Lock()
	a.queue.RemoveFunc(func(tx transmission) bool { return tx.from == st.id })
	a.mu.Unlock()

	a.logger.Debug("medium: station detached", "station", st.id.String())

	return st.transport.Close()
}

// Station returns the attached station with the given identity.
func (a *Air) Station(id uuid.UUID) (*Station, bool) {
	return a.stations.Load(id)
}

// StationCount returns the number of attached stations.
func (a *Air) StationCount() int { return a.stations.Size() }

// Pending returns the number of queued advertisements.
func (a *Air) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.queue.Length()
}

// SentCount returns the number of advertisements queued since creation.
func (a *Air) SentCount() uint64 { return a.sentCount.Load() }

// HeardCount returns the number of (frame, receiver) deliveries.
func (a *Air) HeardCount() uint64 { return a.heardCount.Load() }

// DroppedCount returns the number of (frame, receiver) pairs lost.
func (a *Air) DroppedCount() uint64 { return a.droppedCount.Load() }

// Step delivers the advertisements queued before the call to every other
// attached station. Advertisements queued while stepping, such as
// acknowledgments, wait for the next Step. It returns the number of
// advertisements transmitted.
func (a *Air) Step() int {
	a.mu.Lock()
	n := a.queue.Length()
	batch := make([]transmission, 0, n)
	for range n {
		tx, _ := a.queue.Dequeue()
		batch = append(batch, tx)
	}
	a.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	stations := a.snapshot()

	for _, tx := range batch {
		from, _ := a.stations.Load(tx.from)

		for _, to := range stations {
			if to.id == tx.from {
				continue
			}

			if a.loss != nil && a.loss(from, to, tx.data) {
				a.droppedCount.Add(1)
				continue
			}

			a.heardCount.Add(1)
			to.transport.ProcessIncoming(tx.data)
		}
	}

	return len(batch)
}

// Flush steps until no advertisement is queued.
func (a *Air) Flush() int {
	total := 0
	for range maxFlushRounds {
		n := a.Step()
		if n == 0 {
			break
		}
		total += n
	}

	return total
}

// Tick runs the periodic task of every station.
func (a *Air) Tick() {
	for _, st := range a.snapshot() {
		st.transport.PeriodicTask()
	}
}

// Run advances the clock by d in increments of resolution. Each increment
// ticks every station and flushes the medium.
func (a *Air) Run(d, resolution time.Duration) {
	if resolution <= 0 {
		resolution = d
	}

	a.Flush()
	for elapsed := time.Duration(0); elapsed < d; elapsed += resolution {
		a.clock.Advance(resolution)
		a.Tick()
		a.Flush()
	}
}

// Close detaches every station.
func (a *Air) Close() {
	for _, st := range a.snapshot() {
		_ = a.Detach(st)
	}
}

func (a *Air) enqueue(st *Station, data []byte) {
	tx := transmission{from: st.id, data: slices.Clone(data)}

	if frame, err := mesh.ParseFrame(tx.data); err == nil {
		tx.source = frame.Source
		tx.seq = frame.SequenceID
	}

	a.mu.Lock()
	a.queue.Enqueue(tx)
	a.mu.Unlock()

	a.sentCount.Add(1)
}

func (a *Air) cancel(st *Station, source uint16, seq uint8) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.queue.RemoveFunc(func(tx transmission) bool {
		return tx.from == st.id && tx.source == source && tx.seq == seq
	})
}

func (a *Air) random() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return uint16(a.rng.Uint32()) //nolint:gosec // truncation intended
}

// snapshot returns the attached stations ordered by network and device id.
func (a *Air) snapshot() []*Station {
	stations := make([]*Station, 0, a.stations.Size())
	a.stations.Range(func(_ uuid.UUID, st *Station) bool {
		stations = append(stations, st)
		return true
	})

	slices.SortFunc(stations, func(x, y *Station) int {
		if x.NetworkID() != y.NetworkID() {
			return int(x.NetworkID()) - int(y.NetworkID())
		}

		return int(x.DeviceID()) - int(y.DeviceID())
	})

	return stations
}
