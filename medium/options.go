package medium

import (
	"time"

	"github.com/arloliu/go-advmesh/logger"
)

// LossFunc decides whether a frame sent by from is lost on its way to to.
// It returns true to drop the frame.
type LossFunc func(from *Station, to *Station, frame []byte) bool

// Option is a functional option for configuring an Air.
type Option interface {
	apply(*Air)
}

type optFunc func(*Air)

func (f optFunc) apply(a *Air) { f(a) }

// WithStartTime sets the initial reading of the shared clock.
func WithStartTime(t time.Time) Option {
	return optFunc(func(a *Air) {
		a.clock = NewManualClock(t)
	})
}

// WithLoss installs a loss function consulted for every (frame, receiver) pair.
func WithLoss(fn LossFunc) Option {
	return optFunc(func(a *Air) {
		a.loss = fn
	})
}

// WithSeed seeds the random source shared by the stations.
func WithSeed(seed uint64) Option {
	return optFunc(func(a *Air) {
		a.seed = seed
	})
}

// WithLogger sets the logger of the Air. Stations inherit it unless their
// transport options set another one.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(a *Air) {
		if l != nil {
			a.logger = l
		}
	})
}
