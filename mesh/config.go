package mesh

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-advmesh/logger"
)

// Default transport parameters.
const (
	DefaultRetryInterval     = 1 * time.Second
	DefaultRetryJitter       = 250 * time.Millisecond
	DefaultMaxRetries        = 3
	DefaultAdvertiseDuration = 200 * time.Millisecond

	DefaultDedupCapacity   = 32
	DefaultDedupWindow     = 30 * time.Second
	DefaultPendingCapacity = 8
	DefaultGroupCapacity   = 8
)

// Parameter range limits.
const (
	MinRetryInterval = 100 * time.Millisecond
	MaxRetryInterval = 60 * time.Second

	// MaxRetryJitter is bounded by the 16-bit random source in milliseconds.
	MaxRetryJitter = 65535 * time.Millisecond

	MaxRetryLimit = 31

	MinAdvertiseDuration = 20 * time.Millisecond
	MaxAdvertiseDuration = 10 * time.Second

	MinDedupWindow = 1 * time.Second
	MaxDedupWindow = 10 * time.Minute

	MaxDedupCapacity = 255
	// MaxPendingCapacity keeps the pending table well below the 256 sequence
	// identifiers so an unused one always exists.
	MaxPendingCapacity = 128
	MaxGroupCapacity   = 64
)

// Config holds the initialization parameters of a Transport.
type Config struct {
	// networkID partitions unrelated meshes sharing the medium.
	networkID uint16
	// deviceID is the local device address.
	deviceID uint16

	retryInterval     time.Duration
	retryJitter       time.Duration
	maxRetries        int
	advertiseDuration time.Duration

	dedupCapacity   int
	dedupWindow     time.Duration
	pendingCapacity int
	groupCapacity   int

	onRetryExhausted RetryExhaustedHandler

	logger logger.Logger
}

// NewConfig creates a transport configuration for the given network and device.
//
// opts are functional options applied in order; see With* functions.
func NewConfig(networkID uint16, deviceID uint16, opts ...Option) (*Config, error) {
	cfg := &Config{
		networkID:         networkID,
		deviceID:          deviceID,
		retryInterval:     DefaultRetryInterval,
		retryJitter:       DefaultRetryJitter,
		maxRetries:        DefaultMaxRetries,
		advertiseDuration: DefaultAdvertiseDuration,
		dedupCapacity:     DefaultDedupCapacity,
		dedupWindow:       DefaultDedupWindow,
		pendingCapacity:   DefaultPendingCapacity,
		groupCapacity:     DefaultGroupCapacity,
		logger:            logger.GetLogger(),
	}

	if deviceID == BroadcastAddress {
		return nil, fmt.Errorf("mesh: device ID 0x%04X is reserved", deviceID)
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// NetworkID returns the logical network identifier.
func (cfg *Config) NetworkID() uint16 { return cfg.networkID }

// DeviceID returns the local device identifier.
func (cfg *Config) DeviceID() uint16 { return cfg.deviceID }

// RetryInterval returns the reliable-send resend cadence.
func (cfg *Config) RetryInterval() time.Duration { return cfg.retryInterval }

// RetryJitter returns the upper bound of the random delay added to each retry.
func (cfg *Config) RetryJitter() time.Duration { return cfg.retryJitter }

// MaxRetries returns the number of resends after which a reliable send is abandoned.
func (cfg *Config) MaxRetries() int { return cfg.maxRetries }

// AdvertiseDuration returns the duration passed to the advertiser for every frame.
func (cfg *Config) AdvertiseDuration() time.Duration { return cfg.advertiseDuration }

// DedupCapacity returns the size of the duplicate suppression cache.
func (cfg *Config) DedupCapacity() int { return cfg.dedupCapacity }

// DedupWindow returns the retention window of the duplicate suppression cache.
func (cfg *Config) DedupWindow() time.Duration { return cfg.dedupWindow }

// PendingCapacity returns the maximum number of reliable sends in flight.
func (cfg *Config) PendingCapacity() int { return cfg.pendingCapacity }

// GroupCapacity returns the maximum number of joined groups.
func (cfg *Config) GroupCapacity() int { return cfg.groupCapacity }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithRetryInterval sets the interval between retransmissions of an
// unacknowledged reliable send. Must be in [MinRetryInterval, MaxRetryInterval].
func WithRetryInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinRetryInterval || d > MaxRetryInterval {
			return fmt.Errorf("mesh: retry interval %v out of range [%v, %v]", d, MinRetryInterval, MaxRetryInterval)
		}
		cfg.retryInterval = d

		return nil
	})
}

// WithRetryJitter sets the upper bound of the random delay added to every
// retry. Zero disables jitter.
func WithRetryJitter(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxRetryJitter {
			return fmt.Errorf("mesh: retry jitter %v out of range [0, %v]", d, MaxRetryJitter)
		}
		cfg.retryJitter = d

		return nil
	})
}

// WithMaxRetries sets the number of resends after which a reliable send is abandoned.
func WithMaxRetries(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > MaxRetryLimit {
			return fmt.Errorf("mesh: max retries %d out of range [0, %d]", n, MaxRetryLimit)
		}
		cfg.maxRetries = n

		return nil
	})
}

// WithAdvertiseDuration sets how long the advertiser is asked to broadcast each frame.
func WithAdvertiseDuration(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinAdvertiseDuration || d > MaxAdvertiseDuration {
			return fmt.Errorf("mesh: advertise duration %v out of range [%v, %v]",
				d, MinAdvertiseDuration, MaxAdvertiseDuration)
		}
		cfg.advertiseDuration = d

		return nil
	})
}

// WithDedupCapacity sets the number of (source, sequence) pairs remembered
// by the duplicate suppression cache.
func WithDedupCapacity(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxDedupCapacity {
			return fmt.Errorf("mesh: dedup capacity %d out of range [1, %d]", n, MaxDedupCapacity)
		}
		cfg.dedupCapacity = n

		return nil
	})
}

// WithDedupWindow sets how long an observed message is remembered.
func WithDedupWindow(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinDedupWindow || d > MaxDedupWindow {
			return fmt.Errorf("mesh: dedup window %v out of range [%v, %v]", d, MinDedupWindow, MaxDedupWindow)
		}
		cfg.dedupWindow = d

		return nil
	})
}

// WithPendingCapacity sets the maximum number of reliable sends in flight.
func WithPendingCapacity(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxPendingCapacity {
			return fmt.Errorf("mesh: pending capacity %d out of range [1, %d]", n, MaxPendingCapacity)
		}
		cfg.pendingCapacity = n

		return nil
	})
}

// WithGroupCapacity sets the maximum number of groups the device can join.
func WithGroupCapacity(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxGroupCapacity {
			return fmt.Errorf("mesh: group capacity %d out of range [1, %d]", n, MaxGroupCapacity)
		}
		cfg.groupCapacity = n

		return nil
	})
}

// WithRetryExhaustedHandler registers a handler invoked when a reliable send
// is abandoned. Abandonment is silent when no handler is registered.
func WithRetryExhaustedHandler(h RetryExhaustedHandler) Option {
	return optFunc(func(cfg *Config) error {
		cfg.onRetryExhausted = h

		return nil
	})
}

// WithLogger sets the logger for the transport.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("mesh: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
