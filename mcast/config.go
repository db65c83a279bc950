package mcast

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/arloliu/go-advmesh/logger"
)

const (
	// DefaultAddress is the multicast group used when none is configured.
	DefaultAddress = "239.77.77.77:7777"

	DefaultRepeatInterval = 100 * time.Millisecond
	MinRepeatInterval     = 10 * time.Millisecond
	MaxRepeatInterval     = 10 * time.Second

	DefaultFrameBuffer = 64
	MaxFrameBuffer     = 4096
)

// Config holds the parameters of a multicast medium.
type Config struct {
	groupAddr      *net.UDPAddr
	repeatInterval time.Duration
	frameBuffer    int
	logger         logger.Logger
}

// NewConfig creates a configuration for the IPv4 multicast group addr
// ("ip:port").
func NewConfig(addr string, opts ...Option) (*Config, error) {
	groupAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("mcast: resolve %q: %w", addr, err)
	}

	if !groupAddr.IP.IsMulticast() || groupAddr.IP.To4() == nil {
		return nil, fmt.Errorf("mcast: %s is not an IPv4 multicast address", groupAddr.IP)
	}

	if groupAddr.Port <= 0 {
		return nil, fmt.Errorf("mcast: invalid port %d", groupAddr.Port)
	}

	cfg := &Config{
		groupAddr:      groupAddr,
		repeatInterval: DefaultRepeatInterval,
		frameBuffer:    DefaultFrameBuffer,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// GroupAddr returns the multicast group address.
func (cfg *Config) GroupAddr() *net.UDPAddr { return cfg.groupAddr }

// RepeatInterval returns the interval between two transmissions of an
// active advertisement.
func (cfg *Config) RepeatInterval() time.Duration { return cfg.repeatInterval }

// FrameBuffer returns the capacity of the inbound frame channel.
func (cfg *Config) FrameBuffer() int { return cfg.frameBuffer }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithRepeatInterval sets how often an active advertisement is re-sent.
func WithRepeatInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinRepeatInterval || d > MaxRepeatInterval {
			return fmt.Errorf("mcast: repeat interval %v out of range [%v, %v]", d, MinRepeatInterval, MaxRepeatInterval)
		}
		cfg.repeatInterval = d

		return nil
	})
}

// WithFrameBuffer sets the capacity of the inbound frame channel. Frames
// arriving while the channel is full are dropped.
func WithFrameBuffer(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxFrameBuffer {
			return fmt.Errorf("mcast: frame buffer %d out of range [1, %d]", n, MaxFrameBuffer)
		}
		cfg.frameBuffer = n

		return nil
	})
}

// WithLogger sets the logger of the medium.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("mcast: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
