package node

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTickInterval = 50 * time.Millisecond
	MinTickInterval     = 1 * time.Millisecond
	MaxTickInterval     = 1 * time.Second

	DefaultDeliveryBuffer = 64
	MaxDeliveryBuffer     = 4096

	DefaultRequestTimeout = 5 * time.Second
)

type options struct {
	tickInterval   time.Duration
	deliveryBuffer int
	requestTimeout time.Duration
	handler        Handler
}

func defaultOptions() options {
	return options{
		tickInterval:   DefaultTickInterval,
		deliveryBuffer: DefaultDeliveryBuffer,
		requestTimeout: DefaultRequestTimeout,
	}
}

// Option is a functional option for configuring a Node.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithTickInterval sets how often the node runs the transport periodic task.
// It should stay well below the transport retry interval.
func WithTickInterval(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d < MinTickInterval || d > MaxTickInterval {
			return fmt.Errorf("node: tick interval %v out of range [%v, %v]", d, MinTickInterval, MaxTickInterval)
		}
		o.tickInterval = d

		return nil
	})
}

// WithDeliveryBuffer sets the number of delivered messages that can wait
// for the handler, or for a reader of Messages. Messages delivered while the
// buffer is full are dropped.
func WithDeliveryBuffer(n int) Option {
	return optFunc(func(o *options) error {
		if n < 1 || n > MaxDeliveryBuffer {
			return fmt.Errorf("node: delivery buffer %d out of range [1, %d]", n, MaxDeliveryBuffer)
		}
		o.deliveryBuffer = n

		return nil
	})
}

// WithRequestTimeout sets how long a request may wait for the dispatcher
// when the caller context has no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("node: invalid request timeout %v", d)
		}
		o.requestTimeout = d

		return nil
	})
}

// WithHandler sets the handler invoked, on a dedicated goroutine, for every
// delivered message. Without a handler the messages are read from Messages.
func WithHandler(h Handler) Option {
	return optFunc(func(o *options) error {
		if h == nil {
			return errors.New("node: handler must not be nil")
		}
		o.handler = h

		return nil
	})
}
