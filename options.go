// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"fmt"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// DefaultTickInterval is the delay between ticks, unless configured
// [WithTickInterval]. Shorter intervals make async work more responsive, at
// the cost of more host loop traffic while idle.
const DefaultTickInterval = 5 * time.Millisecond

// adapterOptions holds configuration options for Adapter creation.
type adapterOptions struct {
	logger         *logiface.Logger[logiface.Event]
	guard          *Guard
	onError        func(error)
	failureLimiter *catrate.Limiter
	tickInterval   time.Duration
	loggerSet      bool
	limiterSet     bool
}

// Option configures an Adapter instance.
type Option interface {
	applyAdapter(*adapterOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyAdapterFunc func(*adapterOptions) error
}

func (o *optionImpl) applyAdapter(opts *adapterOptions) error {
	return o.applyAdapterFunc(opts)
}

// WithTickInterval sets the delay between ticks.
func WithTickInterval(interval time.Duration) Option {
	return &optionImpl{func(opts *adapterOptions) error {
		if interval <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidTickInterval, interval)
		}
		opts.tickInterval = interval
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger disables logging.
// The default logs JSON to stderr, at the informational level.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *adapterOptions) error {
		opts.logger = logger
		opts.loggerSet = true
		return nil
	}}
}

// WithGuard sets the guard used to prevent concurrently running adapters.
// A nil guard selects [DefaultGuard].
func WithGuard(guard *Guard) Option {
	return &optionImpl{func(opts *adapterOptions) error {
		opts.guard = guard
		return nil
	}}
}

// WithErrorHandler registers a callback, called on the UI thread with each
// [*TickError], regardless of log rate limiting. Panics are recovered.
func WithErrorHandler(fn func(err error)) Option {
	return &optionImpl{func(opts *adapterOptions) error {
		opts.onError = fn
		return nil
	}}
}

// WithFailureReportRates configures rate limiting of tick failure logs, per
// phase and cause type, see catrate.NewLimiter. An empty map disables rate
// limiting. The default is 10 per second, and 100 per minute.
func WithFailureReportRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *adapterOptions) (err error) {
		opts.limiterSet = true
		if len(rates) == 0 {
			opts.failureLimiter = nil
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("hostloop: invalid failure report rates: %v", r)
			}
		}()
		opts.failureLimiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// resolveOptions applies Option instances to adapterOptions.
func resolveOptions(opts []Option) (*adapterOptions, error) {
	cfg := &adapterOptions{
		tickInterval: DefaultTickInterval,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyAdapter(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.guard == nil {
		cfg.guard = DefaultGuard
	}
	if !cfg.loggerSet {
		cfg.logger = defaultLogger()
	}
	if !cfg.limiterSet {
		cfg.failureLimiter = defaultFailureLimiter()
	}
	return cfg, nil
}

func defaultFailureLimiter() *catrate.Limiter {
	return catrate.NewLimiter(map[time.Duration]int{
		time.Second: 10,
		time.Minute: 100,
	})
}
