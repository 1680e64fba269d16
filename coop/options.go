// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"fmt"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	debug       bool
	originDepth int
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithDebug enables origin tracking in the hooks returned by
// [Loop.RunningHooks].
func WithDebug(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.debug = enabled
		return nil
	}}
}

// WithOriginDepth sets how many stack frames are recorded per callback when
// debugging is enabled. The default is 1.
func WithOriginDepth(depth int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if depth < 1 {
			return fmt.Errorf("coop: origin depth must be positive, got %d", depth)
		}
		opts.originDepth = depth
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		originDepth: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
