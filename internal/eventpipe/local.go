// Copyright 2025 The LAMA Jockey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eventpipe provides a bounded in-process channel of events between a single producer
// and a single consumer which can be closed from any goroutine.
package eventpipe

import (
	"context"
	"errors"
	"sync"

	"github.com/lama-robotics/jockey/localize"
)

// defaultBufferSize keeps at most one pending event between the producer and the consumer.
const defaultBufferSize = 1

// ErrPipeClosed is returned by Write after Close and by Read once a closed pipe is drained.
var ErrPipeClosed = errors.New("pipe is closed")

type localOptions struct {
	bufferSize int
}

type LocalPipeOption func(*localOptions)

func WithBufferSize(size int) LocalPipeOption {
	return func(opts *localOptions) {
		opts.bufferSize = size
	}
}

type Local struct {
	events chan localize.Event

	closeOnce sync.Once
	closeChan chan struct{}
}

func NewLocal(opts ...LocalPipeOption) *Local {
	options := &localOptions{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(options)
	}
	return &Local{
		events:    make(chan localize.Event, options.bufferSize),
		closeChan: make(chan struct{}),
	}
}

// Write enqueues an event or blocks while the buffer is full.
func (p *Local) Write(ctx context.Context, event localize.Event) error {
	select {
	case <-p.closeChan:
		return ErrPipeClosed
	default:
	}

	select {
	case p.events <- event:
		return nil
	case <-p.closeChan:
		return ErrPipeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read dequeues an event or blocks if the pipe is empty.
func (p *Local) Read(ctx context.Context) (localize.Event, error) {
	select {
	case event := <-p.events:
		return event, nil
	case <-p.closeChan:
		// readers are allowed to drain the channel after pipe is closed
		select {
		case event := <-p.events:
			return event, nil
		default:
			return nil, ErrPipeClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unblocks writers and makes Read return ErrPipeClosed once buffered events are consumed.
func (p *Local) Close() {
	p.closeOnce.Do(func() { close(p.closeChan) })
}
