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

// Package taskexec contains primitives the jockey server builds task execution from.
package taskexec

import (
	"context"
	"sync"
)

// Promise is a single-assignment value which can be awaited by any number of goroutines.
type Promise[T any] struct {
	once sync.Once
	// done channel gets closed once value or err field is set
	done  chan struct{}
	value T
	err   error
}

// NewPromise creates an unresolved Promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve sets the value of the Promise. Returns false if the Promise was already settled.
func (p *Promise[T]) Resolve(value T) bool {
	return p.settle(value, nil)
}

// Reject sets the error of the Promise. Returns false if the Promise was already settled.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(value T, err error) bool {
	settled := false
	p.once.Do(func() {
		p.value, p.err = value, err
		close(p.done)
		settled = true
	})
	return settled
}

// Done returns a channel which gets closed when the Promise is settled.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Settled returns true if the Promise has a value or an error.
func (p *Promise[T]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Promise is settled or the context is canceled.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
