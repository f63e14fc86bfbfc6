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

// Package simjockey implements a simulated localizing jockey. It produces deterministic answers
// derived from goal descriptors after a configurable number of feedback steps, which makes it
// usable for demos and end-to-end tests of the goal lifecycle.
package simjockey

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/bits"
	"time"

	"github.com/lama-robotics/jockey/jockeysrv"
	"github.com/lama-robotics/jockey/localize"
	"github.com/lama-robotics/jockey/log"
)

// DissimilaritySeparator separates the two place descriptors of a GET_DISSIMILARITY goal.
const DissimilaritySeparator = 0

// ErrMalformedDescriptor is returned for descriptors the simulation can't interpret.
var ErrMalformedDescriptor = errors.New("malformed descriptor")

type Config struct {
	// Steps is the number of feedback records produced before a result.
	Steps int
	// StepDelay is the simulated duration of a step.
	StepDelay time.Duration
}

// Jockey is a simulated localizing jockey. Progress survives interrupts: a continued task
// resumes from the last completed step.
type Jockey struct {
	cfg   Config
	after func(time.Duration) <-chan time.Time
}

var _ jockeysrv.Jockey = (*Jockey)(nil)
var _ jockeysrv.InterruptHook = (*Jockey)(nil)
var _ jockeysrv.ContinueHook = (*Jockey)(nil)

func New(cfg Config) *Jockey {
	if cfg.Steps < 0 {
		cfg.Steps = 0
	}
	return &Jockey{cfg: cfg, after: time.After}
}

func (j *Jockey) OnGetVertexDescriptor(ctx context.Context, task *jockeysrv.Task) (localize.Payload, error) {
	if err := j.simulate(ctx, task); err != nil {
		return nil, err
	}
	return localize.Payload{"descriptor": fmt.Sprintf("%016x", hash(task.Descriptor()))}, nil
}

func (j *Jockey) OnGetEdgesDescriptors(ctx context.Context, task *jockeysrv.Task) (localize.Payload, error) {
	if err := j.simulate(ctx, task); err != nil {
		return nil, err
	}
	h := hash(task.Descriptor())
	edges := make([]any, 0, 3)
	for i := range 3 {
		edges = append(edges, fmt.Sprintf("%04x", uint16(h>>(16*i))))
	}
	return localize.Payload{"edges": edges}, nil
}

func (j *Jockey) OnLocalizeInVertex(ctx context.Context, task *jockeysrv.Task) (localize.Payload, error) {
	if err := j.simulate(ctx, task); err != nil {
		return nil, err
	}
	h := hash(task.Descriptor())
	return localize.Payload{
		"x":     unit(h) * 10,
		"y":     unit(h>>21) * 10,
		"theta": (unit(h>>42)*2 - 1) * math.Pi,
	}, nil
}

func (j *Jockey) OnLocalizeEdge(ctx context.Context, task *jockeysrv.Task) (localize.Payload, error) {
	if err := j.simulate(ctx, task); err != nil {
		return nil, err
	}
	h := hash(task.Descriptor())
	return localize.Payload{
		"edge":     fmt.Sprintf("%04x", uint16(h)),
		"distance": unit(h>>16),
	}, nil
}

func (j *Jockey) OnGetDissimilarity(ctx context.Context, task *jockeysrv.Task) (localize.Payload, error) {
	a, b, ok := bytes.Cut(task.Descriptor(), []byte{DissimilaritySeparator})
	if !ok {
		return nil, fmt.Errorf("%w: expected two descriptors separated by a zero byte", ErrMalformedDescriptor)
	}
	if err := j.simulate(ctx, task); err != nil {
		return nil, err
	}
	return localize.Payload{"dissimilarity": Dissimilarity(a, b)}, nil
}

func (j *Jockey) OnInterrupt(ctx context.Context, task *jockeysrv.Task) {
	log.Info(ctx, "simulation interrupted", "completed_steps", completedSteps(task))
}

func (j *Jockey) OnContinue(ctx context.Context, task *jockeysrv.Task) error {
	log.Info(ctx, "simulation continued", "completed_steps", completedSteps(task))
	return nil
}

// simulate runs the remaining steps of the task, reporting each as feedback.
func (j *Jockey) simulate(ctx context.Context, task *jockeysrv.Task) error {
	for step := completedSteps(task); step < j.cfg.Steps; step++ {
		select {
		case <-task.Interrupted():
			if err := ctx.Err(); err != nil {
				return err
			}
			return jockeysrv.ErrInterrupted
		case <-ctx.Done():
			return ctx.Err()
		case <-j.after(j.cfg.StepDelay):
		}

		task.SetCheckpoint(step + 1)
		progress := localize.Payload{"step": step + 1, "steps": j.cfg.Steps, "resumed": task.Resumed()}
		if err := task.Feedback(ctx, progress); err != nil {
			return err
		}
	}
	return nil
}

func completedSteps(task *jockeysrv.Task) int {
	if step, ok := task.Checkpoint().(int); ok {
		return step
	}
	return 0
}

// Dissimilarity returns the share of differing bits between the hashes of two descriptors:
// 0 for identical descriptors, around 0.5 for unrelated ones.
func Dissimilarity(a, b []byte) float64 {
	return float64(bits.OnesCount64(hash(a)^hash(b))) / 64
}

func hash(data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}

// unit maps the low 21 bits of v to [0, 1).
func unit(v uint64) float64 {
	return float64(v&(1<<21-1)) / (1 << 21)
}
