// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"sync"
	"time"
)

// ScriptedRanger replays a fixed sequence of distance samples, cycling when
// the sequence is exhausted. Used by tests to script sensor behavior.
type ScriptedRanger struct {
	mu      sync.Mutex
	samples []DistanceSample
	next    int
	calls   int
}

func NewScriptedRanger(samples ...DistanceSample) *ScriptedRanger {
	return &ScriptedRanger{samples: samples}
}

func (r *ScriptedRanger) MeasureOnce() (DistanceSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.samples) == 0 {
		return DistanceSample{}, nil
	}
	s := r.samples[r.next%len(r.samples)]
	r.next++
	return s, nil
}

// Calls reports how many measurements were taken.
func (r *ScriptedRanger) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// ScriptedGas replays a fixed sequence of raw gas readings, cycling when
// exhausted.
type ScriptedGas struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewScriptedGas(values ...int) *ScriptedGas {
	return &ScriptedGas{values: values}
}

func (g *ScriptedGas) ReadOnce() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.values) == 0 {
		return 0, nil
	}
	v := g.values[g.next%len(g.values)]
	g.next++
	return v, nil
}

// SimRanger generates a smoothly varying water level for hardware-free runs.
type SimRanger struct {
	start time.Time
}

func NewSimRanger() *SimRanger {
	return &SimRanger{start: time.Now()}
}

func (r *SimRanger) MeasureOnce() (DistanceSample, error) {
	elapsed := time.Since(r.start).Seconds()
	cm := 40 + 15*math.Sin(elapsed*0.05)
	return DistanceSample{Centimeters: cm, Valid: true}, nil
}

// SimGas generates a slowly drifting gas reading for hardware-free runs.
type SimGas struct {
	start time.Time
}

func NewSimGas() *SimGas {
	return &SimGas{start: time.Now()}
}

func (g *SimGas) ReadOnce() (int, error) {
	elapsed := time.Since(g.start).Seconds()
	return int(400 + 80*math.Sin(elapsed*0.035)), nil
}
