// Package engine provides the stepped evacuation simulation and the loop
// that drives it, in batch or paced in real time.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine drives a Simulation forward until it finishes.
type Engine struct {
	Interval time.Duration // Wall time per step; 0 runs unpaced

	// OnStep is called after every completed step, on the goroutine
	// running the simulation.
	OnStep func(sim *Simulation)

	mu    sync.Mutex
	speed float64 // Multiplier on Interval: 2.0 runs twice as fast
}

// NewEngine creates an unpaced engine.
func NewEngine() *Engine {
	return &Engine{speed: 1.0}
}

// NewPacedEngine creates an engine that spends interval of wall time per
// step, for live viewing.
func NewPacedEngine(interval time.Duration) *Engine {
	return &Engine{speed: 1.0, Interval: interval}
}

// Speed returns the pacing multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the pacing multiplier. Safe to call while running;
// 0 pauses pacing entirely and runs flat out.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
}

// Run steps the simulation until it finishes and then terminates it. The
// context is checked between steps only; a cancelled run is left
// unterminated and returns the context error.
func (e *Engine) Run(ctx context.Context, sim *Simulation) (Result, error) {
	slog.Info("simulation engine started", "step", sim.CurrentStep(), "interval", e.Interval, "speed", e.Speed())

	for !sim.Finished() {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation engine cancelled", "step", sim.CurrentStep())
			return Result{Steps: sim.CurrentStep(), NeededTime: sim.NeededTime(), Stats: sim.Stats()}, err
		}

		start := time.Now()
		if err := sim.Step(); err != nil {
			return Result{}, err
		}
		if e.OnStep != nil {
			e.OnStep(sim)
		}

		if speed := e.Speed(); e.Interval > 0 && speed > 0 {
			target := time.Duration(float64(e.Interval) / speed)
			if elapsed := time.Since(start); elapsed < target {
				select {
				case <-ctx.Done():
				case <-time.After(target - elapsed):
				}
			}
		}
	}

	result, err := sim.Terminate()
	if err != nil {
		return Result{}, err
	}
	slog.Info("simulation engine stopped", "step", result.Steps)
	return result, nil
}

// Run drives the simulation to completion without pacing.
func (s *Simulation) Run(ctx context.Context) (Result, error) {
	return NewEngine().Run(ctx, s)
}
