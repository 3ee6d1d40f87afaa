// Package core bundles a parsed program with the simulation engine behind a
// high-level interface for drivers.
package core

import (
	"github.com/giusfds/tomsim/loader"
	"github.com/giusfds/tomsim/timing/tomasulo"
)

// Stats holds performance statistics for a simulated core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Issued is the number of instructions dispatched.
	Issued uint64
	// Completed is the number of instructions retired.
	Completed uint64
	// Bubbles is the number of cycles the commit phase found no ready head.
	Bubbles uint64
	// Stalls is the number of cycles issue was blocked on station pressure.
	Stalls uint64
	// Mispredictions is the number of mispredicted branches.
	Mispredictions uint64
	// IPC is instructions completed per cycle.
	IPC float64
	// PredictorAccuracy is the branch predictor hit fraction in [0, 1].
	PredictorAccuracy float64
}

// Core wires a program into an engine and exposes a simple run interface.
type Core struct {
	// Engine is the underlying simulation engine.
	Engine *tomasulo.Engine

	program *loader.Program
}

// NewCore creates a core for the given program.
func NewCore(program *loader.Program, config tomasulo.Config, opts ...tomasulo.Option) (*Core, error) {
	engine, err := tomasulo.NewEngine(config, opts...)
	if err != nil {
		return nil, err
	}
	engine.LoadProgram(program.Instructions)

	return &Core{
		Engine:  engine,
		program: program,
	}, nil
}

// Program returns the loaded program.
func (c *Core) Program() *loader.Program {
	return c.program
}

// Tick advances the core one cycle.
func (c *Core) Tick() {
	c.Engine.Step()
}

// Finished returns true once the program has drained.
func (c *Core) Finished() bool {
	return c.Engine.Finished()
}

// Run executes until the program drains. It returns false if the engine's
// safety bound fired first.
func (c *Core) Run() bool {
	return c.Engine.Run()
}

// Reset restores the freshly loaded state.
func (c *Core) Reset() {
	c.Engine.Reset()
}

// Snapshot captures the current observable state.
func (c *Core) Snapshot() tomasulo.Snapshot {
	return c.Engine.Snapshot()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	metrics := c.Engine.Metrics()
	return Stats{
		Cycles:            metrics.TotalCycles,
		Issued:            metrics.InstructionsIssued,
		Completed:         metrics.InstructionsCompleted,
		Bubbles:           metrics.BubbleCycles,
		Stalls:            metrics.StallCycles,
		Mispredictions:    metrics.BranchMispredictions,
		IPC:               metrics.IPC(),
		PredictorAccuracy: c.Engine.Predictor().Stats().Accuracy(),
	}
}
