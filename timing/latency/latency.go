// Package latency provides instruction timing models for cycle-accurate
// simulation.
//
// Latency values can be configured via TimingConfig and loaded from JSON.
package latency

import (
	"github.com/giusfds/tomsim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with a custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// ForOp returns the execution latency in cycles for the given opcode.
// Opcodes without a configured latency (NOP) take one cycle.
func (t *Table) ForOp(op insts.Op) int {
	switch op {
	case insts.OpADD:
		return t.config.AddLatency
	case insts.OpSUB:
		return t.config.SubLatency
	case insts.OpADDI:
		return t.config.AddiLatency
	case insts.OpMUL:
		return t.config.MulLatency
	case insts.OpDIV:
		return t.config.DivLatency
	case insts.OpLW:
		return t.config.LoadLatency
	case insts.OpSW:
		return t.config.StoreLatency
	case insts.OpBEQ:
		return t.config.BeqLatency
	case insts.OpBNE:
		return t.config.BneLatency
	case insts.OpJ:
		return t.config.JumpLatency
	default:
		return 1
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
