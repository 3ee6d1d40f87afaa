// Package emu provides the architectural state of the simulated machine and
// a functional in-order interpreter over it.
package emu

import "github.com/giusfds/tomsim/insts"

// RegFile represents the architectural register file.
// It contains 32 general-purpose registers R0-R31; R0 always reads as 0 and
// ignores writes.
type RegFile struct {
	regs [insts.NumRegs]int32
}

// NewRegFile creates a register file with all registers zeroed.
func NewRegFile() *RegFile {
	return &RegFile{}
}

// Read returns a register value. R0 and absent operands read as 0.
func (r *RegFile) Read(reg uint8) int32 {
	if reg == 0 || reg >= insts.NumRegs {
		return 0
	}
	return r.regs[reg]
}

// Write sets a register value. Writes to R0 are ignored.
func (r *RegFile) Write(reg uint8, value int32) {
	if reg == 0 || reg >= insts.NumRegs {
		return
	}
	r.regs[reg] = value
}

// Snapshot returns a copy of all register values.
func (r *RegFile) Snapshot() [insts.NumRegs]int32 {
	return r.regs
}

// Reset zeroes all registers.
func (r *RegFile) Reset() {
	r.regs = [insts.NumRegs]int32{}
}
