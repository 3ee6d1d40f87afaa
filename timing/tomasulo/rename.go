package tomasulo

import "github.com/giusfds/tomsim/insts"

// RegisterStatus is the register rename table. It maps each architectural
// register to the reorder-buffer slot of its most recent in-flight writer;
// a register with no producer reads its authoritative value from the
// register file.
type RegisterStatus struct {
	producer [insts.NumRegs]int
}

// NewRegisterStatus creates a rename table with no pending producers.
func NewRegisterStatus() *RegisterStatus {
	rs := &RegisterStatus{}
	rs.Reset()
	return rs
}

// Producer returns the ROB slot that will produce reg, or None.
func (rs *RegisterStatus) Producer(reg uint8) int {
	if reg >= insts.NumRegs {
		return None
	}
	return rs.producer[reg]
}

// SetProducer records that reg will be written by the given ROB slot. A
// newer writer overwrites any older mapping.
func (rs *RegisterStatus) SetProducer(reg uint8, slot int) {
	if reg >= insts.NumRegs {
		return
	}
	rs.producer[reg] = slot
}

// ClearIfProducer removes the mapping for reg only if it still names the
// given slot; a younger writer may already have shadowed it.
func (rs *RegisterStatus) ClearIfProducer(reg uint8, slot int) {
	if reg < insts.NumRegs && rs.producer[reg] == slot {
		rs.producer[reg] = None
	}
}

// Reset removes all pending producers.
func (rs *RegisterStatus) Reset() {
	for i := range rs.producer {
		rs.producer[i] = None
	}
}
