package tomasulo

import (
	"fmt"

	"github.com/giusfds/tomsim/insts"
)

// validateInvariants checks the machine's structural invariants. It panics
// on the first violation; a violation is a simulator bug, never a property
// of the simulated program.
func (e *Engine) validateInvariants() {
	e.checkROBOccupancy()
	e.checkRenameConsistency()
	e.checkStationState()
	e.checkTimestamps()
	e.checkCommitOrder()

	if e.regFile.Read(0) != 0 {
		panic("invariant violated: R0 must stay zero")
	}
}

// checkROBOccupancy verifies that busy slots form a contiguous arc from
// head to tail.
func (e *Engine) checkROBOccupancy() {
	size := e.rob.Size()
	busy := e.rob.BusyCount()

	arc := (e.rob.TailIndex() - e.rob.HeadIndex() + size) % size
	if arc == 0 && busy == size {
		arc = size
	}
	if busy != arc {
		panic(fmt.Sprintf(
			"invariant violated: %d busy ROB slots but head/tail arc spans %d",
			busy, arc))
	}

	for offset := 0; offset < size; offset++ {
		index := (e.rob.HeadIndex() + offset) % size
		wantBusy := offset < arc
		if e.rob.Entry(index).Busy != wantBusy {
			panic(fmt.Sprintf(
				"invariant violated: ROB slot %d busy=%t outside the contiguous arc",
				index, e.rob.Entry(index).Busy))
		}
	}
}

// checkRenameConsistency verifies that every rename mapping points at a
// busy slot producing that register.
func (e *Engine) checkRenameConsistency() {
	for reg := uint8(0); reg < insts.NumRegs; reg++ {
		slot := e.regStatus.Producer(reg)
		if slot == None {
			continue
		}
		entry := e.rob.Entry(slot)
		if !entry.Busy {
			panic(fmt.Sprintf(
				"invariant violated: %s renamed to free ROB slot %d",
				insts.RegName(reg), slot))
		}
		if entry.DestReg != reg {
			panic(fmt.Sprintf(
				"invariant violated: %s renamed to ROB slot %d which writes %s",
				insts.RegName(reg), slot, insts.RegName(entry.DestReg)))
		}
	}
}

// checkStationState verifies the busy-field coupling of every station: a
// free station holds no instruction or destination, and a busy one has an
// op, an instruction, and a busy destination ROB slot. Operand fields
// (Vj/Vk/Qj/Qk) are not checked.
func (e *Engine) checkStationState() {
	for _, rs := range e.allStations() {
		if !rs.Busy {
			if rs.Inst != nil || rs.Dest != None {
				panic(fmt.Sprintf("invariant violated: free station %s retains state", rs.Name))
			}
			continue
		}
		if rs.Inst == nil || rs.Dest == None || rs.Op == insts.OpUnknown {
			panic(fmt.Sprintf("invariant violated: busy station %s missing op/dest/instruction", rs.Name))
		}
		if !e.rob.Entry(rs.Dest).Busy {
			panic(fmt.Sprintf("invariant violated: station %s writes free ROB slot %d", rs.Name, rs.Dest))
		}
	}
}

// checkTimestamps verifies the per-instruction cycle ordering for every
// instruction that has progressed.
func (e *Engine) checkTimestamps() {
	for _, inst := range e.program {
		if inst.ExecStartCycle != 0 && inst.IssueCycle >= inst.ExecStartCycle {
			panic(fmt.Sprintf("invariant violated: PC %d issued at %d but began execute at %d",
				inst.PC, inst.IssueCycle, inst.ExecStartCycle))
		}
		if inst.ExecEndCycle != 0 && inst.ExecStartCycle > inst.ExecEndCycle {
			panic(fmt.Sprintf("invariant violated: PC %d execute span %d..%d",
				inst.PC, inst.ExecStartCycle, inst.ExecEndCycle))
		}
		if inst.WriteCycle != 0 && inst.ExecEndCycle >= inst.WriteCycle {
			panic(fmt.Sprintf("invariant violated: PC %d finished execute at %d but wrote at %d",
				inst.PC, inst.ExecEndCycle, inst.WriteCycle))
		}
		if inst.CommitCycle != 0 && inst.WriteCycle >= inst.CommitCycle {
			panic(fmt.Sprintf("invariant violated: PC %d wrote at %d but committed at %d",
				inst.PC, inst.WriteCycle, inst.CommitCycle))
		}
	}
}

// checkCommitOrder verifies that committed instructions retired in program
// order.
func (e *Engine) checkCommitOrder() {
	last := 0
	for _, inst := range e.program {
		if inst.CommitCycle == 0 {
			continue
		}
		if inst.CommitCycle <= last {
			panic(fmt.Sprintf("invariant violated: PC %d committed at %d, no later than an older commit at %d",
				inst.PC, inst.CommitCycle, last))
		}
		last = inst.CommitCycle
	}
}
