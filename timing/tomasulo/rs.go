package tomasulo

import (
	"fmt"

	"github.com/giusfds/tomsim/insts"
)

// None marks an empty reorder-buffer reference (operand producers, station
// destinations).
const None = -1

// Class identifies which reservation-station pool an operation dispatches to.
type Class uint8

// Reservation station classes.
const (
	ClassAdd Class = iota
	ClassMult
	ClassLoad
	ClassStore
)

// String returns the pool name.
func (c Class) String() string {
	switch c {
	case ClassAdd:
		return "Add"
	case ClassMult:
		return "Mult"
	case ClassLoad:
		return "Load"
	case ClassStore:
		return "Store"
	default:
		return "Unknown"
	}
}

// ClassForOp returns the pool an opcode dispatches to. Branches, jumps, and
// NOPs share the Add pool.
func ClassForOp(op insts.Op) Class {
	switch op {
	case insts.OpMUL, insts.OpDIV:
		return ClassMult
	case insts.OpLW:
		return ClassLoad
	case insts.OpSW:
		return ClassStore
	default:
		return ClassAdd
	}
}

// ReservationStation holds one pending operation and its operand-capture
// state. Vj/Vk are captured values; Qj/Qk name the reorder-buffer slots that
// will produce an operand still in flight. An operand never has both a value
// and a pending producer.
type ReservationStation struct {
	// Name and Class are fixed at construction.
	Name  string
	Class Class

	Busy bool
	Op   insts.Op

	Vj, Vk int32
	Qj, Qk int // producing ROB slot, or None

	// Dest is the ROB slot this station writes.
	Dest int

	// Address is the effective address computed for loads and stores.
	Address    int32
	HasAddress bool

	// Inst points at the live instruction record.
	Inst *insts.Instruction

	// CyclesRemaining counts down while the station is ready.
	CyclesRemaining int
}

// NewReservationStation creates a free station with a fixed identity.
func NewReservationStation(name string, class Class) *ReservationStation {
	rs := &ReservationStation{Name: name, Class: class}
	rs.Clear()
	return rs
}

// Clear frees the station.
func (rs *ReservationStation) Clear() {
	rs.Busy = false
	rs.Op = insts.OpUnknown
	rs.Vj = 0
	rs.Vk = 0
	rs.Qj = None
	rs.Qk = None
	rs.Dest = None
	rs.Address = 0
	rs.HasAddress = false
	rs.Inst = nil
	rs.CyclesRemaining = 0
}

// Ready returns true when both operands are resolved and the station can
// count down.
func (rs *ReservationStation) Ready() bool {
	return rs.Busy && rs.Qj == None && rs.Qk == None
}

// String renders the station for displays.
func (rs *ReservationStation) String() string {
	if !rs.Busy {
		return fmt.Sprintf("%s: free", rs.Name)
	}
	return fmt.Sprintf("%s: %s Vj=%d Vk=%d Qj=%s Qk=%s Dest=ROB%d",
		rs.Name, rs.Op, rs.Vj, rs.Vk, slotName(rs.Qj), slotName(rs.Qk), rs.Dest)
}

func slotName(slot int) string {
	if slot == None {
		return "-"
	}
	return fmt.Sprintf("ROB%d", slot)
}
