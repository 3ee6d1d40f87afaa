package tomasulo

import (
	"fmt"

	"github.com/giusfds/tomsim/insts"
)

// ROBState tracks how far a reorder-buffer entry has progressed.
type ROBState uint8

// Reorder-buffer entry states.
const (
	ROBIssue ROBState = iota
	ROBExecute
	ROBWrite
	ROBCommit
)

// String returns a human-readable state name.
func (s ROBState) String() string {
	switch s {
	case ROBIssue:
		return "Issue"
	case ROBExecute:
		return "Execute"
	case ROBWrite:
		return "Write"
	case ROBCommit:
		return "Commit"
	default:
		return "Unknown"
	}
}

// ROBEntry is one slot of the reorder buffer.
type ROBEntry struct {
	// Index is the slot's fixed position in the ring.
	Index int

	Busy  bool
	Inst  *insts.Instruction
	State ROBState

	// DestReg is the architectural destination register for register-writing
	// operations, insts.RegNone otherwise. DestTag carries the symbolic
	// memory destination for stores.
	DestReg uint8
	DestTag string

	// Value is the computed result: the register value, the stored word for
	// SW, or unused for branches.
	Value int32
	Ready bool

	// Speculative marks entries issued past an unresolved predicted-taken
	// branch.
	Speculative bool

	// Branch bookkeeping: the predicted direction at issue and the actual
	// direction once Execute resolves it.
	BranchPredicted bool
	BranchActual    bool
	BranchResolved  bool

	// StoreAddress is captured at Execute so commit does not depend on the
	// station, which Write-Result frees first.
	StoreAddress    int32
	HasStoreAddress bool
}

// Clear frees the entry.
func (e *ROBEntry) Clear() {
	e.Busy = false
	e.Inst = nil
	e.State = ROBIssue
	e.DestReg = insts.RegNone
	e.DestTag = ""
	e.Value = 0
	e.Ready = false
	e.Speculative = false
	e.BranchPredicted = false
	e.BranchActual = false
	e.BranchResolved = false
	e.StoreAddress = 0
	e.HasStoreAddress = false
}

// String renders the entry for displays.
func (e *ROBEntry) String() string {
	if !e.Busy {
		return fmt.Sprintf("ROB%d: free", e.Index)
	}
	dest := e.DestTag
	if e.DestReg != insts.RegNone {
		dest = insts.RegName(e.DestReg)
	}
	if dest == "" {
		dest = "-"
	}
	return fmt.Sprintf("ROB%d: %s | %s | Dest=%s | Value=%d | Ready=%t",
		e.Index, e.Inst, e.State, dest, e.Value, e.Ready)
}

// ROB is a fixed-capacity ring of reorder-buffer entries. Busy entries form
// a contiguous arc from head (oldest, next to commit) to tail (next free
// slot).
type ROB struct {
	entries []*ROBEntry
	head    int
	tail    int
}

// NewROB creates an empty reorder buffer of the given capacity.
func NewROB(size int) *ROB {
	rob := &ROB{entries: make([]*ROBEntry, size)}
	for i := range rob.entries {
		rob.entries[i] = &ROBEntry{Index: i}
		rob.entries[i].Clear()
	}
	return rob
}

// Size returns the ring capacity.
func (r *ROB) Size() int {
	return len(r.entries)
}

// Head returns the oldest entry.
func (r *ROB) Head() *ROBEntry {
	return r.entries[r.head]
}

// HeadIndex returns the ring index of the oldest entry.
func (r *ROB) HeadIndex() int {
	return r.head
}

// TailIndex returns the ring index of the next free slot.
func (r *ROB) TailIndex() int {
	return r.tail
}

// Entry returns the entry at a ring index.
func (r *ROB) Entry(index int) *ROBEntry {
	return r.entries[index]
}

// Full reports whether no slot is free. The busy arc is contiguous, so the
// ring is full exactly when the tail slot is still occupied.
func (r *ROB) Full() bool {
	return r.entries[r.tail].Busy
}

// Empty reports whether no entry is in flight.
func (r *ROB) Empty() bool {
	return r.BusyCount() == 0
}

// BusyCount returns the number of in-flight entries.
func (r *ROB) BusyCount() int {
	count := 0
	for _, e := range r.entries {
		if e.Busy {
			count++
		}
	}
	return count
}

// Allocate claims the tail slot and advances the tail. Returns nil when the
// ring is full.
func (r *ROB) Allocate() *ROBEntry {
	if r.Full() {
		return nil
	}
	entry := r.entries[r.tail]
	r.tail = (r.tail + 1) % len(r.entries)
	return entry
}

// AdvanceHead moves the head past a retired entry.
func (r *ROB) AdvanceHead() {
	r.head = (r.head + 1) % len(r.entries)
}

// SetTail repositions the tail; used by misprediction recovery to discard
// the squashed arc.
func (r *ROB) SetTail(index int) {
	r.tail = index
}

// Reset clears every entry and rewinds head and tail.
func (r *ROB) Reset() {
	for _, e := range r.entries {
		e.Clear()
	}
	r.head = 0
	r.tail = 0
}
