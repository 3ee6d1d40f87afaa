// Package tomasulo provides a cycle-accurate model of Tomasulo's algorithm
// with a reorder buffer and speculative execution.
//
// The machine implements the classic design:
//   - Reservation stations with operand capture (Vj/Vk) and pending
//     producers (Qj/Qk) resolved over a common data bus
//   - A reorder buffer retiring at most one instruction per cycle in
//     program order
//   - Register renaming through a register-status table
//   - A per-PC 2-bit branch predictor driving speculative issue, with
//     misprediction recovery at commit
//
// Each clock tick runs four phases in a fixed order: Commit, Write-Result,
// Execute, Issue. Retiring first frees resources before Issue examines
// them, and broadcasting before Execute bounds same-cycle forwarding to one
// bus hop per tick.
package tomasulo

import (
	"fmt"

	"github.com/giusfds/tomsim/emu"
	"github.com/giusfds/tomsim/insts"
	"github.com/giusfds/tomsim/timing/latency"
)

// SafetyBound is the cycle count after which Run gives up on a program that
// never drains.
const SafetyBound = 10000

// Engine is the simulation core. It owns the architectural and
// microarchitectural state of one machine and advances it one cycle per
// Step call.
type Engine struct {
	config    Config
	latencies *latency.Table

	addRS   []*ReservationStation
	mulRS   []*ReservationStation
	loadRS  []*ReservationStation
	storeRS []*ReservationStation

	rob       *ROB
	regStatus *RegisterStatus
	regFile   *emu.RegFile
	memory    *emu.Memory
	predictor *BranchPredictor

	program []*insts.Instruction
	pc      int

	cycle    int
	finished bool

	metrics Metrics

	// Speculation control: set while a predicted-taken branch is in flight.
	speculating     bool
	speculationSlot int

	checkInvariants bool
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLatencyTable sets a custom latency table.
func WithLatencyTable(table *latency.Table) Option {
	return func(e *Engine) {
		e.latencies = table
	}
}

// WithInvariantChecks enables structural validation after every tick. A
// violation panics with a description of the broken invariant; intended for
// tests and debugging drivers.
func WithInvariantChecks() Option {
	return func(e *Engine) {
		e.checkInvariants = true
	}
}

// NewEngine creates an engine with the given structural configuration.
func NewEngine(config Config, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{
		config:          config,
		rob:             NewROB(config.ROBSize),
		regStatus:       NewRegisterStatus(),
		regFile:         emu.NewRegFile(),
		memory:          emu.NewMemory(),
		predictor:       NewBranchPredictor(),
		speculationSlot: None,
	}

	for i := 0; i < config.AddStations; i++ {
		e.addRS = append(e.addRS, NewReservationStation(fmt.Sprintf("Add%d", i+1), ClassAdd))
	}
	for i := 0; i < config.MulStations; i++ {
		e.mulRS = append(e.mulRS, NewReservationStation(fmt.Sprintf("Mult%d", i+1), ClassMult))
	}
	for i := 0; i < config.LoadStations; i++ {
		e.loadRS = append(e.loadRS, NewReservationStation(fmt.Sprintf("Load%d", i+1), ClassLoad))
	}
	for i := 0; i < config.StoreStations; i++ {
		e.storeRS = append(e.storeRS, NewReservationStation(fmt.Sprintf("Store%d", i+1), ClassStore))
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.latencies == nil {
		e.latencies = latency.NewTable()
	}

	return e, nil
}

// LoadProgram installs a program and resets the machine.
func (e *Engine) LoadProgram(program []*insts.Instruction) {
	e.program = program
	e.Reset()
}

// Reset returns the machine to the freshly loaded state: registers and
// memory cleared, pipeline drained, counters zeroed, predictor cleared.
func (e *Engine) Reset() {
	for _, rs := range e.allStations() {
		rs.Clear()
	}
	e.rob.Reset()
	e.regStatus.Reset()
	e.regFile.Reset()
	e.memory.Reset()
	e.predictor.Reset()

	for _, inst := range e.program {
		inst.ResetTracking()
	}

	e.pc = 0
	e.cycle = 0
	e.finished = false
	e.metrics = Metrics{}
	e.speculating = false
	e.speculationSlot = None
}

// Config returns the structural configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Cycle returns the current clock value.
func (e *Engine) Cycle() int {
	return e.cycle
}

// PC returns the program index of the next instruction to issue.
func (e *Engine) PC() int {
	return e.pc
}

// Finished returns true once the program is exhausted and the reorder
// buffer has drained.
func (e *Engine) Finished() bool {
	return e.finished
}

// Metrics returns the performance counters.
func (e *Engine) Metrics() Metrics {
	return e.metrics
}

// Predictor returns the branch predictor.
func (e *Engine) Predictor() *BranchPredictor {
	return e.predictor
}

// RegFile returns the architectural register file.
func (e *Engine) RegFile() *emu.RegFile {
	return e.regFile
}

// Memory returns the data memory.
func (e *Engine) Memory() *emu.Memory {
	return e.memory
}

// Program returns the loaded instruction list.
func (e *Engine) Program() []*insts.Instruction {
	return e.program
}

// Step advances the clock one cycle, running the four phases in order.
// It returns false once the machine has finished.
func (e *Engine) Step() bool {
	if e.finished {
		return false
	}

	e.cycle++
	e.metrics.TotalCycles++

	// 1. Commit: retire the head, freeing its slot before Issue runs.
	e.doCommit()

	// 2. Write-Result: broadcast finished results over the data bus.
	e.doWriteResult()

	// 3. Execute: count down ready stations, compute completions.
	e.doExecute()

	// 4. Issue: dispatch the next instruction if resources allow.
	e.doIssue()

	if e.checkInvariants {
		e.validateInvariants()
	}

	if e.isDrained() {
		e.finished = true
	}

	return !e.finished
}

// Run executes the machine until it finishes. It returns false if the
// safety bound was exceeded before the program drained.
func (e *Engine) Run() bool {
	for !e.finished {
		e.Step()
		if e.cycle > SafetyBound {
			return false
		}
	}
	return true
}

// allStations returns every station in declared pool order. The order is
// fixed so that broadcast and execution scans are deterministic.
func (e *Engine) allStations() []*ReservationStation {
	all := make([]*ReservationStation, 0,
		len(e.addRS)+len(e.mulRS)+len(e.loadRS)+len(e.storeRS))
	all = append(all, e.addRS...)
	all = append(all, e.mulRS...)
	all = append(all, e.loadRS...)
	all = append(all, e.storeRS...)
	return all
}

// freeStation returns an idle station of the pool serving op, or nil.
func (e *Engine) freeStation(op insts.Op) *ReservationStation {
	var pool []*ReservationStation
	switch ClassForOp(op) {
	case ClassAdd:
		pool = e.addRS
	case ClassMult:
		pool = e.mulRS
	case ClassLoad:
		pool = e.loadRS
	case ClassStore:
		pool = e.storeRS
	}
	for _, rs := range pool {
		if !rs.Busy {
			return rs
		}
	}
	return nil
}

// doIssue dispatches the instruction at PC into a free station and reorder
// buffer slot. A full reorder buffer skips issue silently (the head will
// report bubbles); station exhaustion counts a stall.
func (e *Engine) doIssue() {
	if e.rob.Full() {
		return
	}
	if e.pc >= len(e.program) {
		return
	}

	inst := e.program[e.pc]

	rs := e.freeStation(inst.Op)
	if rs == nil {
		e.metrics.StallCycles++
		return
	}

	entry := e.rob.Allocate()
	if entry == nil {
		return
	}

	entry.Busy = true
	entry.Inst = inst
	entry.State = ROBIssue
	entry.Speculative = e.speculating

	rs.Busy = true
	rs.Op = inst.Op
	rs.Dest = entry.Index
	rs.Inst = inst
	rs.CyclesRemaining = e.latencies.ForOp(inst.Op)

	// Sources are read before the destination is renamed, so an instruction
	// that reads its own destination register sees the older producer.
	e.captureOperands(rs, inst)

	switch {
	case inst.Op.WritesRegister():
		entry.DestReg = inst.Dest
		// R0 is never renamed: it always reads as 0.
		if inst.Dest != 0 {
			e.regStatus.SetProducer(inst.Dest, entry.Index)
		}
	case inst.Op == insts.OpSW:
		entry.DestTag = fmt.Sprintf("Mem[%d]", inst.Offset)
	}

	inst.IssueCycle = e.cycle
	inst.Stage = insts.StageIssued
	inst.ROBSlot = entry.Index
	inst.RSName = rs.Name

	if inst.Op.IsBranch() {
		predicted := e.predictor.Predict(inst.PC)
		entry.BranchPredicted = predicted
		if predicted {
			// Issue past this branch is speculative until it retires.
			e.speculating = true
			e.speculationSlot = entry.Index
		}
	}

	e.pc++
	e.metrics.InstructionsIssued++
}

// captureOperands seeds a station's Vj/Vk/Qj/Qk from the rename table, the
// reorder buffer, and the register file. A producer that already finished
// is read directly from its slot, avoiding a needless bus wait.
func (e *Engine) captureOperands(rs *ReservationStation, inst *insts.Instruction) {
	if inst.Src1 != insts.RegNone {
		rs.Vj, rs.Qj = e.readOperand(inst.Src1)
	}
	if inst.Src2 != insts.RegNone {
		rs.Vk, rs.Qk = e.readOperand(inst.Src2)
	}
}

func (e *Engine) readOperand(reg uint8) (value int32, pending int) {
	if producer := e.regStatus.Producer(reg); producer != None {
		entry := e.rob.Entry(producer)
		if entry.Ready {
			return entry.Value, None
		}
		return 0, producer
	}
	return e.regFile.Read(reg), None
}

// doExecute advances every ready station. A station completing this cycle
// computes its result into its reorder-buffer slot. Loads additionally wait
// until every older store has retired: stores mutate memory only at commit,
// so a load that read earlier would see stale words.
func (e *Engine) doExecute() {
	for _, rs := range e.allStations() {
		if !rs.Busy || !rs.Ready() {
			continue
		}
		if rs.Op == insts.OpLW && e.hasOlderStore(rs.Dest) {
			continue
		}

		if rs.CyclesRemaining > 0 {
			rs.CyclesRemaining--
			rs.Inst.Stage = insts.StageExecuting
			if rs.Inst.ExecStartCycle == 0 {
				rs.Inst.ExecStartCycle = e.cycle
				e.rob.Entry(rs.Dest).State = ROBExecute
			}
		}

		if rs.CyclesRemaining == 0 {
			e.computeResult(rs)
			rs.Inst.ExecEndCycle = e.cycle
		}
	}
}

// hasOlderStore reports whether any store ahead of the given slot in the
// busy arc has not yet retired.
func (e *Engine) hasOlderStore(slot int) bool {
	for i := e.rob.HeadIndex(); i != slot; i = (i + 1) % e.rob.Size() {
		entry := e.rob.Entry(i)
		if entry.Busy && entry.Inst != nil && entry.Inst.Op == insts.OpSW {
			return true
		}
	}
	return false
}

// computeResult evaluates a finished operation into its reorder-buffer
// slot and marks the slot ready for broadcast.
func (e *Engine) computeResult(rs *ReservationStation) {
	entry := e.rob.Entry(rs.Dest)
	inst := rs.Inst

	switch inst.Op {
	case insts.OpADD:
		entry.Value = rs.Vj + rs.Vk
	case insts.OpSUB:
		entry.Value = rs.Vj - rs.Vk
	case insts.OpMUL:
		entry.Value = rs.Vj * rs.Vk
	case insts.OpDIV:
		if rs.Vk == 0 {
			entry.Value = 0
		} else {
			entry.Value = rs.Vj / rs.Vk
		}
	case insts.OpADDI:
		entry.Value = rs.Vj + inst.Imm
	case insts.OpLW:
		addr := rs.Vj + inst.Offset
		rs.Address = addr
		rs.HasAddress = true
		entry.Value = e.memory.Read(addr)
	case insts.OpSW:
		addr := rs.Vj + inst.Offset
		rs.Address = addr
		rs.HasAddress = true
		// Commit runs after the station is freed, so the address lives in
		// the slot.
		entry.StoreAddress = addr
		entry.HasStoreAddress = true
		entry.Value = rs.Vk
	case insts.OpBEQ, insts.OpBNE:
		taken := rs.Vj == rs.Vk
		if inst.Op == insts.OpBNE {
			taken = rs.Vj != rs.Vk
		}
		entry.BranchActual = taken
		entry.BranchResolved = true
		e.predictor.Update(inst.PC, taken)
		if entry.BranchPredicted != taken {
			e.metrics.BranchMispredictions++
		}
	case insts.OpJ, insts.OpNOP:
		// No result.
	}

	entry.Ready = true
	entry.State = ROBWrite
}

// doWriteResult broadcasts every finished station's result over the common
// data bus, waking dependent stations, then frees the station. All
// completions broadcast within one phase, in pool order.
func (e *Engine) doWriteResult() {
	stations := e.allStations()
	for _, rs := range stations {
		if !rs.Busy {
			continue
		}
		entry := e.rob.Entry(rs.Dest)
		if !entry.Ready || entry.State != ROBWrite {
			continue
		}

		for _, waiter := range stations {
			if !waiter.Busy {
				continue
			}
			if waiter.Qj == rs.Dest {
				waiter.Vj = entry.Value
				waiter.Qj = None
			}
			if waiter.Qk == rs.Dest {
				waiter.Vk = entry.Value
				waiter.Qk = None
			}
		}

		entry.State = ROBCommit
		rs.Inst.WriteCycle = e.cycle
		rs.Inst.Stage = insts.StageWriteResult
		rs.Clear()
	}
}

// doCommit retires the head entry if it is ready; otherwise the cycle is a
// bubble. At most one instruction retires per cycle.
func (e *Engine) doCommit() {
	entry := e.rob.Head()
	if !entry.Busy || entry.State != ROBCommit {
		e.metrics.BubbleCycles++
		return
	}

	inst := entry.Inst

	switch {
	case inst.Op.IsBranch():
		if entry.BranchPredicted != entry.BranchActual {
			e.flushSpeculative(entry)
		} else if entry.Index == e.speculationSlot {
			// The speculated-past branch resolved as predicted; issue is no
			// longer speculative.
			e.speculating = false
			e.speculationSlot = None
		}
	case inst.Op.WritesRegister():
		e.regFile.Write(entry.DestReg, entry.Value)
		e.regStatus.ClearIfProducer(entry.DestReg, entry.Index)
	case inst.Op == insts.OpSW:
		if entry.HasStoreAddress {
			e.memory.Write(entry.StoreAddress, entry.Value)
		}
	}

	inst.CommitCycle = e.cycle
	inst.Stage = insts.StageCommit

	entry.Clear()
	e.rob.AdvanceHead()
	e.metrics.InstructionsCompleted++
}

// flushSpeculative squashes everything issued past a mispredicted branch:
// stations holding speculative work, speculative reorder-buffer slots, and
// rename mappings that still point at them. Issue then resumes at the
// instruction after the branch. When nothing was marked speculative (the
// branch was predicted not taken) there is nothing to squash and the ring
// is left alone.
func (e *Engine) flushSpeculative(branch *ROBEntry) {
	for _, rs := range e.allStations() {
		if !rs.Busy || rs.Inst == nil || rs.Inst.ROBSlot == None {
			continue
		}
		if e.rob.Entry(rs.Inst.ROBSlot).Speculative {
			rs.Clear()
		}
	}

	squashed := false
	for i := 0; i < e.rob.Size(); i++ {
		entry := e.rob.Entry(i)
		if !entry.Busy || !entry.Speculative {
			continue
		}
		if entry.DestReg != insts.RegNone {
			e.regStatus.ClearIfProducer(entry.DestReg, entry.Index)
		}
		entry.Inst.ResetTracking()
		entry.Clear()
		squashed = true
	}

	if squashed {
		e.rob.SetTail((branch.Index + 1) % e.rob.Size())
		e.pc = branch.Inst.PC + 1
	}

	e.speculating = false
	e.speculationSlot = None
}

// isDrained reports whether the program is exhausted and nothing is in
// flight.
func (e *Engine) isDrained() bool {
	return e.pc >= len(e.program) && e.rob.Empty()
}
