package tomasulo

import (
	"github.com/giusfds/tomsim/insts"
)

// StationSnapshot is a read-only copy of one reservation station.
type StationSnapshot struct {
	Name  string
	Class Class
	Busy  bool
	Op    insts.Op
	Vj    int32
	Vk    int32
	Qj    int
	Qk    int
	Dest  int

	// Instruction is the assembly text of the held instruction, "" if free.
	Instruction string
}

// ROBEntrySnapshot is a read-only copy of one reorder-buffer slot.
type ROBEntrySnapshot struct {
	Index       int
	Busy        bool
	Instruction string
	State       ROBState
	Dest        string
	Value       int32
	Ready       bool
	Speculative bool
}

// InstructionSnapshot is a read-only copy of one instruction's progress.
type InstructionSnapshot struct {
	PC          int
	Text        string
	Stage       insts.Stage
	IssueCycle  int
	ExecStart   int
	ExecEnd     int
	WriteCycle  int
	CommitCycle int
}

// Snapshot is a deep copy of the observable machine state, safe to hold
// across ticks. Drivers and UIs consume snapshots; they never see internal
// state by reference.
type Snapshot struct {
	Cycle    int
	PC       int
	Finished bool

	Registers [insts.NumRegs]int32
	Memory    map[int32]int32

	AddStations   []StationSnapshot
	MulStations   []StationSnapshot
	LoadStations  []StationSnapshot
	StoreStations []StationSnapshot

	ROB     []ROBEntrySnapshot
	ROBHead int
	ROBTail int

	Instructions []InstructionSnapshot

	Metrics   Metrics
	Predictor BranchPredictorStats
}

// Snapshot captures the current machine state. The returned value shares
// nothing with the engine.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Cycle:     e.cycle,
		PC:        e.pc,
		Finished:  e.finished,
		Registers: e.regFile.Snapshot(),
		Memory:    e.memory.Snapshot(),
		ROBHead:   e.rob.HeadIndex(),
		ROBTail:   e.rob.TailIndex(),
		Metrics:   e.metrics,
		Predictor: e.predictor.Stats(),
	}

	snap.AddStations = snapshotPool(e.addRS)
	snap.MulStations = snapshotPool(e.mulRS)
	snap.LoadStations = snapshotPool(e.loadRS)
	snap.StoreStations = snapshotPool(e.storeRS)

	snap.ROB = make([]ROBEntrySnapshot, e.rob.Size())
	for i := 0; i < e.rob.Size(); i++ {
		entry := e.rob.Entry(i)
		es := ROBEntrySnapshot{
			Index:       entry.Index,
			Busy:        entry.Busy,
			State:       entry.State,
			Value:       entry.Value,
			Ready:       entry.Ready,
			Speculative: entry.Speculative,
		}
		if entry.Busy && entry.Inst != nil {
			es.Instruction = entry.Inst.String()
		}
		switch {
		case entry.DestReg != insts.RegNone:
			es.Dest = insts.RegName(entry.DestReg)
		case entry.DestTag != "":
			es.Dest = entry.DestTag
		default:
			es.Dest = "-"
		}
		snap.ROB[i] = es
	}

	snap.Instructions = make([]InstructionSnapshot, len(e.program))
	for i, inst := range e.program {
		snap.Instructions[i] = InstructionSnapshot{
			PC:          inst.PC,
			Text:        inst.String(),
			Stage:       inst.Stage,
			IssueCycle:  inst.IssueCycle,
			ExecStart:   inst.ExecStartCycle,
			ExecEnd:     inst.ExecEndCycle,
			WriteCycle:  inst.WriteCycle,
			CommitCycle: inst.CommitCycle,
		}
	}

	return snap
}

func snapshotPool(pool []*ReservationStation) []StationSnapshot {
	out := make([]StationSnapshot, len(pool))
	for i, rs := range pool {
		s := StationSnapshot{
			Name:  rs.Name,
			Class: rs.Class,
			Busy:  rs.Busy,
			Op:    rs.Op,
			Vj:    rs.Vj,
			Vk:    rs.Vk,
			Qj:    rs.Qj,
			Qk:    rs.Qk,
			Dest:  rs.Dest,
		}
		if rs.Inst != nil {
			s.Instruction = rs.Inst.String()
		}
		out[i] = s
	}
	return out
}
