package emu

import "github.com/giusfds/tomsim/insts"

// Interpreter executes a program functionally, one instruction per step in
// program order. It shares the instruction model with the timing simulator
// and serves as the architectural reference: after both run the same
// program, registers and memory must agree.
//
// Control flow follows the same symbolic-target model as the timing
// simulator: branches and jumps evaluate their condition but never redirect
// execution, so the instruction stream is always sequential.
type Interpreter struct {
	regFile *RegFile
	memory  *Memory

	program []*insts.Instruction
	pc      int

	instructionCount uint64
}

// NewInterpreter creates an interpreter for the given program.
func NewInterpreter(program []*insts.Instruction) *Interpreter {
	return &Interpreter{
		regFile: NewRegFile(),
		memory:  NewMemory(),
		program: program,
	}
}

// RegFile returns the interpreter's register file.
func (it *Interpreter) RegFile() *RegFile {
	return it.regFile
}

// Memory returns the interpreter's memory.
func (it *Interpreter) Memory() *Memory {
	return it.memory
}

// PC returns the index of the next instruction to execute.
func (it *Interpreter) PC() int {
	return it.pc
}

// InstructionCount returns the number of instructions executed so far.
func (it *Interpreter) InstructionCount() uint64 {
	return it.instructionCount
}

// Done returns true when the program is exhausted.
func (it *Interpreter) Done() bool {
	return it.pc >= len(it.program)
}

// Step executes one instruction. It returns false when the program is
// exhausted.
func (it *Interpreter) Step() bool {
	if it.Done() {
		return false
	}

	inst := it.program[it.pc]
	it.execute(inst)
	it.pc++
	it.instructionCount++
	return !it.Done()
}

// Run executes the program to completion.
func (it *Interpreter) Run() {
	for !it.Done() {
		it.Step()
	}
}

// Reset returns the interpreter to the freshly loaded state.
func (it *Interpreter) Reset() {
	it.regFile.Reset()
	it.memory.Reset()
	it.pc = 0
	it.instructionCount = 0
}

func (it *Interpreter) execute(inst *insts.Instruction) {
	switch inst.Op {
	case insts.OpADD:
		it.regFile.Write(inst.Dest, it.regFile.Read(inst.Src1)+it.regFile.Read(inst.Src2))
	case insts.OpSUB:
		it.regFile.Write(inst.Dest, it.regFile.Read(inst.Src1)-it.regFile.Read(inst.Src2))
	case insts.OpMUL:
		it.regFile.Write(inst.Dest, it.regFile.Read(inst.Src1)*it.regFile.Read(inst.Src2))
	case insts.OpDIV:
		divisor := it.regFile.Read(inst.Src2)
		if divisor == 0 {
			it.regFile.Write(inst.Dest, 0)
		} else {
			it.regFile.Write(inst.Dest, it.regFile.Read(inst.Src1)/divisor)
		}
	case insts.OpADDI:
		it.regFile.Write(inst.Dest, it.regFile.Read(inst.Src1)+inst.Imm)
	case insts.OpLW:
		addr := it.regFile.Read(inst.Src1) + inst.Offset
		it.regFile.Write(inst.Dest, it.memory.Read(addr))
	case insts.OpSW:
		addr := it.regFile.Read(inst.Src1) + inst.Offset
		it.memory.Write(addr, it.regFile.Read(inst.Src2))
	case insts.OpBEQ, insts.OpBNE, insts.OpJ, insts.OpNOP:
		// Branch targets are symbolic; execution stays sequential.
	}
}
