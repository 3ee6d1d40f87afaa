// Package loader provides assembly-text parsing for simulator programs.
package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/giusfds/tomsim/insts"
)

// Program represents a parsed program ready for simulation.
type Program struct {
	// Instructions holds the decoded instructions in source order.
	// PCs are assigned 0..n-1.
	Instructions []*insts.Instruction

	// Labels maps label names to the PC of the following instruction.
	// Branch targets stay symbolic during simulation; the table exists for
	// display. Parse does not check that branch labels are defined.
	Labels map[string]int
}

// Load reads and parses an assembly file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	return Parse(string(data))
}

// Parse parses assembly text into a Program.
//
// Supported syntax:
//
//	OP rd, rs, rt       ADD, SUB, MUL, DIV
//	ADDI rd, rs, imm
//	LW rd, offset(rs)
//	SW rt, offset(rs)
//	BEQ rs, rt, label
//	BNE rs, rt, label
//	J label
//	NOP
//
// Comments run from '#' to end of line. A label is a name followed by ':'
// and may share a line with an instruction. Registers are R0..R31.
func Parse(src string) (*Program, error) {
	prog := &Program{Labels: make(map[string]int)}

	lines := strings.Split(src, "\n")

	// First pass: assign PCs to labels.
	pc := 0
	for lineNo, raw := range lines {
		text, label, err := splitLine(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		if label != "" {
			if _, dup := prog.Labels[label]; dup {
				return nil, fmt.Errorf("line %d: duplicate label %q", lineNo+1, label)
			}
			prog.Labels[label] = pc
		}
		if text != "" {
			pc++
		}
	}

	// Second pass: decode instructions.
	pc = 0
	for lineNo, raw := range lines {
		text, _, _ := splitLine(raw)
		if text == "" {
			continue
		}
		inst, err := parseInstruction(text, pc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		prog.Instructions = append(prog.Instructions, inst)
		pc++
	}

	return prog, nil
}

// splitLine strips comments and an optional leading label, returning the
// remaining instruction text (possibly empty) and the label name.
func splitLine(raw string) (text, label string, err error) {
	line := raw
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", nil
	}

	if i := strings.IndexByte(line, ':'); i >= 0 {
		label = strings.TrimSpace(line[:i])
		if label == "" || strings.ContainsAny(label, " \t") {
			return "", "", fmt.Errorf("malformed label %q", line[:i])
		}
		line = strings.TrimSpace(line[i+1:])
	}

	return line, label, nil
}

// parseInstruction decodes a single instruction line.
func parseInstruction(text string, pc int) (*insts.Instruction, error) {
	fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty instruction")
	}

	mnemonic := strings.ToUpper(fields[0])
	operands := fields[1:]

	switch mnemonic {
	case "ADD", "SUB", "MUL", "DIV":
		op := map[string]insts.Op{
			"ADD": insts.OpADD, "SUB": insts.OpSUB,
			"MUL": insts.OpMUL, "DIV": insts.OpDIV,
		}[mnemonic]
		if len(operands) != 3 {
			return nil, fmt.Errorf("%s expects 3 operands, got %d", mnemonic, len(operands))
		}
		inst := insts.New(op, pc)
		var err error
		if inst.Dest, err = parseRegister(operands[0]); err != nil {
			return nil, err
		}
		if inst.Src1, err = parseRegister(operands[1]); err != nil {
			return nil, err
		}
		if inst.Src2, err = parseRegister(operands[2]); err != nil {
			return nil, err
		}
		return inst, nil

	case "ADDI":
		if len(operands) != 3 {
			return nil, fmt.Errorf("ADDI expects 3 operands, got %d", len(operands))
		}
		inst := insts.New(insts.OpADDI, pc)
		var err error
		if inst.Dest, err = parseRegister(operands[0]); err != nil {
			return nil, err
		}
		if inst.Src1, err = parseRegister(operands[1]); err != nil {
			return nil, err
		}
		imm, err := strconv.ParseInt(operands[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad immediate %q", operands[2])
		}
		inst.Imm = int32(imm)
		return inst, nil

	case "LW", "SW":
		if len(operands) != 2 {
			return nil, fmt.Errorf("%s expects 2 operands, got %d", mnemonic, len(operands))
		}
		offset, base, err := parseMemOperand(operands[1])
		if err != nil {
			return nil, err
		}
		reg, err := parseRegister(operands[0])
		if err != nil {
			return nil, err
		}
		if mnemonic == "LW" {
			inst := insts.New(insts.OpLW, pc)
			inst.Dest = reg
			inst.Src1 = base
			inst.Offset = offset
			return inst, nil
		}
		// SW reads both the base and the stored register.
		inst := insts.New(insts.OpSW, pc)
		inst.Src1 = base
		inst.Src2 = reg
		inst.Offset = offset
		return inst, nil

	case "BEQ", "BNE":
		op := insts.OpBEQ
		if mnemonic == "BNE" {
			op = insts.OpBNE
		}
		if len(operands) != 3 {
			return nil, fmt.Errorf("%s expects 3 operands, got %d", mnemonic, len(operands))
		}
		inst := insts.New(op, pc)
		var err error
		if inst.Src1, err = parseRegister(operands[0]); err != nil {
			return nil, err
		}
		if inst.Src2, err = parseRegister(operands[1]); err != nil {
			return nil, err
		}
		inst.Label = operands[2]
		return inst, nil

	case "J":
		if len(operands) != 1 {
			return nil, fmt.Errorf("J expects 1 operand, got %d", len(operands))
		}
		inst := insts.New(insts.OpJ, pc)
		inst.Label = operands[0]
		return inst, nil

	case "NOP":
		if len(operands) != 0 {
			return nil, fmt.Errorf("NOP takes no operands")
		}
		return insts.New(insts.OpNOP, pc), nil
	}

	return nil, fmt.Errorf("unknown mnemonic %q", fields[0])
}

// parseRegister decodes a register name R0..R31.
func parseRegister(name string) (uint8, error) {
	upper := strings.ToUpper(name)
	if len(upper) < 2 || upper[0] != 'R' {
		return insts.RegNone, fmt.Errorf("bad register %q", name)
	}
	n, err := strconv.Atoi(upper[1:])
	if err != nil || n < 0 || n >= insts.NumRegs {
		return insts.RegNone, fmt.Errorf("bad register %q", name)
	}
	return uint8(n), nil
}

// parseMemOperand decodes an offset(base) memory operand.
func parseMemOperand(operand string) (offset int32, base uint8, err error) {
	open := strings.IndexByte(operand, '(')
	if open < 0 || !strings.HasSuffix(operand, ")") {
		return 0, insts.RegNone, fmt.Errorf("bad memory operand %q", operand)
	}
	off64, err := strconv.ParseInt(operand[:open], 10, 32)
	if err != nil {
		return 0, insts.RegNone, fmt.Errorf("bad memory offset %q", operand[:open])
	}
	base, err = parseRegister(operand[open+1 : len(operand)-1])
	if err != nil {
		return 0, insts.RegNone, err
	}
	return int32(off64), base, nil
}
