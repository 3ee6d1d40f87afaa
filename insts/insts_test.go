package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/giusfds/tomsim/insts"
)

var _ = Describe("Instruction", func() {
	Describe("String", func() {
		It("should render three-register arithmetic", func() {
			inst := insts.New(insts.OpADD, 0)
			inst.Dest, inst.Src1, inst.Src2 = 3, 1, 2
			Expect(inst.String()).To(Equal("ADD R3, R1, R2"))
		})

		It("should render immediates", func() {
			inst := insts.New(insts.OpADDI, 0)
			inst.Dest, inst.Src1, inst.Imm = 1, 0, -7
			Expect(inst.String()).To(Equal("ADDI R1, R0, -7"))
		})

		It("should render loads with offset addressing", func() {
			inst := insts.New(insts.OpLW, 0)
			inst.Dest, inst.Src1, inst.Offset = 4, 2, 8
			Expect(inst.String()).To(Equal("LW R4, 8(R2)"))
		})

		It("should render stores with the value register first", func() {
			inst := insts.New(insts.OpSW, 0)
			inst.Src1, inst.Src2, inst.Offset = 1, 2, 0
			Expect(inst.String()).To(Equal("SW R2, 0(R1)"))
		})

		It("should render branches with their label", func() {
			inst := insts.New(insts.OpBNE, 0)
			inst.Src1, inst.Src2, inst.Label = 1, 2, "loop"
			Expect(inst.String()).To(Equal("BNE R1, R2, loop"))
		})

		It("should render jumps and NOPs", func() {
			j := insts.New(insts.OpJ, 0)
			j.Label = "end"
			Expect(j.String()).To(Equal("J end"))
			Expect(insts.New(insts.OpNOP, 0).String()).To(Equal("NOP"))
		})
	})

	Describe("New", func() {
		It("should clear operands and tracking state", func() {
			inst := insts.New(insts.OpNOP, 5)
			Expect(inst.Dest).To(Equal(insts.RegNone))
			Expect(inst.Src1).To(Equal(insts.RegNone))
			Expect(inst.Src2).To(Equal(insts.RegNone))
			Expect(inst.PC).To(Equal(5))
			Expect(inst.ROBSlot).To(Equal(-1))
			Expect(inst.Stage).To(Equal(insts.StageWaiting))
		})
	})

	Describe("ResetTracking", func() {
		It("should return an in-flight instruction to the waiting state", func() {
			inst := insts.New(insts.OpADD, 0)
			inst.Stage = insts.StageExecuting
			inst.IssueCycle = 3
			inst.ExecStartCycle = 4
			inst.ROBSlot = 2
			inst.RSName = "Add1"

			inst.ResetTracking()

			Expect(inst.Stage).To(Equal(insts.StageWaiting))
			Expect(inst.IssueCycle).To(BeZero())
			Expect(inst.ExecStartCycle).To(BeZero())
			Expect(inst.ROBSlot).To(Equal(-1))
			Expect(inst.RSName).To(BeEmpty())
		})
	})

	Describe("Op classification", func() {
		It("should classify register writers", func() {
			Expect(insts.OpADD.WritesRegister()).To(BeTrue())
			Expect(insts.OpADDI.WritesRegister()).To(BeTrue())
			Expect(insts.OpLW.WritesRegister()).To(BeTrue())
			Expect(insts.OpSW.WritesRegister()).To(BeFalse())
			Expect(insts.OpBEQ.WritesRegister()).To(BeFalse())
			Expect(insts.OpJ.WritesRegister()).To(BeFalse())
		})

		It("should classify branches and memory operations", func() {
			Expect(insts.OpBEQ.IsBranch()).To(BeTrue())
			Expect(insts.OpBNE.IsBranch()).To(BeTrue())
			Expect(insts.OpJ.IsBranch()).To(BeFalse())
			Expect(insts.OpLW.IsMemory()).To(BeTrue())
			Expect(insts.OpSW.IsMemory()).To(BeTrue())
			Expect(insts.OpADD.IsMemory()).To(BeFalse())
		})
	})

	Describe("Stage", func() {
		It("should name every stage", func() {
			Expect(insts.StageWaiting.String()).To(Equal("Waiting"))
			Expect(insts.StageIssued.String()).To(Equal("Issued"))
			Expect(insts.StageExecuting.String()).To(Equal("Executing"))
			Expect(insts.StageWriteResult.String()).To(Equal("WriteResult"))
			Expect(insts.StageCommit.String()).To(Equal("Commit"))
		})
	})
})
