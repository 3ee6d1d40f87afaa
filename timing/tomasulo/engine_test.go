package tomasulo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/giusfds/tomsim/emu"
	"github.com/giusfds/tomsim/insts"
	"github.com/giusfds/tomsim/loader"
	"github.com/giusfds/tomsim/timing/tomasulo"
)

// build parses a program into a fresh engine with invariant checking on.
func build(src string, config tomasulo.Config) *tomasulo.Engine {
	prog, err := loader.Parse(src)
	Expect(err).NotTo(HaveOccurred())

	engine, err := tomasulo.NewEngine(config, tomasulo.WithInvariantChecks())
	Expect(err).NotTo(HaveOccurred())
	engine.LoadProgram(prog.Instructions)
	return engine
}

func run(src string) *tomasulo.Engine {
	engine := build(src, tomasulo.DefaultConfig())
	Expect(engine.Run()).To(BeTrue())
	return engine
}

var _ = Describe("Engine", func() {
	Describe("NewEngine", func() {
		It("should reject undersized station pools", func() {
			config := tomasulo.DefaultConfig()
			config.AddStations = 0
			_, err := tomasulo.NewEngine(config)
			Expect(err).To(MatchError(ContainSubstring("add_rs")))
		})

		It("should reject an undersized reorder buffer", func() {
			config := tomasulo.DefaultConfig()
			config.ROBSize = 1
			_, err := tomasulo.NewEngine(config)
			Expect(err).To(MatchError(ContainSubstring("rob_size")))
		})
	})

	Describe("Independent arithmetic", func() {
		It("should compute a simple add chain", func() {
			engine := run(`
				ADDI R1, R0, 10
				ADDI R2, R0, 20
				ADD R3, R1, R2
			`)
			Expect(engine.RegFile().Read(1)).To(Equal(int32(10)))
			Expect(engine.RegFile().Read(2)).To(Equal(int32(20)))
			Expect(engine.RegFile().Read(3)).To(Equal(int32(30)))
			Expect(engine.Metrics().InstructionsCompleted).To(Equal(uint64(3)))
		})

		It("should order every instruction's phase timestamps", func() {
			engine := run(`
				ADDI R1, R0, 10
				ADDI R2, R0, 20
				ADD R3, R1, R2
			`)
			for _, inst := range engine.Program() {
				Expect(inst.IssueCycle).To(BeNumerically("<", inst.ExecStartCycle))
				Expect(inst.ExecStartCycle).To(BeNumerically("<=", inst.ExecEndCycle))
				Expect(inst.ExecEndCycle).To(BeNumerically("<", inst.WriteCycle))
				Expect(inst.WriteCycle).To(BeNumerically("<", inst.CommitCycle))
				Expect(inst.Stage).To(Equal(insts.StageCommit))
			}
		})

		It("should commit in program order", func() {
			engine := run(`
				ADDI R1, R0, 1
				MUL R2, R1, R1
				ADDI R3, R0, 3
			`)
			program := engine.Program()
			for i := 1; i < len(program); i++ {
				Expect(program[i-1].CommitCycle).To(
					BeNumerically("<", program[i].CommitCycle))
			}
		})
	})

	Describe("Data dependencies", func() {
		It("should forward values through the rename chain", func() {
			engine := run(`
				ADDI R1, R0, 5
				ADD R2, R1, R1
				MUL R3, R2, R1
				DIV R4, R3, R2
			`)
			Expect(engine.RegFile().Read(1)).To(Equal(int32(5)))
			Expect(engine.RegFile().Read(2)).To(Equal(int32(10)))
			Expect(engine.RegFile().Read(3)).To(Equal(int32(50)))
			Expect(engine.RegFile().Read(4)).To(Equal(int32(5)))
		})

		It("should hold an execute span at least as long as the latency", func() {
			engine := run("MUL R1, R0, R0\n")
			inst := engine.Program()[0]
			Expect(inst.ExecEndCycle - inst.ExecStartCycle + 1).To(
				BeNumerically(">=", 10))
		})

		It("should produce zero on division by zero", func() {
			engine := run(`
				ADDI R1, R0, 9
				DIV R2, R1, R0
			`)
			Expect(engine.RegFile().Read(2)).To(BeZero())
		})

		It("should suppress writes to R0", func() {
			engine := run("ADDI R0, R0, 5\n")
			Expect(engine.RegFile().Read(0)).To(BeZero())
		})
	})

	Describe("Memory operations", func() {
		It("should store at commit and load the stored words", func() {
			engine := run(`
				ADDI R1, R0, 100
				ADDI R2, R0, 42
				SW R2, 0(R1)
				SW R2, 4(R1)
				LW R3, 0(R1)
				LW R4, 4(R1)
				ADD R5, R3, R4
			`)
			Expect(engine.Memory().Read(100)).To(Equal(int32(42)))
			Expect(engine.Memory().Read(104)).To(Equal(int32(42)))
			Expect(engine.RegFile().Read(3)).To(Equal(int32(42)))
			Expect(engine.RegFile().Read(4)).To(Equal(int32(42)))
			Expect(engine.RegFile().Read(5)).To(Equal(int32(84)))
		})

		It("should not mutate memory before the store commits", func() {
			engine := build("ADDI R1, R0, 7\nSW R1, 0(R0)\n", tomasulo.DefaultConfig())
			for engine.Step() {
				store := engine.Program()[1]
				if store.CommitCycle == 0 {
					Expect(engine.Memory().Read(0)).To(BeZero())
				}
			}
			Expect(engine.Memory().Read(0)).To(Equal(int32(7)))
		})
	})

	Describe("Parallelism", func() {
		It("should overlap independent work across pools", func() {
			engine := run(`
				ADDI R1, R0, 1
				ADDI R2, R0, 2
				ADDI R3, R0, 3
				ADDI R4, R0, 4
				ADD R5, R1, R2
				MUL R6, R3, R4
			`)
			Expect(engine.RegFile().Read(5)).To(Equal(int32(3)))
			Expect(engine.RegFile().Read(6)).To(Equal(int32(12)))
			// Serial execution would take 1 + 4 adds + the multiply.
			Expect(engine.Metrics().TotalCycles).To(BeNumerically("<", 1+4*2+10))
		})
	})

	Describe("Structural hazards", func() {
		It("should count stalls only for station exhaustion", func() {
			config := tomasulo.DefaultConfig()
			config.AddStations = 1
			engine := build(`
				ADDI R1, R0, 1
				ADDI R2, R0, 2
				ADDI R3, R0, 3
				ADDI R4, R0, 4
				ADDI R5, R0, 5
				ADDI R6, R0, 6
				ADDI R7, R0, 7
				ADDI R8, R0, 8
				ADDI R9, R0, 9
				ADDI R10, R0, 10
			`, config)
			Expect(engine.Run()).To(BeTrue())

			// Each of the nine waiting instructions stalls while its
			// predecessor occupies the single station: two cycles of
			// latency per occupant.
			Expect(engine.Metrics().StallCycles).To(Equal(uint64(18)))
			Expect(engine.Metrics().InstructionsIssued).To(Equal(uint64(10)))
			Expect(engine.Metrics().InstructionsCompleted).To(Equal(uint64(10)))
		})

		It("should absorb a full reorder buffer as bubbles, not stalls", func() {
			config := tomasulo.DefaultConfig()
			config.ROBSize = 2
			engine := build(`
				ADDI R1, R0, 1
				ADDI R2, R0, 2
				ADDI R3, R0, 3
				ADDI R4, R0, 4
			`, config)
			Expect(engine.Run()).To(BeTrue())
			Expect(engine.Metrics().StallCycles).To(BeZero())
			Expect(engine.Metrics().BubbleCycles).To(BeNumerically(">", 0))
			Expect(engine.Metrics().InstructionsCompleted).To(Equal(uint64(4)))
		})
	})

	Describe("Control flow", func() {
		It("should retire jumps and NOPs with no architectural effect", func() {
			engine := run(`
				ADDI R1, R0, 1
				J end
				NOP
				end: ADDI R2, R0, 2
			`)
			Expect(engine.RegFile().Read(1)).To(Equal(int32(1)))
			Expect(engine.RegFile().Read(2)).To(Equal(int32(2)))
			Expect(engine.Metrics().InstructionsCompleted).To(Equal(uint64(4)))
		})

		It("should count a misprediction without squashing on a not-taken guess", func() {
			engine := run(`
				ADDI R1, R0, 1
				BEQ R0, R0, target
				target: ADDI R2, R0, 5
			`)
			Expect(engine.Metrics().BranchMispredictions).To(Equal(uint64(1)))
			Expect(engine.Metrics().InstructionsIssued).To(Equal(uint64(3)))
			Expect(engine.RegFile().Read(2)).To(Equal(int32(5)))
		})

		It("should leave a correctly predicted branch unpunished", func() {
			engine := run(`
				ADDI R1, R0, 1
				BNE R0, R0, away
				away: ADDI R2, R0, 2
			`)
			// A fresh counter predicts not taken and BNE R0, R0 falls through.
			Expect(engine.Metrics().BranchMispredictions).To(BeZero())
		})
	})

	Describe("Speculation and recovery", func() {
		It("should squash and re-issue past a mispredicted taken branch", func() {
			engine := build(`
				ADDI R1, R0, 1
				BNE R0, R0, skip
				ADDI R2, R0, 7
				skip: ADD R3, R1, R2
			`, tomasulo.DefaultConfig())

			// Train the branch PC to strongly taken so issue speculates
			// past it; the branch then resolves not taken.
			engine.Predictor().Update(1, true)
			engine.Predictor().Update(1, true)

			Expect(engine.Run()).To(BeTrue())

			Expect(engine.Metrics().BranchMispredictions).To(Equal(uint64(1)))
			Expect(engine.RegFile().Read(2)).To(Equal(int32(7)))
			Expect(engine.RegFile().Read(3)).To(Equal(int32(8)))
			Expect(engine.Metrics().InstructionsCompleted).To(Equal(uint64(4)))
			// The two instructions after the branch issued twice.
			Expect(engine.Metrics().InstructionsIssued).To(Equal(uint64(6)))
		})

		It("should mark instructions issued past a predicted-taken branch speculative", func() {
			engine := build(`
				BNE R0, R0, out
				out: ADDI R1, R0, 1
				ADDI R2, R0, 2
			`, tomasulo.DefaultConfig())
			engine.Predictor().Update(0, true)
			engine.Predictor().Update(0, true)

			engine.Step() // issue the branch
			engine.Step() // issue the first speculative instruction

			snap := engine.Snapshot()
			Expect(snap.ROB[0].Speculative).To(BeFalse())
			Expect(snap.ROB[1].Speculative).To(BeTrue())
		})
	})

	Describe("Reference equivalence", func() {
		It("should match the in-order interpreter on a mixed program", func() {
			src := `
				ADDI R1, R0, 64
				ADDI R2, R0, 9
				ADDI R3, R0, 4
				MUL R4, R2, R3
				SUB R5, R4, R2
				DIV R6, R4, R3
				SW R4, 0(R1)
				SW R5, 4(R1)
				LW R7, 0(R1)
				ADD R8, R7, R6
			`
			engine := run(src)

			prog, err := loader.Parse(src)
			Expect(err).NotTo(HaveOccurred())
			ref := emu.NewInterpreter(prog.Instructions)
			ref.Run()

			Expect(engine.RegFile().Snapshot()).To(Equal(ref.RegFile().Snapshot()))
			Expect(engine.Memory().Snapshot()).To(Equal(ref.Memory().Snapshot()))
		})
	})

	Describe("Metrics", func() {
		It("should report a positive IPC once work retires", func() {
			engine := run("ADDI R1, R0, 1\nADDI R2, R0, 2\n")
			metrics := engine.Metrics()
			Expect(metrics.IPC()).To(BeNumerically(">", 0))
			Expect(metrics.IPC()).To(BeNumerically("<=", 1))
			Expect(metrics.TotalCycles).To(BeNumerically(">", 0))
		})

		It("should report zero IPC before the first tick", func() {
			engine := build("NOP\n", tomasulo.DefaultConfig())
			Expect(engine.Metrics().IPC()).To(BeZero())
		})
	})

	Describe("Determinism", func() {
		It("should produce identical timestamps across runs", func() {
			src := `
				ADDI R1, R0, 3
				MUL R2, R1, R1
				SW R2, 0(R0)
				LW R3, 0(R0)
			`
			first := run(src)
			second := run(src)

			a := first.Snapshot()
			b := second.Snapshot()
			Expect(a.Instructions).To(Equal(b.Instructions))
			Expect(a.Metrics).To(Equal(b.Metrics))
		})
	})

	Describe("Reset", func() {
		It("should restore the freshly loaded state", func() {
			engine := run(`
				ADDI R1, R0, 5
				SW R1, 0(R0)
				BEQ R1, R1, done
				done: NOP
			`)
			engine.Reset()

			Expect(engine.Cycle()).To(BeZero())
			Expect(engine.PC()).To(BeZero())
			Expect(engine.Finished()).To(BeFalse())
			Expect(engine.Metrics()).To(Equal(tomasulo.Metrics{}))
			Expect(engine.RegFile().Snapshot()).To(Equal([insts.NumRegs]int32{}))
			Expect(engine.Memory().Snapshot()).To(BeEmpty())
			Expect(engine.Predictor().Stats().Predictions).To(BeZero())
			Expect(engine.Predictor().Counter(2)).To(Equal(uint8(1)))

			snap := engine.Snapshot()
			Expect(snap.ROBHead).To(BeZero())
			Expect(snap.ROBTail).To(BeZero())
			for _, inst := range snap.Instructions {
				Expect(inst.Stage).To(Equal(insts.StageWaiting))
				Expect(inst.IssueCycle).To(BeZero())
			}

			// The machine replays identically after a reset.
			Expect(engine.Run()).To(BeTrue())
			Expect(engine.RegFile().Read(1)).To(Equal(int32(5)))
			Expect(engine.Memory().Read(0)).To(Equal(int32(5)))
		})
	})

	Describe("Run", func() {
		It("should finish well within the safety bound", func() {
			engine := build("ADDI R1, R0, 1\n", tomasulo.DefaultConfig())
			Expect(engine.Run()).To(BeTrue())
			Expect(engine.Finished()).To(BeTrue())
			Expect(engine.Cycle()).To(BeNumerically("<", tomasulo.SafetyBound))
		})

		It("should refuse to step past completion", func() {
			engine := build("NOP\n", tomasulo.DefaultConfig())
			Expect(engine.Run()).To(BeTrue())
			cycles := engine.Cycle()
			Expect(engine.Step()).To(BeFalse())
			Expect(engine.Cycle()).To(Equal(cycles))
		})
	})
})
