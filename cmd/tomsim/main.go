// Package main provides the entry point for TomSim.
// TomSim is a cycle-accurate simulator of Tomasulo's algorithm with a
// reorder buffer and speculative execution.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/giusfds/tomsim/emu"
	"github.com/giusfds/tomsim/loader"
	"github.com/giusfds/tomsim/timing/core"
	"github.com/giusfds/tomsim/timing/latency"
	"github.com/giusfds/tomsim/timing/tomasulo"
)

var (
	configPath = flag.String("config", "", "Path to latency configuration JSON file")
	emulate    = flag.Bool("emu", false, "Run the in-order functional interpreter instead of the timing model")
	trace      = flag.Bool("trace", false, "Print machine state after every cycle")
	verbose    = flag.Bool("v", false, "Verbose output")

	addRS   = flag.Int("add-rs", 0, "Add/branch reservation station count (0 = default)")
	mulRS   = flag.Int("mul-rs", 0, "Mul/Div reservation station count (0 = default)")
	loadRS  = flag.Int("load-rs", 0, "Load reservation station count (0 = default)")
	storeRS = flag.Int("store-rs", 0, "Store reservation station count (0 = default)")
	robSize = flag.Int("rob-size", 0, "Reorder buffer capacity (0 = default)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: tomsim [options] <program.asm>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)
	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Instructions: %d\n", len(prog.Instructions))
		fmt.Printf("Labels: %d\n", len(prog.Labels))
	}

	if *emulate {
		runEmulation(prog)
		return
	}
	runTiming(prog)
}

// runEmulation runs the program through the in-order reference interpreter.
func runEmulation(prog *loader.Program) {
	interp := emu.NewInterpreter(prog.Instructions)
	interp.Run()

	fmt.Printf("Instructions executed: %d\n", interp.InstructionCount())
	printRegisters(interp.RegFile().Snapshot())
	printMemory(interp.Memory().Snapshot())
}

// runTiming runs the program through the cycle-accurate machine.
func runTiming(prog *loader.Program) {
	config := tomasulo.DefaultConfig()
	if *addRS > 0 {
		config.AddStations = *addRS
	}
	if *mulRS > 0 {
		config.MulStations = *mulRS
	}
	if *loadRS > 0 {
		config.LoadStations = *loadRS
	}
	if *storeRS > 0 {
		config.StoreStations = *storeRS
	}
	if *robSize > 0 {
		config.ROBSize = *robSize
	}

	var opts []tomasulo.Option
	if *configPath != "" {
		timingConfig, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, tomasulo.WithLatencyTable(latency.NewTableWithConfig(timingConfig)))
	}

	machine, err := core.NewCore(prog, config, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring machine: %v\n", err)
		os.Exit(1)
	}

	completed := true
	if *trace {
		for !machine.Finished() {
			machine.Tick()
			snap := machine.Snapshot()
			printCycle(snap)
			if snap.Cycle > tomasulo.SafetyBound {
				completed = false
				break
			}
		}
	} else {
		completed = machine.Run()
	}
	if !completed {
		fmt.Fprintf(os.Stderr, "Warning: simulation exceeded %d cycles\n", tomasulo.SafetyBound)
	}

	snap := machine.Snapshot()
	printInstructionTable(snap)
	printRegisters(snap.Registers)
	printMemory(snap.Memory)
	printMetrics(machine.Stats(), snap)
}

func printCycle(snap tomasulo.Snapshot) {
	fmt.Printf("--- cycle %d ---\n", snap.Cycle)
	for _, pool := range [][]tomasulo.StationSnapshot{
		snap.AddStations, snap.MulStations, snap.LoadStations, snap.StoreStations,
	} {
		for _, rs := range pool {
			if !rs.Busy {
				continue
			}
			fmt.Printf("  %s: %s Vj=%d Vk=%d Qj=%d Qk=%d Dest=ROB%d\n",
				rs.Name, rs.Op, rs.Vj, rs.Vk, rs.Qj, rs.Qk, rs.Dest)
		}
	}
	for _, entry := range snap.ROB {
		if !entry.Busy {
			continue
		}
		marker := ""
		if entry.Index == snap.ROBHead {
			marker = " (HEAD)"
		}
		spec := ""
		if entry.Speculative {
			spec = " [SPEC]"
		}
		fmt.Printf("  ROB%d%s: %-8s %-25s Dest=%-8s Value=%d Ready=%t%s\n",
			entry.Index, marker, entry.State, entry.Instruction,
			entry.Dest, entry.Value, entry.Ready, spec)
	}
}

func printInstructionTable(snap tomasulo.Snapshot) {
	fmt.Println("\nInstructions:")
	fmt.Printf("%-4s %-25s %-6s %-6s %-6s %-6s %-6s %s\n",
		"PC", "Instruction", "Issue", "Start", "End", "Write", "Commit", "Stage")
	for _, inst := range snap.Instructions {
		fmt.Printf("%-4d %-25s %-6s %-6s %-6s %-6s %-6s %s\n",
			inst.PC, inst.Text,
			cycleOrDash(inst.IssueCycle),
			cycleOrDash(inst.ExecStart),
			cycleOrDash(inst.ExecEnd),
			cycleOrDash(inst.WriteCycle),
			cycleOrDash(inst.CommitCycle),
			inst.Stage)
	}
}

func cycleOrDash(cycle int) string {
	if cycle == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", cycle)
}

func printRegisters(regs [32]int32) {
	fmt.Println("\nRegisters (non-zero):")
	for i, value := range regs {
		if value != 0 {
			fmt.Printf("  R%d = %d\n", i, value)
		}
	}
}

func printMemory(mem map[int32]int32) {
	if len(mem) == 0 {
		return
	}
	addrs := make([]int32, 0, len(mem))
	for addr := range mem {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	fmt.Println("\nMemory:")
	for _, addr := range addrs {
		fmt.Printf("  [%d] = %d\n", addr, mem[addr])
	}
}

func printMetrics(stats core.Stats, snap tomasulo.Snapshot) {
	fmt.Println("\nMetrics:")
	fmt.Printf("  Cycles:              %d\n", stats.Cycles)
	fmt.Printf("  Instructions issued: %d\n", stats.Issued)
	fmt.Printf("  Instructions done:   %d\n", stats.Completed)
	fmt.Printf("  IPC:                 %.3f\n", stats.IPC)
	fmt.Printf("  Bubble cycles:       %d\n", stats.Bubbles)
	fmt.Printf("  Stall cycles:        %d\n", stats.Stalls)
	fmt.Printf("  Branch predictions:  %d\n", snap.Predictor.Predictions)
	fmt.Printf("  Prediction accuracy: %.1f%%\n", snap.Predictor.Accuracy()*100)
	fmt.Printf("  Mispredictions:      %d\n", stats.Mispredictions)
}
