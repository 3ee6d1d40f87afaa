// Package main provides the entry point for TomSim.
// TomSim is a cycle-accurate simulator of Tomasulo's algorithm with a
// reorder buffer and speculative execution.
//
// For the full CLI, use: go run ./cmd/tomsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("TomSim - Tomasulo algorithm simulator")
	fmt.Println("")
	fmt.Println("Usage: tomsim [options] <program.asm>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to latency configuration JSON file")
	fmt.Println("  -emu       Run the in-order functional interpreter")
	fmt.Println("  -trace     Print machine state after every cycle")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/tomsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/tomsim' instead.")
	}
}
