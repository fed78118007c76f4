// Package main provides the entry point for TTASched.
// TTASched tracks the hardware resources a TTA instruction scheduler
// reserves while it places moves.
//
// For the full CLI, use: go run ./cmd/ttasched
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("TTASched - TTA Scheduler Resource Engine")
	fmt.Println("")
	fmt.Println("Usage: ttasched [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --ii            Initiation interval, 0 disables modulo scheduling")
	fmt.Println("  --conservative  Do not share resources between guarded moves")
	fmt.Println("  --config        Path to scheduler configuration JSON file")
	fmt.Println("  --max-cycles    Cycles tried for each move before giving up")
	fmt.Println("  --alus          Number of ALUs in the machine")
	fmt.Println("  -v              Verbose output, repeat for more detail")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/ttasched' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/ttasched' instead.")
	}
}
