// main.go - Einstiegspunkt des dallebart-CLI
package main

import (
	"fmt"
	"os"

	"github.com/cryptozealot/dalle-mini/cmd"

	_ "github.com/cryptozealot/dalle-mini/ml/backend/cpu"
)

func main() {
	// the root command silences cobra's own reporting, so the error is
	// printed here before exiting
	if err := cmd.NewCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
