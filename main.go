// Package main is the entry point for netinspect.
package main

import (
	"fmt"
	"os"

	"netinspect/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
