// Command stategraph runs the built-in workflows and HCL-defined graphs.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand(newApp(os.Stdin, os.Stdout, os.Stderr)).Execute(); err != nil {
		os.Exit(1)
	}
}
