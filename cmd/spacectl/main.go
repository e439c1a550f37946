// Command spacectl runs the SpaceTraders operator and its helper commands.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "spacectl: %v\n", err)
		os.Exit(1)
	}
}
