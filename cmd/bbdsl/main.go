// Command bbdsl is the operator CLI of the convention registry.
package main

import (
	"os"

	"github.com/chrisokchen/bbdsl-platform/cmd/bbdsl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
