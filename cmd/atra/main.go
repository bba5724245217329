// Package main is the entry point for the atra CLI.
package main

import (
	"os"

	"github.com/FranksOps/atra/cmd/atra/commands"
)

func main() {
	os.Exit(commands.Execute())
}
