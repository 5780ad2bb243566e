// Where: cmd/invoicectl/cli.go
// What: CLI dependency wiring.
// Why: Centralize construction for testability.
package main

import (
	"os"

	"github.com/poruru-code/invoice-autorecord/internal/command"
	"github.com/poruru-code/invoice-autorecord/internal/infra/interaction"
)

var (
	getwd        = os.Getwd
	newConfirmer = interaction.DefaultConfirmer
)

// buildDependencies wires the real terminal and working directory. AWS and
// Docker clients are created lazily by the commands that need them.
func buildDependencies() command.Dependencies {
	return command.Dependencies{
		Out:       os.Stdout,
		ErrOut:    os.Stderr,
		Getwd:     getwd,
		Confirmer: newConfirmer(),
	}
}
