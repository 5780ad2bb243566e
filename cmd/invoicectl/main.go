// Where: cmd/invoicectl/main.go
// What: CLI entrypoint.
// Why: Execute invoicectl commands with configured dependencies.
package main

import (
	"os"

	"github.com/poruru-code/invoice-autorecord/internal/command"
)

func main() {
	os.Exit(command.Run(os.Args[1:], buildDependencies()))
}
