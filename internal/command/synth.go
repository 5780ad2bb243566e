// Where: internal/command/synth.go
// What: synth command.
// Why: Produce the SAM template for `sam deploy`.
package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/poruru-code/invoice-autorecord/internal/infra/sam"
)

// SynthCmd renders the SAM template.
type SynthCmd struct {
	Out string `short:"o" name:"out" help:"Write the template to a file instead of stdout"`
}

func runSynth(cli CLI, deps Dependencies) int {
	st, _, err := loadStack(cli, deps, true)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	rendered, err := sam.Render(st)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	if cli.Synth.Out == "" {
		if _, err := deps.Out.Write(rendered); err != nil {
			return exitWithError(deps.ErrOut, err)
		}
		return 0
	}
	if err := os.MkdirAll(filepath.Dir(cli.Synth.Out), 0o755); err != nil {
		return exitWithError(deps.Out, fmt.Errorf("create output dir: %w", err))
	}
	if err := os.WriteFile(cli.Synth.Out, rendered, 0o644); err != nil {
		return exitWithError(deps.Out, fmt.Errorf("write template: %w", err))
	}
	consoleFor(deps.Out, cli).Success("Template written to " + cli.Synth.Out)
	return 0
}
