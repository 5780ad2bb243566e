// Where: internal/command/output.go
// What: Console construction for command adapters.
// Why: Apply the --no-emoji flag in one place.
package command

import (
	"io"

	"github.com/poruru-code/invoice-autorecord/internal/infra/ui"
)

func consoleFor(out io.Writer, cli CLI) *ui.Console {
	return ui.NewWithEmoji(out, !cli.NoEmoji)
}
