// Where: internal/command/error_helpers.go
// What: Shared CLI error output.
// Why: Keep failure lines and exit codes consistent.
package command

import (
	"io"

	"github.com/poruru-code/invoice-autorecord/internal/infra/ui"
)

// exitWithError prints err and returns exit code 1.
func exitWithError(out io.Writer, err error) int {
	ui.NewWithEmoji(out, false).Error(err.Error())
	return 1
}
