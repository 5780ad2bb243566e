// Where: internal/command/diff.go
// What: diff command.
// Why: Show what a descriptor edit changes, including the effective policy actions.
package command

import (
	"fmt"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/infra/config"
)

// DiffCmd compares the current descriptor with another.
type DiffCmd struct {
	Against string `arg:"" name:"against" help:"Descriptor to compare with (the new version)"`
}

func runDiff(cli CLI, deps Dependencies) int {
	before, beforePath, err := loadStack(cli, deps, true)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	after, err := config.LoadDescriptor(cli.Diff.Against)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	diff := stack.DiffStacks(before, after)
	console := consoleFor(deps.Out, cli)
	if diff.Empty() {
		console.Success("No changes")
		return 0
	}
	console.BlockStart("📝", fmt.Sprintf("%s → %s", describeSource(beforePath), cli.Diff.Against))
	for _, change := range diff.Changes {
		switch change.Kind {
		case stack.ChangeAdded:
			console.ItemPlain(fmt.Sprintf("+ %s = %s", change.Path, change.After))
		case stack.ChangeRemoved:
			console.ItemPlain(fmt.Sprintf("- %s = %s", change.Path, change.Before))
		default:
			console.ItemPlain(fmt.Sprintf("~ %s: %s → %s", change.Path, change.Before, change.After))
		}
	}
	console.BlockEnd()
	for _, section := range stack.Sections {
		counts, ok := diff.Sections[section]
		if !ok || counts.Total == 0 {
			continue
		}
		console.Item(section, stack.FormatCountsLabel(counts))
	}
	return 0
}
