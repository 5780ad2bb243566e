// Where: internal/command/descriptor.go
// What: Descriptor resolution shared by commands.
// Why: Every command reads stack.yaml the same way.
package command

import (
	"fmt"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/infra/config"
)

// loadStack resolves and loads the descriptor. When allowDefault is set and
// no descriptor exists, the production defaults are used instead.
func loadStack(cli CLI, deps Dependencies, allowDefault bool) (stack.Stack, string, error) {
	wd, err := deps.Getwd()
	if err != nil {
		return stack.Stack{}, "", fmt.Errorf("resolve working directory: %w", err)
	}
	path, err := config.ResolveDescriptorPath(cli.File, wd)
	if err != nil {
		if allowDefault && cli.File == "" && config.IsDescriptorNotFound(err) {
			return stack.Default().Normalize(), "", nil
		}
		return stack.Stack{}, "", err
	}
	st, err := config.LoadDescriptor(path)
	if err != nil {
		return stack.Stack{}, path, err
	}
	return st, path, nil
}

func describeSource(path string) string {
	if path == "" {
		return "built-in defaults"
	}
	return path
}
