// Where: internal/command/validate.go
// What: validate command.
// Why: Catch descriptor mistakes before synth or provision.
package command

import (
	"strings"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
)

// ValidateCmd checks schema and semantics of the descriptor.
type ValidateCmd struct{}

func runValidate(cli CLI, deps Dependencies) int {
	st, path, err := loadStack(cli, deps, false)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	console := consoleFor(deps.Out, cli)
	console.BlockStart("🔍", "Descriptor "+path)
	console.Item("stack", st.Name)
	console.Item("bucket", st.Bucket.Name)
	console.Item("function", st.Function.Name)
	console.Item("capabilities", joinCapabilities(st.Grant.Capabilities))
	console.Item("events", strings.Join(st.Subscription.Events, ", "))
	console.Item("suffix", st.Subscription.Suffix)
	console.Item("ledger", ledgerLocation(st))
	console.Item("max retries", st.Delivery.MaxRetryAttempts)
	console.BlockEnd()
	console.Success("Descriptor is valid")
	return 0
}

func joinCapabilities(values []stack.Capability) string {
	parts := make([]string, len(values))
	for i, c := range values {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func ledgerLocation(st stack.Stack) string {
	if st.Ledger.Backend == stack.LedgerBackendDynamoDB {
		return "dynamodb:" + st.Ledger.Table
	}
	return "s3://" + st.Bucket.Name + "/" + st.Ledger.Key
}
