// Where: internal/provisioner/provisioner.go
// What: Applies the stack descriptor to an account or a local emulator.
// Why: Fail fast on a missing bucket and make reapplying the grant and subscription a no-op.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/infra/ui"
)

// ErrBucketUnavailable is returned when the referenced bucket is missing or
// not accessible with the current credentials.
var ErrBucketUnavailable = errors.New("bucket unavailable")

// Clients groups the narrow APIs used by the provisioner. Nil members skip
// their step.
type Clients struct {
	S3       BucketAPI
	DynamoDB TableAPI
	IAM      RolePolicyAPI
}

// Step names reported by Apply.
const (
	StepBucket       = "bucket"
	StepLedgerTable  = "ledger-table"
	StepRolePolicy   = "role-policy"
	StepNotification = "notification"
)

// StepResult is the outcome of one provisioning step.
type StepResult struct {
	Step    string
	Changed bool
	Skipped bool
	Detail  string
}

// Runner applies a descriptor.
type Runner struct {
	Out     io.Writer
	Clients ClientFactory
	Emoji   bool
}

// New returns a Runner writing progress to out.
func New(out io.Writer, clients ClientFactory) *Runner {
	return &Runner{Out: out, Clients: clients, Emoji: true}
}

// Apply checks the bucket, then ensures the ledger table, the role policy and
// the bucket notification. It stops at the first failure; nothing is rolled
// back because every step is idempotent.
func (r *Runner) Apply(ctx context.Context, st stack.Stack) ([]StepResult, error) {
	if r == nil {
		return nil, fmt.Errorf("provisioner is nil")
	}
	if r.Clients == nil {
		return nil, fmt.Errorf("client factory not configured")
	}
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	console := ui.NewWithEmoji(out, r.Emoji)

	st = st.Normalize()
	if err := st.Validate(); err != nil {
		return nil, err
	}
	clients, err := r.Clients.Clients(ctx)
	if err != nil {
		return nil, fmt.Errorf("create clients: %w", err)
	}

	steps := []func(context.Context, Clients, stack.Stack) (StepResult, error){
		checkBucket,
		ensureLedgerTable,
		applyRolePolicy,
		applyNotification,
	}
	console.BlockStart("🪣", fmt.Sprintf("Provisioning %s for s3://%s", st.Name, st.Bucket.Name))
	var results []StepResult
	for _, step := range steps {
		result, err := step(ctx, clients, st)
		if err != nil {
			console.Error(fmt.Sprintf("%s: %v", result.Step, err))
			return results, err
		}
		results = append(results, result)
		switch {
		case result.Skipped:
			console.Step(result.Step, "skipped", result.Detail)
		case result.Changed:
			console.Step(result.Step, "applied", result.Detail)
		default:
			console.Step(result.Step, "unchanged", result.Detail)
		}
	}
	console.Success("Provisioning complete")
	console.BlockEnd()
	return results, nil
}
