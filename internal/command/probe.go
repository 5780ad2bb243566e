// Where: internal/command/probe.go
// What: probe command.
// Why: Show which bucket actions the handler role is allowed.
package command

import (
	"context"
	"fmt"

	"github.com/poruru-code/invoice-autorecord/internal/infra/awsclient"
	"github.com/poruru-code/invoice-autorecord/internal/usecase/probe"
)

// ProbeCmd evaluates the grant locally or against IAM.
type ProbeCmd struct {
	Simulate    bool   `help:"Ask the IAM policy simulator instead of evaluating the generated policy"`
	RoleARN     string `name:"role-arn" help:"Role to simulate (required with --simulate)"`
	OtherBucket string `name:"other-bucket" help:"Bucket the role must not reach"`
}

func runProbe(cli CLI, deps Dependencies) int {
	st, _, err := loadStack(cli, deps, true)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	cmd := cli.Probe
	ctx := context.Background()
	req := probe.Request{Stack: st, OtherBucket: cmd.OtherBucket}
	workflow := probe.Workflow{}
	if cmd.Simulate {
		if cmd.RoleARN == "" {
			return exitWithError(deps.Out, fmt.Errorf("--role-arn is required with --simulate"))
		}
		sim, err := deps.Probe.Simulator(ctx)
		if err != nil {
			return exitWithError(deps.Out, err)
		}
		workflow.Simulator = sim
		req.RoleARN = cmd.RoleARN
	}

	result, err := workflow.Run(ctx, req)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	console := consoleFor(deps.Out, cli)
	console.BlockStart("🔐", fmt.Sprintf("Permissions of %s (%s)", result.Principal, result.Source))
	for _, check := range result.Checks {
		status := "denied"
		if check.Got {
			status = "allowed"
		}
		if !check.Passed() {
			status += " (unexpected)"
		}
		console.Item(check.Name, fmt.Sprintf("%-22s %s %s", status, check.Action, check.Resource))
	}
	console.BlockEnd()
	if failed := result.Failed(); len(failed) > 0 {
		console.Error(fmt.Sprintf("%d check(s) did not match the grant", len(failed)))
		return 1
	}
	console.Success("Grant is scoped to the bucket")
	return 0
}

func defaultSimulator(ctx context.Context) (probe.Simulator, error) {
	factory, err := awsclient.New(ctx, awsclient.OptionsFromEnv())
	if err != nil {
		return nil, err
	}
	return factory.IAM(), nil
}
