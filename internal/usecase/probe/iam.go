// Where: internal/usecase/probe/iam.go
// What: IAM policy simulator adapter for the permission probe.
// Why: Check the deployed role, including policies attached outside this stack.
package probe

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// Simulator is the subset of the IAM client used by the probe.
type Simulator interface {
	SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error)
}

var _ Simulator = (*iam.Client)(nil)

// IAMEvaluator decides checks with SimulatePrincipalPolicy.
type IAMEvaluator struct {
	Simulator       Simulator
	PolicySourceARN string
}

// Evaluate implements Evaluator. Each check is simulated on its own so the
// resource list stays exact.
func (e IAMEvaluator) Evaluate(ctx context.Context, checks []Check) ([]Check, error) {
	out := make([]Check, len(checks))
	for i, c := range checks {
		allowed, err := e.simulate(ctx, c.Action, c.Resource)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", c.Action, c.Resource, err)
		}
		c.Got = allowed
		out[i] = c
	}
	return out, nil
}

func (e IAMEvaluator) simulate(ctx context.Context, action, resource string) (bool, error) {
	var marker *string
	for {
		resp, err := e.Simulator.SimulatePrincipalPolicy(ctx, &iam.SimulatePrincipalPolicyInput{
			PolicySourceArn: aws.String(e.PolicySourceARN),
			ActionNames:     []string{action},
			ResourceArns:    []string{resource},
			Marker:          marker,
		})
		if err != nil {
			return false, err
		}
		for _, result := range resp.EvaluationResults {
			if aws.ToString(result.EvalActionName) != action {
				continue
			}
			return result.EvalDecision == iamtypes.PolicyEvaluationDecisionTypeAllowed, nil
		}
		if !resp.IsTruncated {
			return false, nil
		}
		marker = resp.Marker
	}
}
