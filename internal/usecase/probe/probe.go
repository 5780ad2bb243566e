// Where: internal/usecase/probe/probe.go
// What: Permission probe for the handler's execution identity.
// Why: Show the grant allows read and write on the bucket and nothing on other buckets or deletes.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
)

var errSimulatorNotConfigured = errors.New("policy simulator is not configured")

// Check is one action/resource pair with the expected decision.
type Check struct {
	Name     string
	Action   string
	Resource string
	Want     bool
	Got      bool
}

// Passed reports whether the decision matched.
func (c Check) Passed() bool { return c.Want == c.Got }

// Result is the probe outcome.
type Result struct {
	Principal string
	Source    string
	Checks    []Check
}

// Failed returns the checks whose decision did not match.
func (r Result) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed() {
			out = append(out, c)
		}
	}
	return out
}

// Evaluator decides a batch of checks.
type Evaluator interface {
	Evaluate(ctx context.Context, checks []Check) ([]Check, error)
}

// Request captures the probe inputs.
type Request struct {
	Stack stack.Stack
	// OtherBucket is a bucket the handler must not reach. Defaults to the
	// watched bucket name with a "-other" suffix.
	OtherBucket string
	// RoleARN switches to the IAM simulator when set.
	RoleARN string
}

// Workflow runs the probe.
type Workflow struct {
	Simulator Simulator
}

// Run expands the expected checks and evaluates them locally, or through IAM
// when a role ARN is given.
func (w Workflow) Run(ctx context.Context, req Request) (Result, error) {
	st := req.Stack.Normalize()
	checks := ExpectedChecks(st, req.OtherBucket)

	var evaluator Evaluator
	result := Result{Principal: st.Grant.Principal, Source: "local"}
	if arn := strings.TrimSpace(req.RoleARN); arn != "" {
		if w.Simulator == nil {
			return Result{}, errSimulatorNotConfigured
		}
		evaluator = IAMEvaluator{Simulator: w.Simulator, PolicySourceARN: arn}
		result.Principal = arn
		result.Source = "iam"
	} else {
		policy, err := st.Grant.Policy(st.Bucket)
		if err != nil {
			return Result{}, err
		}
		evaluator = LocalEvaluator{Policy: policy}
	}

	evaluated, err := evaluator.Evaluate(ctx, checks)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate permissions: %w", err)
	}
	result.Checks = evaluated
	return result, nil
}

// ExpectedChecks lists what the handler must and must not be able to do.
func ExpectedChecks(st stack.Stack, otherBucket string) []Check {
	bucket := st.Bucket.Name
	if strings.TrimSpace(otherBucket) == "" {
		otherBucket = bucket + "-other"
	}
	object := stack.ObjectARN(bucket, "probe/invoice.pdf")
	foreign := stack.ObjectARN(otherBucket, "probe/invoice.pdf")
	checks := []Check{
		{Name: "read object", Action: stack.ActionGetObject, Resource: object, Want: st.Grant.Has(stack.CapabilityRead)},
		{Name: "list bucket", Action: stack.ActionListBucket, Resource: st.Bucket.ARN(), Want: st.Grant.Has(stack.CapabilityRead)},
		{Name: "write object", Action: stack.ActionPutObject, Resource: object, Want: st.Grant.Has(stack.CapabilityWrite)},
		{Name: "tag object", Action: stack.ActionPutObjectTagging, Resource: object, Want: st.Grant.Has(stack.CapabilityWrite)},
		{Name: "delete object", Action: stack.ActionDeleteObject, Resource: object, Want: false},
		{Name: "delete bucket", Action: stack.ActionDeleteBucket, Resource: st.Bucket.ARN(), Want: false},
		{Name: "change bucket policy", Action: stack.ActionPutBucketPolicy, Resource: st.Bucket.ARN(), Want: false},
		{Name: "read other bucket", Action: stack.ActionGetObject, Resource: foreign, Want: false},
		{Name: "write other bucket", Action: stack.ActionPutObject, Resource: foreign, Want: false},
		{Name: "list other bucket", Action: stack.ActionListBucket, Resource: "arn:aws:s3:::" + otherBucket, Want: false},
	}
	return checks
}

// LocalEvaluator decides checks against the generated policy document.
type LocalEvaluator struct {
	Policy stack.PolicyDocument
}

// Evaluate implements Evaluator.
func (e LocalEvaluator) Evaluate(_ context.Context, checks []Check) ([]Check, error) {
	out := make([]Check, len(checks))
	for i, c := range checks {
		c.Got = e.Policy.Allows(c.Action, c.Resource)
		out[i] = c
	}
	return out, nil
}
