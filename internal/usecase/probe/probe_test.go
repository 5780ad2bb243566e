package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"pgregory.net/rapid"
)

func TestLocalProbeDefaultGrant(t *testing.T) {
	result, err := Workflow{}.Run(context.Background(), Request{Stack: stack.Default()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Source != "local" {
		t.Fatalf("unexpected source: %s", result.Source)
	}
	if failed := result.Failed(); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	allowed := 0
	for _, c := range result.Checks {
		if c.Got {
			allowed++
		}
	}
	if allowed != 4 {
		t.Fatalf("expected read, list, write and tag to be allowed, got %d", allowed)
	}
}

func TestLocalProbeReadOnlyGrant(t *testing.T) {
	st := stack.Default()
	st.Grant.Capabilities = []stack.Capability{stack.CapabilityRead}
	result, err := Workflow{}.Run(context.Background(), Request{Stack: st})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, c := range result.Checks {
		if c.Action == stack.ActionPutObject && c.Got {
			t.Fatalf("read-only grant must not allow writes")
		}
	}
	if len(result.Failed()) != 0 {
		t.Fatalf("expectations follow the grant: %+v", result.Failed())
	}
}

// The grant never reaches another bucket, whatever its name.
func TestLocalProbeNeverReachesOtherBuckets(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-z0-9][a-z0-9-]{2,20}`).Draw(t, "bucket")
		other := rapid.StringMatching(`[a-z0-9][a-z0-9-]{2,20}`).Draw(t, "other")
		if other == name {
			t.Skip("same bucket")
		}
		st := stack.Default()
		st.Bucket.Name = name
		policy, err := st.Normalize().Grant.Policy(st.Bucket)
		if err != nil {
			t.Fatalf("policy: %v", err)
		}
		for _, action := range policy.Actions() {
			if policy.Allows(action, stack.ObjectARN(other, "x.pdf")) || policy.Allows(action, "arn:aws:s3:::"+other) {
				t.Fatalf("%s allowed on %s", action, other)
			}
		}
	})
}

type fakeSimulator struct {
	allowed map[string]bool
	calls   int
	err     error
}

func (f *fakeSimulator) SimulatePrincipalPolicy(_ context.Context, in *iam.SimulatePrincipalPolicyInput, _ ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	action := in.ActionNames[0]
	resource := in.ResourceArns[0]
	decision := iamtypes.PolicyEvaluationDecisionTypeImplicitDeny
	if f.allowed[action+" "+resource] {
		decision = iamtypes.PolicyEvaluationDecisionTypeAllowed
	}
	return &iam.SimulatePrincipalPolicyOutput{
		EvaluationResults: []iamtypes.EvaluationResult{{
			EvalActionName:   aws.String(action),
			EvalResourceName: aws.String(resource),
			EvalDecision:     decision,
		}},
	}, nil
}

func TestIAMProbeReportsExtraPermissions(t *testing.T) {
	st := stack.Default()
	object := stack.ObjectARN(st.Bucket.Name, "probe/invoice.pdf")
	sim := &fakeSimulator{allowed: map[string]bool{
		stack.ActionGetObject + " " + object:                   true,
		stack.ActionListBucket + " " + st.Bucket.ARN():         true,
		stack.ActionPutObject + " " + object:                   true,
		stack.ActionPutObjectTagging + " " + object:            true,
		stack.ActionDeleteObject + " " + object:                true,
	}}
	result, err := Workflow{Simulator: sim}.Run(context.Background(), Request{
		Stack:   st,
		RoleARN: "arn:aws:iam::123456789012:role/LedgerUpdaterRole",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Source != "iam" || sim.calls != len(result.Checks) {
		t.Fatalf("unexpected result: %+v (calls %d)", result, sim.calls)
	}
	failed := result.Failed()
	if len(failed) != 1 || failed[0].Action != stack.ActionDeleteObject {
		t.Fatalf("expected only the delete check to fail, got %+v", failed)
	}
}

func TestIAMProbeNeedsSimulator(t *testing.T) {
	_, err := Workflow{}.Run(context.Background(), Request{Stack: stack.Default(), RoleARN: "arn:aws:iam::1:role/x"})
	if !errors.Is(err, errSimulatorNotConfigured) {
		t.Fatalf("expected simulator error, got %v", err)
	}
}

func TestIAMProbeWrapsErrors(t *testing.T) {
	sim := &fakeSimulator{err: errors.New("AccessDenied")}
	_, err := Workflow{Simulator: sim}.Run(context.Background(), Request{Stack: stack.Default(), RoleARN: "arn:aws:iam::1:role/x"})
	if err == nil {
		t.Fatalf("expected error")
	}
}
