// Where: internal/provisioner/iam.go
// What: Inline role policy for the handler's execution role.
// Why: Attach the bucket-scoped grant under a fixed name so reapplying yields the same policy.
package provisioner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
)

// RolePolicyAPI is what the provisioner needs from IAM.
type RolePolicyAPI interface {
	GetRolePolicy(ctx context.Context, role, name string) (string, bool, error)
	PutRolePolicy(ctx context.Context, role, name, document string) error
}

func applyRolePolicy(ctx context.Context, clients Clients, st stack.Stack) (StepResult, error) {
	result := StepResult{Step: StepRolePolicy}
	if st.Function.RoleName == "" {
		result.Skipped = true
		result.Detail = "function.role_name not set; the SAM template attaches the policy"
		return result, nil
	}
	if clients.IAM == nil {
		result.Skipped = true
		result.Detail = "no iam client"
		return result, nil
	}
	policy, err := st.Grant.Policy(st.Bucket)
	if err != nil {
		return result, err
	}
	document, err := policy.JSON()
	if err != nil {
		return result, err
	}
	result.Detail = fmt.Sprintf("%s/%s", st.Function.RoleName, st.Grant.PolicyName)

	current, ok, err := clients.IAM.GetRolePolicy(ctx, st.Function.RoleName, st.Grant.PolicyName)
	if err != nil {
		return result, fmt.Errorf("get role policy: %w", err)
	}
	if ok && samePolicy(current, document) {
		return result, nil
	}
	if err := clients.IAM.PutRolePolicy(ctx, st.Function.RoleName, st.Grant.PolicyName, document); err != nil {
		return result, fmt.Errorf("put role policy: %w", err)
	}
	result.Changed = true
	return result, nil
}

// samePolicy compares documents semantically. IAM returns the stored
// document percent-encoded per RFC 3986, where "+" is literal.
func samePolicy(current, desired string) bool {
	if decoded, err := url.PathUnescape(current); err == nil {
		current = decoded
	}
	var a, b any
	if json.Unmarshal([]byte(current), &a) != nil || json.Unmarshal([]byte(desired), &b) != nil {
		return false
	}
	left, _ := json.Marshal(a)
	right, _ := json.Marshal(b)
	return string(left) == string(right)
}
