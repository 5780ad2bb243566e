// Where: internal/domain/stack/descriptor.go
// What: Declarative descriptor for the bucket trigger topology.
// Why: Keep bucket, grant, and subscription as inspectable data instead of provisioning calls.
package stack

import (
	"sort"
	"strings"

	"github.com/poruru-code/invoice-autorecord/internal/meta"
)

// Stack is the whole trigger topology: which bucket is watched, which function
// handles the events, what the function may do to the bucket, and how the
// external delivery mechanism is expected to behave.
type Stack struct {
	Name         string           `yaml:"name" json:"name"`
	Bucket       BucketRef        `yaml:"bucket" json:"bucket"`
	Function     FunctionSpec     `yaml:"function" json:"function"`
	Grant        PermissionGrant  `yaml:"grant" json:"grant"`
	Subscription Subscription     `yaml:"subscription" json:"subscription"`
	Ledger       LedgerSpec       `yaml:"ledger" json:"ledger"`
	Delivery     DeliveryContract `yaml:"delivery" json:"delivery"`
}

// BucketRef identifies a pre-existing bucket by name. It is never created or
// destroyed from here.
type BucketRef struct {
	Name string `yaml:"name" json:"name"`
}

// ARN returns the bucket-level resource ARN.
func (b BucketRef) ARN() string {
	return "arn:aws:s3:::" + b.Name
}

// ObjectsARN returns the ARN pattern covering every object in the bucket.
func (b BucketRef) ObjectsARN() string {
	return b.ARN() + "/*"
}

// FunctionSpec describes the Ledger Handler deployment unit.
type FunctionSpec struct {
	Name        string            `yaml:"name" json:"name"`
	Runtime     string            `yaml:"runtime" json:"runtime"`
	Handler     string            `yaml:"handler" json:"handler"`
	CodeURI     string            `yaml:"code_uri" json:"code_uri"`
	Timeout     int               `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MemorySize  int               `yaml:"memory_size,omitempty" json:"memory_size,omitempty"`
	RoleName    string            `yaml:"role_name,omitempty" json:"role_name,omitempty"`
	ARN         string            `yaml:"arn,omitempty" json:"arn,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// EnvironmentKeys returns the environment variable names in sorted order.
func (f FunctionSpec) EnvironmentKeys() []string {
	keys := make([]string, 0, len(f.Environment))
	for key := range f.Environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Capability is a coarse permission on the referenced bucket.
type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
)

// PermissionGrant binds the function's execution identity to the bucket.
type PermissionGrant struct {
	Principal    string       `yaml:"principal,omitempty" json:"principal,omitempty"`
	PolicyName   string       `yaml:"policy_name,omitempty" json:"policy_name,omitempty"`
	Capabilities []Capability `yaml:"capabilities" json:"capabilities"`
}

// Has reports whether the grant includes the capability.
func (g PermissionGrant) Has(c Capability) bool {
	for _, item := range g.Capabilities {
		if item == c {
			return true
		}
	}
	return false
}

// Subscription is the object-created notification rule on the bucket.
type Subscription struct {
	Events []string `yaml:"events" json:"events"`
	Prefix string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Suffix string   `yaml:"suffix" json:"suffix"`
}

// Ledger backends.
const (
	LedgerBackendDynamoDB = "dynamodb"
	LedgerBackendS3CSV    = "s3csv"
)

// LedgerSpec configures where the handler records invoices.
type LedgerSpec struct {
	Backend      string `yaml:"backend" json:"backend"`
	Table        string `yaml:"table,omitempty" json:"table,omitempty"`
	Key          string `yaml:"key,omitempty" json:"key,omitempty"`
	Processor    string `yaml:"processor,omitempty" json:"processor,omitempty"`
	TagProcessed bool   `yaml:"tag_processed,omitempty" json:"tag_processed,omitempty"`
}

// DeliveryContract states what the external notification mechanism promises:
// at-least-once, unordered, retried up to MaxRetryAttempts, then dead-lettered.
// Nothing in this repository enforces it beyond the simulation harness.
type DeliveryContract struct {
	MaxRetryAttempts int    `yaml:"max_retry_attempts" json:"max_retry_attempts"`
	MaxEventAge      int    `yaml:"max_event_age_seconds,omitempty" json:"max_event_age_seconds,omitempty"`
	DeadLetterARN    string `yaml:"dead_letter_arn,omitempty" json:"dead_letter_arn,omitempty"`
}

// ObjectCreatedAll is the subscription event for every object-created variant.
const ObjectCreatedAll = "s3:ObjectCreated:*"

// Default returns the descriptor matching the production deployment.
func Default() Stack {
	return Stack{
		Name:   "InvoiceAutoRecordStack",
		Bucket: BucketRef{Name: meta.DefaultBucketName},
		Function: FunctionSpec{
			Name:        meta.DefaultFunction,
			Runtime:     meta.DefaultRuntime,
			Handler:     meta.DefaultHandler,
			CodeURI:     meta.DefaultCodeURI,
			Timeout:     30,
			MemorySize:  256,
			Environment: map[string]string{},
		},
		Grant: PermissionGrant{
			PolicyName:   meta.DefaultPolicyName,
			Capabilities: []Capability{CapabilityRead, CapabilityWrite},
		},
		Subscription: Subscription{
			Events: []string{ObjectCreatedAll},
			Suffix: meta.DefaultSuffix,
		},
		Ledger: LedgerSpec{
			Backend:   LedgerBackendS3CSV,
			Key:       meta.LedgerCSVKey,
			Processor: meta.DefaultProcessor,
		},
		Delivery: DeliveryContract{MaxRetryAttempts: 2},
	}
}

// Normalize fills derived fields and trims whitespace so that equal intent
// compares equal.
func (s Stack) Normalize() Stack {
	out := s
	out.Name = strings.TrimSpace(out.Name)
	out.Bucket.Name = strings.TrimSpace(out.Bucket.Name)
	out.Function.Name = strings.TrimSpace(out.Function.Name)
	if out.Function.Environment == nil {
		out.Function.Environment = map[string]string{}
	}
	if strings.TrimSpace(out.Grant.Principal) == "" {
		out.Grant.Principal = out.Function.Name
	}
	if strings.TrimSpace(out.Grant.PolicyName) == "" {
		out.Grant.PolicyName = meta.DefaultPolicyName
	}
	out.Grant.Capabilities = normalizeCapabilities(out.Grant.Capabilities)
	if len(out.Subscription.Events) == 0 {
		out.Subscription.Events = []string{ObjectCreatedAll}
	}
	out.Ledger.Backend = strings.ToLower(strings.TrimSpace(out.Ledger.Backend))
	switch out.Ledger.Backend {
	case LedgerBackendS3CSV:
		out.Ledger.Table = ""
		if out.Ledger.Key == "" {
			out.Ledger.Key = meta.LedgerCSVKey
		}
	case LedgerBackendDynamoDB:
		out.Ledger.Key = ""
	}
	if out.Ledger.Processor == "" {
		out.Ledger.Processor = meta.DefaultProcessor
	}
	return out
}

func normalizeCapabilities(values []Capability) []Capability {
	seen := map[Capability]struct{}{}
	out := make([]Capability, 0, len(values))
	for _, value := range values {
		c := Capability(strings.ToLower(strings.TrimSpace(string(value))))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
