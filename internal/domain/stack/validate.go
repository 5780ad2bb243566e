// Where: internal/domain/stack/validate.go
// What: Semantic validation of a Stack descriptor.
// Why: Reject misconfigured topologies before anything reaches the provider.
package stack

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidDescriptor wraps every validation failure.
var ErrInvalidDescriptor = errors.New("invalid stack descriptor")

var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// Validate reports every problem found, joined into one error.
func (s Stack) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if !bucketNamePattern.MatchString(s.Bucket.Name) || strings.Contains(s.Bucket.Name, "..") {
		add("bucket.name %q is not a valid bucket name", s.Bucket.Name)
	}
	if strings.TrimSpace(s.Function.Name) == "" {
		add("function.name is required")
	}
	if strings.TrimSpace(s.Function.Runtime) == "" {
		add("function.runtime is required")
	}
	if strings.TrimSpace(s.Function.Handler) == "" {
		add("function.handler is required")
	}
	if strings.TrimSpace(s.Function.CodeURI) == "" {
		add("function.code_uri is required")
	}
	if s.Function.Timeout < 0 || s.Function.Timeout > 900 {
		add("function.timeout must not exceed 900 seconds")
	}

	if len(s.Grant.Capabilities) == 0 {
		add("grant.capabilities must not be empty")
	}
	for _, capability := range s.Grant.Capabilities {
		if capability != CapabilityRead && capability != CapabilityWrite {
			add("grant.capabilities: unsupported capability %q", capability)
		}
	}

	if len(s.Grant.Capabilities) > 0 && !s.Grant.Has(CapabilityRead) {
		add("grant.capabilities must include read: the handler fetches every object it records")
	}
	if !s.Grant.Has(CapabilityWrite) {
		if s.Ledger.Backend == LedgerBackendS3CSV {
			add("grant.capabilities must include write for the s3csv ledger backend")
		}
		if s.Ledger.TagProcessed {
			add("grant.capabilities must include write when ledger.tag_processed is set")
		}
	}

	if len(s.Subscription.Events) == 0 {
		add("subscription.events must not be empty")
	}
	for _, event := range s.Subscription.Events {
		if !strings.HasPrefix(event, "s3:ObjectCreated:") {
			add("subscription.events: %q is not an object-created event", event)
		}
	}
	if s.Subscription.Suffix == "" {
		add("subscription.suffix is required")
	}

	switch s.Ledger.Backend {
	case LedgerBackendDynamoDB:
		if strings.TrimSpace(s.Ledger.Table) == "" {
			add("ledger.table is required for the dynamodb backend")
		}
	case LedgerBackendS3CSV:
		if strings.TrimSpace(s.Ledger.Key) == "" {
			add("ledger.key is required for the s3csv backend")
		} else if s.Subscription.Suffix != "" && strings.HasSuffix(s.Ledger.Key, s.Subscription.Suffix) {
			add("ledger.key %q must not match the subscription suffix", s.Ledger.Key)
		}
	default:
		add("ledger.backend %q is not supported", s.Ledger.Backend)
	}

	if s.Delivery.MaxRetryAttempts < 0 || s.Delivery.MaxRetryAttempts > 2 {
		add("delivery.max_retry_attempts must be between 0 and 2")
	}
	if age := s.Delivery.MaxEventAge; age != 0 && (age < 60 || age > 21600) {
		add("delivery.max_event_age_seconds must be between 60 and 21600")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidDescriptor, errors.Join(problems...))
}
