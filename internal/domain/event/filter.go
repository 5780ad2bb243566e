// Where: internal/domain/event/filter.go
// What: Suffix/prefix event filter for object-created notifications.
// Why: Mirror the bucket subscription rule so it can be checked without S3.
package event

import (
	"strings"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
)

// Filter admits object-created events whose key has Prefix and Suffix.
// Matching is case-sensitive and exact, like the S3 notification filter.
type Filter struct {
	Prefix string
	Suffix string
}

// NewFilter derives the filter from the descriptor subscription.
func NewFilter(sub stack.Subscription) Filter {
	return Filter{Prefix: sub.Prefix, Suffix: sub.Suffix}
}

// Admit reports whether the notification should produce an invocation.
func (f Filter) Admit(n Notification) bool {
	if !IsObjectCreated(n.EventName) {
		return false
	}
	return f.MatchKey(n.Key)
}

// MatchKey applies only the key rules.
func (f Filter) MatchKey(key string) bool {
	return strings.HasPrefix(key, f.Prefix) && strings.HasSuffix(key, f.Suffix)
}

// IsObjectCreated accepts both the payload form ("ObjectCreated:Put") and the
// subscription form ("s3:ObjectCreated:*"). Records without a name are not
// object-created events.
func IsObjectCreated(name string) bool {
	return strings.HasPrefix(strings.TrimPrefix(name, "s3:"), "ObjectCreated:")
}
