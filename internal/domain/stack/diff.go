// Where: internal/domain/stack/diff.go
// What: Pure topology diff helpers.
// Why: Show what a descriptor change would alter before provisioning it.
package stack

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ChangeKind classifies a single field difference.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Change is one flattened field difference.
type Change struct {
	Path   string
	Kind   ChangeKind
	Before string
	After  string
}

// Counts stores diff counters for a section.
type Counts struct {
	Added   int
	Updated int
	Removed int
	Total   int
}

// Diff aggregates the field changes and per-section counts.
type Diff struct {
	Changes  []Change
	Sections map[string]Counts
}

// Empty reports whether the two descriptors were equivalent.
func (d Diff) Empty() bool {
	return len(d.Changes) == 0
}

// Sections lists the descriptor sections in display order.
var Sections = []string{"bucket", "function", "grant", "subscription", "ledger", "delivery"}

// DiffStacks computes the field-level diff between two descriptors. Both sides
// are normalized first so that cosmetic differences do not show up.
func DiffStacks(before, after Stack) Diff {
	prev := Flatten(before.Normalize())
	next := Flatten(after.Normalize())

	diff := Diff{Sections: map[string]Counts{}}
	for _, section := range Sections {
		diff.Sections[section] = Counts{}
	}

	for key, value := range next {
		counts := diff.Sections[sectionOf(key)]
		counts.Total++
		old, ok := prev[key]
		switch {
		case !ok:
			counts.Added++
			diff.Changes = append(diff.Changes, Change{Path: key, Kind: ChangeAdded, After: value})
		case old != value:
			counts.Updated++
			diff.Changes = append(diff.Changes, Change{Path: key, Kind: ChangeUpdated, Before: old, After: value})
		}
		diff.Sections[sectionOf(key)] = counts
	}
	for key, value := range prev {
		if _, ok := next[key]; ok {
			continue
		}
		counts := diff.Sections[sectionOf(key)]
		counts.Removed++
		diff.Sections[sectionOf(key)] = counts
		diff.Changes = append(diff.Changes, Change{Path: key, Kind: ChangeRemoved, Before: value})
	}

	sort.Slice(diff.Changes, func(i, j int) bool { return diff.Changes[i].Path < diff.Changes[j].Path })
	return diff
}

// FormatCountsLabel formats counts for summaries.
func FormatCountsLabel(counts Counts) string {
	return fmt.Sprintf(
		"new %d / updated %d / removed %d (total %d)",
		counts.Added,
		counts.Updated,
		counts.Removed,
		counts.Total,
	)
}

// Flatten turns a descriptor into dotted paths. The effective grant actions
// are included so that capability edits show their real effect.
func Flatten(s Stack) map[string]string {
	out := map[string]string{
		"bucket.name":                    s.Bucket.Name,
		"function.name":                  s.Function.Name,
		"function.runtime":               s.Function.Runtime,
		"function.handler":               s.Function.Handler,
		"function.code_uri":              s.Function.CodeURI,
		"function.timeout":               strconv.Itoa(s.Function.Timeout),
		"function.memory_size":           strconv.Itoa(s.Function.MemorySize),
		"function.role_name":             s.Function.RoleName,
		"grant.principal":                s.Grant.Principal,
		"grant.policy_name":              s.Grant.PolicyName,
		"subscription.events":            strings.Join(s.Subscription.Events, ","),
		"subscription.prefix":            s.Subscription.Prefix,
		"subscription.suffix":            s.Subscription.Suffix,
		"ledger.backend":                 s.Ledger.Backend,
		"ledger.table":                   s.Ledger.Table,
		"ledger.key":                     s.Ledger.Key,
		"ledger.processor":               s.Ledger.Processor,
		"ledger.tag_processed":           strconv.FormatBool(s.Ledger.TagProcessed),
		"delivery.max_retry_attempts":    strconv.Itoa(s.Delivery.MaxRetryAttempts),
		"delivery.max_event_age_seconds": strconv.Itoa(s.Delivery.MaxEventAge),
		"delivery.dead_letter_arn":       s.Delivery.DeadLetterARN,
	}
	for key, value := range s.Function.Environment {
		out["function.environment."+key] = value
	}
	if doc, err := s.Grant.Policy(s.Bucket); err == nil {
		out["grant.actions"] = strings.Join(doc.Actions(), ",")
	}
	for key, value := range out {
		if value == "" {
			delete(out, key)
		}
	}
	return out
}

func sectionOf(path string) string {
	section, _, _ := strings.Cut(path, ".")
	return section
}
