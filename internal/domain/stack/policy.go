// Where: internal/domain/stack/policy.go
// What: Expansion of a PermissionGrant into a bucket-scoped IAM policy.
// Why: Make the storage/compute permission boundary testable without IAM.
package stack

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// S3 action names used by the grant.
const (
	ActionGetObject            = "s3:GetObject"
	ActionGetObjectVersion     = "s3:GetObjectVersion"
	ActionGetObjectTagging     = "s3:GetObjectTagging"
	ActionListBucket           = "s3:ListBucket"
	ActionGetBucketLocation    = "s3:GetBucketLocation"
	ActionPutObject            = "s3:PutObject"
	ActionPutObjectTagging     = "s3:PutObjectTagging"
	ActionAbortMultipartUpload = "s3:AbortMultipartUpload"
	ActionDeleteObject         = "s3:DeleteObject"
	ActionDeleteBucket         = "s3:DeleteBucket"
	ActionPutBucketPolicy      = "s3:PutBucketPolicy"
)

// PolicyVersion is the IAM policy language version.
const PolicyVersion = "2012-10-17"

var (
	readObjectActions  = []string{ActionGetObject, ActionGetObjectVersion, ActionGetObjectTagging}
	readBucketActions  = []string{ActionListBucket, ActionGetBucketLocation}
	writeObjectActions = []string{ActionPutObject, ActionPutObjectTagging, ActionAbortMultipartUpload}
)

// ErrInvalidGrant is returned when a grant cannot be expanded safely.
var ErrInvalidGrant = errors.New("invalid permission grant")

// Statement is one IAM policy statement.
type Statement struct {
	Sid      string   `json:"Sid,omitempty"`
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource []string `json:"Resource"`
}

// PolicyDocument is an identity policy attached to the handler's role.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Policy expands the grant against the bucket. Object actions are scoped to
// the bucket's objects and bucket actions to the bucket itself; nothing is
// granted account-wide and no delete or administrative action is ever emitted.
func (g PermissionGrant) Policy(bucket BucketRef) (PolicyDocument, error) {
	if strings.TrimSpace(bucket.Name) == "" {
		return PolicyDocument{}, fmt.Errorf("%w: bucket name is required", ErrInvalidGrant)
	}
	if len(g.Capabilities) == 0 {
		return PolicyDocument{}, fmt.Errorf("%w: no capabilities", ErrInvalidGrant)
	}

	objectActions := map[string]struct{}{}
	bucketActions := map[string]struct{}{}
	for _, capability := range g.Capabilities {
		switch capability {
		case CapabilityRead:
			addAll(objectActions, readObjectActions)
			addAll(bucketActions, readBucketActions)
		case CapabilityWrite:
			addAll(objectActions, writeObjectActions)
		default:
			return PolicyDocument{}, fmt.Errorf("%w: unsupported capability %q", ErrInvalidGrant, capability)
		}
	}

	doc := PolicyDocument{Version: PolicyVersion}
	if len(objectActions) > 0 {
		doc.Statement = append(doc.Statement, Statement{
			Sid:      "ObjectAccess",
			Effect:   "Allow",
			Action:   sortedKeys(objectActions),
			Resource: []string{bucket.ObjectsARN()},
		})
	}
	if len(bucketActions) > 0 {
		doc.Statement = append(doc.Statement, Statement{
			Sid:      "BucketAccess",
			Effect:   "Allow",
			Action:   sortedKeys(bucketActions),
			Resource: []string{bucket.ARN()},
		})
	}
	return doc, nil
}

// JSON renders the document the way IAM expects it.
func (p PolicyDocument) JSON() (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode policy: %w", err)
	}
	return string(payload), nil
}

// Actions returns every action granted by the document.
func (p PolicyDocument) Actions() []string {
	set := map[string]struct{}{}
	for _, st := range p.Statement {
		addAll(set, st.Action)
	}
	return sortedKeys(set)
}

// Allows evaluates the document for a single action/resource pair. Only Allow
// statements exist in generated documents, so absence of a match is a deny.
func (p PolicyDocument) Allows(action, resource string) bool {
	for _, st := range p.Statement {
		if st.Effect != "Allow" {
			continue
		}
		if !matchAny(st.Action, action) {
			continue
		}
		if matchAny(st.Resource, resource) {
			return true
		}
	}
	return false
}

// ObjectARN returns the resource ARN for one object key.
func ObjectARN(bucket, key string) string {
	return "arn:aws:s3:::" + bucket + "/" + key
}

func matchAny(patterns []string, value string) bool {
	for _, pattern := range patterns {
		if matchPattern(pattern, value) {
			return true
		}
	}
	return false
}

// matchPattern supports the trailing "*" form used in generated resources.
func matchPattern(pattern, value string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(value, prefix)
	}
	return pattern == value
}

func addAll(set map[string]struct{}, values []string) {
	for _, value := range values {
		set[value] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
