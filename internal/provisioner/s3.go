// Where: internal/provisioner/s3.go
// What: Bucket existence check and object-created notification.
// Why: The bucket is referenced, never created; only its notification rule is managed.
package provisioner

import (
	"context"
	"fmt"
	"sort"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/meta"
)

// BucketAPI is what the provisioner needs from S3.
type BucketAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	LambdaNotifications(ctx context.Context, bucket string) (NotificationSet, error)
	PutLambdaNotifications(ctx context.Context, bucket string, set NotificationSet) error
}

// LambdaNotification is one function notification on a bucket.
type LambdaNotification struct {
	ID          string
	FunctionARN string
	Events      []string
	Prefix      string
	Suffix      string
}

// NotificationSet is the bucket's notification configuration. Only Lambda
// entries are modelled; Other carries queue, topic and EventBridge settings
// through unchanged.
type NotificationSet struct {
	Lambda []LambdaNotification
	Other  any
}

// NotificationID is the id used for the handler's entry, so reapplying
// replaces rather than appends.
func NotificationID(st stack.Stack) string {
	return meta.Slug + "-" + st.Function.Name
}

func checkBucket(ctx context.Context, clients Clients, st stack.Stack) (StepResult, error) {
	result := StepResult{Step: StepBucket, Detail: st.Bucket.Name}
	if clients.S3 == nil {
		return result, fmt.Errorf("%w: s3 client not configured", ErrBucketUnavailable)
	}
	ok, err := clients.S3.BucketExists(ctx, st.Bucket.Name)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrBucketUnavailable, st.Bucket.Name, err)
	}
	if !ok {
		return result, fmt.Errorf("%w: %s does not exist", ErrBucketUnavailable, st.Bucket.Name)
	}
	return result, nil
}

func applyNotification(ctx context.Context, clients Clients, st stack.Stack) (StepResult, error) {
	result := StepResult{Step: StepNotification}
	if st.Function.ARN == "" {
		result.Skipped = true
		result.Detail = "function.arn not set; deploy the function first"
		return result, nil
	}
	if clients.S3 == nil {
		result.Skipped = true
		result.Detail = "no s3 client"
		return result, nil
	}
	current, err := clients.S3.LambdaNotifications(ctx, st.Bucket.Name)
	if err != nil {
		return result, fmt.Errorf("read notification configuration: %w", err)
	}
	desired := LambdaNotification{
		ID:          NotificationID(st),
		FunctionARN: st.Function.ARN,
		Events:      append([]string(nil), st.Subscription.Events...),
		Prefix:      st.Subscription.Prefix,
		Suffix:      st.Subscription.Suffix,
	}
	sort.Strings(desired.Events)

	next, changed := mergeNotification(current, desired)
	result.Detail = fmt.Sprintf("%s -> %s", desired.ID, desired.FunctionARN)
	if !changed {
		return result, nil
	}
	if err := clients.S3.PutLambdaNotifications(ctx, st.Bucket.Name, next); err != nil {
		return result, fmt.Errorf("put notification configuration: %w", err)
	}
	result.Changed = true
	return result, nil
}

// mergeNotification replaces the entry with desired.ID, keeping every other
// configuration on the bucket.
func mergeNotification(current NotificationSet, desired LambdaNotification) (NotificationSet, bool) {
	next := NotificationSet{Other: current.Other}
	found := false
	changed := false
	for _, item := range current.Lambda {
		if item.ID != desired.ID {
			next.Lambda = append(next.Lambda, item)
			continue
		}
		found = true
		if !sameNotification(item, desired) {
			changed = true
		}
		next.Lambda = append(next.Lambda, desired)
	}
	if !found {
		next.Lambda = append(next.Lambda, desired)
		changed = true
	}
	return next, changed
}

func sameNotification(a, b LambdaNotification) bool {
	if a.FunctionARN != b.FunctionARN || a.Prefix != b.Prefix || a.Suffix != b.Suffix {
		return false
	}
	if len(a.Events) != len(b.Events) {
		return false
	}
	left := append([]string(nil), a.Events...)
	sort.Strings(left)
	for i := range left {
		if left[i] != b.Events[i] {
			return false
		}
	}
	return true
}
