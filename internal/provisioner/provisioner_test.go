// Where: internal/provisioner/provisioner_test.go
// What: Tests for provisioning steps and port discovery.
// Why: Ensure a missing bucket fails fast and reapplying changes nothing.
package provisioner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
)

type fakePortResolver struct {
	port  int
	err   error
	calls int
}

func (f *fakePortResolver) Resolve(_ context.Context, _ PortRequest) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.port, nil
}

func TestResolvePortUsesEnv(t *testing.T) {
	t.Setenv(EnvPortDynamoDB, "8001")
	resolver := &fakePortResolver{port: 9999}

	port, ok := resolvePort(context.Background(), EnvPortDynamoDB, 8000, PortRequest{}, resolver)
	if !ok || port != 8001 {
		t.Fatalf("unexpected port: %d %v", port, ok)
	}
	if resolver.calls != 0 {
		t.Fatalf("expected resolver not called")
	}
}

func TestResolvePortUsesResolverWhenZero(t *testing.T) {
	t.Setenv(EnvPortS3, "0")
	resolver := &fakePortResolver{port: 9002}

	port, ok := resolvePort(context.Background(), EnvPortS3, 9000, PortRequest{}, resolver)
	if !ok || port != 9002 {
		t.Fatalf("unexpected port: %d %v", port, ok)
	}
}

func TestResolvePortFallsBackToDefaultWhenUnset(t *testing.T) {
	t.Setenv(EnvPortS3, "")
	resolver := &fakePortResolver{err: errors.New("not found")}

	port, ok := resolvePort(context.Background(), EnvPortS3, 9000, PortRequest{}, resolver)
	if !ok || port != 9000 {
		t.Fatalf("unexpected port: %d %v", port, ok)
	}
}

type fakeLister struct {
	containers []container.Summary
}

func (f fakeLister) ContainerList(context.Context, container.ListOptions) ([]container.Summary, error) {
	return f.containers, nil
}

func TestDockerPortResolverMatchesService(t *testing.T) {
	resolver := DockerPortResolver{Client: fakeLister{containers: []container.Summary{
		{
			Labels: map[string]string{composeProjectLabel: "invoice", composeServiceLabel: "database"},
			Ports:  []container.Port{{PrivatePort: 8000, PublicPort: 18000}},
		},
		{
			Labels: map[string]string{composeProjectLabel: "invoice", composeServiceLabel: "s3-storage"},
			Ports:  []container.Port{{PrivatePort: 9000, PublicPort: 19000}},
		},
	}}}

	port, err := resolver.Resolve(context.Background(), PortRequest{Project: "invoice", Service: "s3-storage", ContainerPort: 9000})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if port != 19000 {
		t.Fatalf("unexpected port: %d", port)
	}
	if _, err := resolver.Resolve(context.Background(), PortRequest{Project: "invoice", Service: "missing", ContainerPort: 1}); err == nil {
		t.Fatalf("expected error for unknown service")
	}
}

type fakeBucket struct {
	exists bool
	err    error
	set    NotificationSet
	puts   int
}

func (f *fakeBucket) BucketExists(context.Context, string) (bool, error) { return f.exists, f.err }

func (f *fakeBucket) LambdaNotifications(context.Context, string) (NotificationSet, error) {
	return f.set, nil
}

func (f *fakeBucket) PutLambdaNotifications(_ context.Context, _ string, set NotificationSet) error {
	f.puts++
	f.set = set
	return nil
}

type fakeTables struct {
	existing []string
	created  []DynamoCreateInput
}

func (f *fakeTables) ListTables(context.Context) ([]string, error) { return f.existing, nil }

func (f *fakeTables) CreateTable(_ context.Context, input DynamoCreateInput) error {
	f.created = append(f.created, input)
	f.existing = append(f.existing, input.TableName)
	return nil
}

type fakeIAM struct {
	documents map[string]string
	puts      int
}

func (f *fakeIAM) GetRolePolicy(_ context.Context, role, name string) (string, bool, error) {
	doc, ok := f.documents[role+"/"+name]
	return doc, ok, nil
}

func (f *fakeIAM) PutRolePolicy(_ context.Context, role, name, document string) error {
	if f.documents == nil {
		f.documents = map[string]string{}
	}
	f.puts++
	f.documents[role+"/"+name] = document
	return nil
}

type staticFactory struct{ clients Clients }

func (f staticFactory) Clients(context.Context) (Clients, error) { return f.clients, nil }

func deployedStack() stack.Stack {
	st := stack.Default()
	st.Function.RoleName = "LedgerUpdaterRole"
	st.Function.ARN = "arn:aws:lambda:ap-northeast-1:123456789012:function:LedgerUpdater"
	st.Ledger = stack.LedgerSpec{Backend: stack.LedgerBackendDynamoDB, Table: "invoice-ledger"}
	return st
}

func TestApplyFailsFastOnMissingBucket(t *testing.T) {
	bucket := &fakeBucket{exists: false}
	tables := &fakeTables{}
	policies := &fakeIAM{}
	runner := New(&bytes.Buffer{}, staticFactory{Clients{S3: bucket, DynamoDB: tables, IAM: policies}})

	_, err := runner.Apply(context.Background(), deployedStack())
	if !errors.Is(err, ErrBucketUnavailable) {
		t.Fatalf("expected ErrBucketUnavailable, got %v", err)
	}
	if len(tables.created) != 0 || policies.puts != 0 || bucket.puts != 0 {
		t.Fatalf("no step may run after the bucket check fails")
	}
}

func TestApplyWrapsBucketAccessErrors(t *testing.T) {
	bucket := &fakeBucket{err: errors.New("AccessDenied")}
	runner := New(&bytes.Buffer{}, staticFactory{Clients{S3: bucket}})

	_, err := runner.Apply(context.Background(), deployedStack())
	if !errors.Is(err, ErrBucketUnavailable) || !strings.Contains(err.Error(), "AccessDenied") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	other := LambdaNotification{ID: "thumbnails", FunctionARN: "arn:aws:lambda:x:1:function:thumbs", Events: []string{"s3:ObjectCreated:*"}, Suffix: ".jpg"}
	bucket := &fakeBucket{exists: true, set: NotificationSet{Lambda: []LambdaNotification{other}}}
	tables := &fakeTables{}
	policies := &fakeIAM{}
	var out bytes.Buffer
	runner := New(&out, staticFactory{Clients{S3: bucket, DynamoDB: tables, IAM: policies}})

	first, err := runner.Apply(context.Background(), deployedStack())
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	for _, result := range first[1:] {
		if !result.Changed {
			t.Fatalf("expected %s to change on first apply", result.Step)
		}
	}
	second, err := runner.Apply(context.Background(), deployedStack())
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	for _, result := range second {
		if result.Changed {
			t.Fatalf("expected %s to be unchanged on reapply", result.Step)
		}
	}
	if len(tables.created) != 1 || policies.puts != 1 || bucket.puts != 1 {
		t.Fatalf("unexpected call counts: tables=%d policies=%d notifications=%d", len(tables.created), policies.puts, bucket.puts)
	}
	if len(bucket.set.Lambda) != 2 || bucket.set.Lambda[0].ID != "thumbnails" {
		t.Fatalf("existing notifications must be kept: %+v", bucket.set.Lambda)
	}
	ours := bucket.set.Lambda[1]
	if ours.Suffix != ".pdf" || ours.FunctionARN != deployedStack().Function.ARN {
		t.Fatalf("unexpected notification: %+v", ours)
	}
	doc := policies.documents["LedgerUpdaterRole/"+deployedStack().Grant.PolicyName]
	if strings.Contains(doc, "Delete") || !strings.Contains(doc, "arn:aws:s3:::himawari-accounting/*") {
		t.Fatalf("unexpected policy document: %s", doc)
	}
	if !strings.Contains(out.String(), "Provisioning complete") {
		t.Fatalf("expected summary output, got %q", out.String())
	}
}

func TestApplySkipsStepsWithoutDeploymentInfo(t *testing.T) {
	bucket := &fakeBucket{exists: true}
	runner := New(&bytes.Buffer{}, staticFactory{Clients{S3: bucket}})

	results, err := runner.Apply(context.Background(), stack.Default())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, result := range results[1:] {
		if !result.Skipped {
			t.Fatalf("expected %s to be skipped: %+v", result.Step, result)
		}
	}
}

func TestSamePolicyAcceptsURLEncodedDocument(t *testing.T) {
	doc := `{"Version":"2012-10-17","Statement":[]}`
	encoded := "%7B%22Version%22%3A%222012-10-17%22%2C%22Statement%22%3A%5B%5D%7D"
	if !samePolicy(encoded, doc) {
		t.Fatalf("expected encoded document to match")
	}
	if samePolicy(`{"Version":"2008-10-17"}`, doc) {
		t.Fatalf("different documents must not match")
	}
}

func TestSamePolicyKeepsLiteralPlus(t *testing.T) {
	doc := `{"Version":"2012-10-17","Statement":[{"Sid":"read+write","Effect":"Allow"}]}`
	encoded := "%7B%22Version%22%3A%222012-10-17%22%2C%22Statement%22%3A%5B%7B%22Sid%22%3A%22read+write%22%2C%22Effect%22%3A%22Allow%22%7D%5D%7D"
	if !samePolicy(encoded, doc) {
		t.Fatalf("expected %q to match %s", encoded, doc)
	}
}

func TestBuildAWSCreateTableInput(t *testing.T) {
	input, err := buildAWSCreateTableInput(LedgerTableInput("invoice-ledger"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if *input.TableName != "invoice-ledger" || len(input.KeySchema) != 1 || input.ProvisionedThroughput != nil {
		t.Fatalf("unexpected input: %+v", input)
	}
	if *input.KeySchema[0].AttributeName != "source_key" {
		t.Fatalf("unexpected key: %s", *input.KeySchema[0].AttributeName)
	}
}
