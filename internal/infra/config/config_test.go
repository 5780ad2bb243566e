package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/meta"
)

func TestDescriptorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", meta.DescriptorFile)
	st := stack.Default()
	st.Bucket.Name = "acme-invoices"
	st.Function.Environment = map[string]string{"FEATURE": "on"}
	st.Ledger = stack.LedgerSpec{Backend: stack.LedgerBackendDynamoDB, Table: "ledger"}

	if err := SaveDescriptor(path, st); err != nil {
		t.Fatalf("save descriptor: %v", err)
	}
	loaded, err := LoadDescriptor(path)
	if err != nil {
		t.Fatalf("load descriptor: %v", err)
	}
	if !reflect.DeepEqual(st.Normalize(), loaded) {
		t.Fatalf("descriptor mismatch:\nwant %#v\ngot  %#v", st.Normalize(), loaded)
	}
}

func TestParseDescriptorAppliesDefaults(t *testing.T) {
	st, err := ParseDescriptor([]byte("bucket:\n  name: other-bucket\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if st.Bucket.Name != "other-bucket" {
		t.Fatalf("unexpected bucket: %s", st.Bucket.Name)
	}
	if st.Subscription.Suffix != meta.DefaultSuffix || st.Function.Name != meta.DefaultFunction {
		t.Fatalf("expected defaults, got %+v", st)
	}
	if st.Grant.Principal != meta.DefaultFunction {
		t.Fatalf("expected principal to default to function name")
	}
}

func TestParseDescriptorRejectsUnknownKeys(t *testing.T) {
	_, err := ParseDescriptor([]byte("bucket:\n  name: b-1\n  region: x\n"))
	if err == nil || !strings.Contains(err.Error(), "descriptor schema") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestParseDescriptorRejectsDeleteCapability(t *testing.T) {
	doc := "bucket:\n  name: bucket-1\ngrant:\n  capabilities: [read, delete]\n"
	if _, err := ParseDescriptor([]byte(doc)); err == nil {
		t.Fatalf("expected error for delete capability")
	}
}

func TestParseDescriptorRunsSemanticValidation(t *testing.T) {
	doc := "bucket:\n  name: bucket-1\nledger:\n  backend: dynamodb\n"
	_, err := ParseDescriptor([]byte(doc))
	if !errors.Is(err, stack.ErrInvalidDescriptor) {
		t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
	}
}

func TestParseDescriptorRejectsEmptyDocument(t *testing.T) {
	if _, err := ParseDescriptor(nil); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestResolveDescriptorPathSearchesUpwards(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, meta.DescriptorFile)
	if err := os.WriteFile(want, []byte("bucket:\n  name: b-1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv(EnvDescriptor, "")

	got, err := ResolveDescriptorPath("", nested)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != want {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestResolveDescriptorPathPrefersEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("bucket:\n  name: b-1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvDescriptor, path)

	got, err := ResolveDescriptorPath("", t.TempDir())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != path {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestResolveDescriptorPathReportsMissing(t *testing.T) {
	t.Setenv(EnvDescriptor, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := ResolveDescriptorPath("", t.TempDir())
	if !IsDescriptorNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestRuntimeDefaults(t *testing.T) {
	rt, err := RuntimeFromLookup(lookupFrom(map[string]string{EnvLedgerBucket: "himawari-accounting"}))
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	if rt.LedgerBackend != stack.LedgerBackendS3CSV || rt.LedgerKey != meta.LedgerCSVKey {
		t.Fatalf("unexpected ledger config: %+v", rt)
	}
	if rt.Processor != meta.DefaultProcessor || rt.Suffix != ".pdf" || rt.TagProcessed {
		t.Fatalf("unexpected defaults: %+v", rt)
	}
}

func TestRuntimeRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"backend":        {EnvLedgerBackend: "sqlite"},
		"tag":            {EnvLedgerBackend: "dynamodb", EnvTagProcessed: "maybe"},
		"missing bucket": {EnvLedgerBackend: "s3csv"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := RuntimeFromLookup(lookupFrom(env)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRuntimeEnvironmentRoundTrip(t *testing.T) {
	st := stack.Default()
	st.Ledger.TagProcessed = true
	st.Function.Environment = map[string]string{EnvProcessorName: "経理部"}
	env := RuntimeEnvironment(st)

	rt, err := RuntimeFromLookup(lookupFrom(env))
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	if rt.LedgerBucket != st.Bucket.Name || !rt.TagProcessed {
		t.Fatalf("unexpected runtime: %+v", rt)
	}
	if rt.Processor != "経理部" {
		t.Fatalf("descriptor environment should win, got %q", rt.Processor)
	}
}
