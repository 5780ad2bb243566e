// Where: internal/command/app_test.go
// What: Tests for invoicectl command routing and commands.
// Why: Keep command wiring stable without AWS or a terminal.
package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/infra/config"
	"github.com/poruru-code/invoice-autorecord/internal/infra/ledger"
	"github.com/poruru-code/invoice-autorecord/internal/provisioner"
	"github.com/poruru-code/invoice-autorecord/internal/usecase/probe"
)

var pdf = []byte("%PDF-1.7\n%test\n")

type fakeBucket struct {
	exists bool
	calls  int
}

func (f *fakeBucket) BucketExists(context.Context, string) (bool, error) {
	f.calls++
	return f.exists, nil
}

func (f *fakeBucket) LambdaNotifications(context.Context, string) (provisioner.NotificationSet, error) {
	return provisioner.NotificationSet{}, nil
}

func (f *fakeBucket) PutLambdaNotifications(context.Context, string, provisioner.NotificationSet) error {
	return nil
}

type staticFactory struct {
	clients provisioner.Clients
}

func (f staticFactory) Clients(context.Context) (provisioner.Clients, error) {
	return f.clients, nil
}

type yesConfirmer struct{ asked int }

func (c *yesConfirmer) Confirm(string, string) (bool, error) {
	c.asked++
	return true, nil
}

// workspace writes the default descriptor into a temp dir and returns deps
// rooted there.
func workspace(t *testing.T, mutate func(*stack.Stack)) (string, Dependencies, *bytes.Buffer) {
	t.Helper()
	t.Setenv(config.EnvDescriptor, "")
	dir := t.TempDir()
	st := stack.Default()
	if mutate != nil {
		mutate(&st)
	}
	if err := config.SaveDescriptor(filepath.Join(dir, "stack.yaml"), st); err != nil {
		t.Fatalf("save descriptor: %v", err)
	}
	var out bytes.Buffer
	deps := Dependencies{
		Out:    &out,
		ErrOut: &bytes.Buffer{},
		Getwd:  func() (string, error) { return dir, nil },
	}
	return dir, deps, &out
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	if code := Run(nil, Dependencies{Out: &out}); code != 0 {
		t.Fatalf("unexpected exit code %d", code)
	}
	if !strings.Contains(out.String(), "validate|synth|diff|provision|probe|simulate|version") {
		t.Fatalf("unexpected usage: %q", out.String())
	}
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if code := Run([]string{"version"}, Dependencies{Out: &out}); code != 0 {
		t.Fatalf("unexpected exit code %d", code)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Fatalf("expected version output")
	}
}

func TestRunFileFlagNeedsValue(t *testing.T) {
	var out bytes.Buffer
	if code := Run([]string{"validate", "--file"}, Dependencies{Out: &out, ErrOut: &bytes.Buffer{}}); code == 0 {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(out.String(), "--file") {
		t.Fatalf("expected hint, got %q", out.String())
	}
}

func TestValidateReportsDescriptor(t *testing.T) {
	_, deps, out := workspace(t, nil)
	if code := Run([]string{"--no-emoji", "validate"}, deps); code != 0 {
		t.Fatalf("validate failed: %s", out.String())
	}
	for _, want := range []string{"himawari-accounting", "read, write", "[ok] Descriptor is valid"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in %q", want, out.String())
		}
	}
}

func TestValidateFailsWithoutDescriptor(t *testing.T) {
	t.Setenv(config.EnvDescriptor, "")
	dir := t.TempDir()
	var out bytes.Buffer
	code := Run([]string{"validate"}, Dependencies{Out: &out, ErrOut: &bytes.Buffer{}, Getwd: func() (string, error) { return dir, nil }})
	if code == 0 {
		t.Fatalf("expected failure without stack.yaml")
	}
}

func TestSynthWritesTemplate(t *testing.T) {
	dir, deps, out := workspace(t, nil)
	if code := Run([]string{"synth"}, deps); code != 0 {
		t.Fatalf("synth failed: %s", out.String())
	}
	if !strings.Contains(out.String(), "AWS::Serverless::Function") {
		t.Fatalf("expected template on stdout: %q", out.String())
	}

	target := filepath.Join(dir, "build", "template.yaml")
	out.Reset()
	if code := Run([]string{"synth", "-o", target}, deps); code != 0 {
		t.Fatalf("synth -o failed: %s", out.String())
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("template not written: %v", err)
	}
}

func TestDiffShowsCapabilityChange(t *testing.T) {
	dir, deps, out := workspace(t, nil)
	next := stack.Default()
	next.Grant.Capabilities = []stack.Capability{stack.CapabilityRead}
	next.Ledger.Backend = stack.LedgerBackendDynamoDB
	next.Ledger.Table = "invoice-ledger"
	nextPath := filepath.Join(dir, "next.yaml")
	if err := config.SaveDescriptor(nextPath, next); err != nil {
		t.Fatalf("save: %v", err)
	}
	if code := Run([]string{"diff", nextPath}, deps); code != 0 {
		t.Fatalf("diff failed: %s", out.String())
	}
	if !strings.Contains(out.String(), "grant.actions") {
		t.Fatalf("expected capability change: %q", out.String())
	}
	if !strings.Contains(out.String(), "ledger.backend") {
		t.Fatalf("expected ledger backend change: %q", out.String())
	}

	out.Reset()
	if code := Run([]string{"diff", filepath.Join(dir, "stack.yaml")}, deps); code != 0 {
		t.Fatalf("diff failed: %s", out.String())
	}
	if !strings.Contains(out.String(), "No changes") {
		t.Fatalf("expected no changes: %q", out.String())
	}
}

func TestProvisionRequiresConfirmation(t *testing.T) {
	_, deps, out := workspace(t, nil)
	deps.Provision.Factory = func(ProvisionTarget) (provisioner.ClientFactory, error) {
		t.Fatalf("factory must not be built without confirmation")
		return nil, nil
	}
	if code := Run([]string{"provision"}, deps); code == 0 {
		t.Fatalf("expected refusal")
	}
	if !strings.Contains(out.String(), "--yes") {
		t.Fatalf("expected --yes hint: %q", out.String())
	}
}

func TestProvisionRunsStepsAfterConfirmation(t *testing.T) {
	_, deps, out := workspace(t, nil)
	bucket := &fakeBucket{exists: true}
	confirmer := &yesConfirmer{}
	var target ProvisionTarget
	deps.Confirmer = confirmer
	deps.Provision.Factory = func(tg ProvisionTarget) (provisioner.ClientFactory, error) {
		target = tg
		return staticFactory{clients: provisioner.Clients{S3: bucket}}, nil
	}
	if code := Run([]string{"provision", "--local", "-p", "invoice-dev"}, deps); code != 0 {
		t.Fatalf("provision failed: %s", out.String())
	}
	if confirmer.asked != 1 || bucket.calls != 1 {
		t.Fatalf("unexpected calls: asked=%d bucket=%d", confirmer.asked, bucket.calls)
	}
	if !target.Local || target.Project != "invoice-dev" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestProvisionStopsOnMissingBucket(t *testing.T) {
	_, deps, out := workspace(t, nil)
	deps.Provision.Factory = func(ProvisionTarget) (provisioner.ClientFactory, error) {
		return staticFactory{clients: provisioner.Clients{S3: &fakeBucket{}}}, nil
	}
	if code := Run([]string{"provision", "--yes"}, deps); code == 0 {
		t.Fatalf("expected failure for missing bucket")
	}
	if !strings.Contains(out.String(), "bucket") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestProbeLocalPasses(t *testing.T) {
	_, deps, out := workspace(t, nil)
	if code := Run([]string{"probe"}, deps); code != 0 {
		t.Fatalf("probe failed: %s", out.String())
	}
	if !strings.Contains(out.String(), "Grant is scoped to the bucket") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestProbeSimulateNeedsRole(t *testing.T) {
	_, deps, _ := workspace(t, nil)
	deps.Probe.Simulator = func(context.Context) (probe.Simulator, error) {
		return nil, errors.New("must not be called")
	}
	if code := Run([]string{"probe", "--simulate"}, deps); code == 0 {
		t.Fatalf("expected failure without --role-arn")
	}
}

func writeInvoices(t *testing.T, dir string) {
	t.Helper()
	files := map[string][]byte{
		"2024/20241031_Amazon_1000_Books.pdf": pdf,
		"2024/invoice-0001.pdf":               pdf,
		"readme.txt":                          []byte("not an invoice"),
		"scan.PDF":                            pdf,
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestSimulateRecordsEachInvoiceOnce(t *testing.T) {
	dir, deps, out := workspace(t, nil)
	invoices := filepath.Join(dir, "invoices")
	writeInvoices(t, invoices)
	ledgerPath := filepath.Join(dir, "ledger.csv")

	code := Run([]string{"simulate", invoices, "--duplicates", "3", "--shuffle", "--seed", "7", "-o", ledgerPath}, deps)
	if code != 0 {
		t.Fatalf("simulate failed: %s", out.String())
	}
	if !strings.Contains(out.String(), "Ledger (2 record(s))") {
		t.Fatalf("expected two records: %q", out.String())
	}
	payload, err := os.ReadFile(ledgerPath)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	rows, err := ledger.DecodeCSV(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestSimulateDeadLettersMissingObject(t *testing.T) {
	dir, deps, out := workspace(t, nil)
	invoices := filepath.Join(dir, "invoices")
	writeInvoices(t, invoices)

	code := Run([]string{"simulate", invoices, "--ledger", "memory", "--duplicates", "0", "--missing", "2024/invoice-0001.pdf"}, deps)
	if code != 0 {
		t.Fatalf("simulate failed: %s", out.String())
	}
	for _, want := range []string{"dead letters:", "transient [2024/invoice-0001.pdf]", "Ledger (1 record(s))"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in %q", want, out.String())
		}
	}
}
