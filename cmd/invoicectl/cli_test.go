// Where: cmd/invoicectl/cli_test.go
// What: Tests for CLI dependency wiring.
// Why: Ensure buildDependencies keeps the injected hooks.
package main

import (
	"testing"

	"github.com/poruru-code/invoice-autorecord/internal/infra/interaction"
)

type stubConfirmer struct{}

func (stubConfirmer) Confirm(string, string) (bool, error) { return true, nil }

func TestBuildDependenciesUsesHooks(t *testing.T) {
	origGetwd := getwd
	origConfirmer := newConfirmer
	t.Cleanup(func() {
		getwd = origGetwd
		newConfirmer = origConfirmer
	})
	getwd = func() (string, error) { return "/project", nil }
	newConfirmer = func() interaction.Confirmer { return stubConfirmer{} }

	deps := buildDependencies()
	dir, err := deps.Getwd()
	if err != nil || dir != "/project" {
		t.Fatalf("unexpected getwd: %q %v", dir, err)
	}
	if _, ok := deps.Confirmer.(stubConfirmer); !ok {
		t.Fatalf("expected injected confirmer, got %T", deps.Confirmer)
	}
	if deps.Out == nil || deps.ErrOut == nil {
		t.Fatalf("expected output writers")
	}
}
