// Where: internal/infra/config/discover.go
// What: Descriptor path discovery.
// Why: Let commands run from anywhere inside a project without repeating --file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poruru-code/invoice-autorecord/internal/meta"
)

// EnvDescriptor overrides descriptor discovery.
const EnvDescriptor = meta.EnvPrefix + "_DESCRIPTOR"

var errDescriptorNotFound = errors.New("descriptor not found")

// ResolveDescriptorPath determines which descriptor file to use.
// Priority order.
// 1. explicit path (flag value).
// 2. INVOICE_DESCRIPTOR environment variable.
// 3. Upward search for stack.yaml from startDir.
func ResolveDescriptorPath(explicit, startDir string) (string, error) {
	if path := strings.TrimSpace(explicit); path != "" {
		return absPath(path)
	}
	if path := strings.TrimSpace(os.Getenv(EnvDescriptor)); path != "" {
		if !isFile(path) {
			return "", fmt.Errorf("%s=%s: %w", EnvDescriptor, path, errDescriptorNotFound)
		}
		return absPath(path)
	}
	if found, ok := findUpwards(startDir, meta.DescriptorFile); ok {
		return found, nil
	}
	return "", fmt.Errorf("%w: no %s in %s or its parents", errDescriptorNotFound, meta.DescriptorFile, startDir)
}

// IsDescriptorNotFound reports whether err came from a failed discovery.
func IsDescriptorNotFound(err error) bool {
	return errors.Is(err, errDescriptorNotFound)
}

func findUpwards(startDir, name string) (string, bool) {
	dir := strings.TrimSpace(startDir)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", false
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}
