// Where: internal/infra/config/descriptor.go
// What: Descriptor load/save for stack.yaml.
// Why: Keep the trigger topology as a reviewable file that every command reads the same way.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"gopkg.in/yaml.v3"
)

// LoadDescriptor reads, schema-checks, decodes and validates a descriptor.
func LoadDescriptor(path string) (stack.Stack, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return stack.Stack{}, fmt.Errorf("read descriptor: %w", err)
	}
	st, err := ParseDescriptor(payload)
	if err != nil {
		return stack.Stack{}, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// ParseDescriptor decodes a descriptor document. Fields the document omits
// keep the values of stack.Default, so a minimal file only names its bucket.
func ParseDescriptor(payload []byte) (stack.Stack, error) {
	if err := ValidateSchema(payload); err != nil {
		return stack.Stack{}, err
	}
	st := stack.Default()
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(&st); err != nil && !errors.Is(err, io.EOF) {
		return stack.Stack{}, fmt.Errorf("decode descriptor: %w", err)
	}
	st = st.Normalize()
	if err := st.Validate(); err != nil {
		return stack.Stack{}, err
	}
	return st, nil
}

// SaveDescriptor writes a descriptor to path.
func SaveDescriptor(path string, st stack.Stack) error {
	payload, err := MarshalDescriptor(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create descriptor dir: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}

// MarshalDescriptor renders a descriptor as YAML with two-space indentation.
func MarshalDescriptor(st stack.Stack) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(st.Normalize()); err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	return buf.Bytes(), nil
}
