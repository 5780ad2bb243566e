// Where: internal/infra/config/schema.go
// What: JSON schema check for descriptor documents.
// Why: Report unknown keys and wrong types with JSON pointers before semantic validation.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"
)

//go:embed schema/stack.schema.json
var stackSchema []byte

const stackSchemaURL = "stack.schema.json"

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

// ValidateSchema checks a YAML or JSON descriptor against the embedded schema.
func ValidateSchema(content []byte) error {
	sch, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load descriptor schema: %w", err)
	}

	jsonData, err := yaml.YAMLToJSON(content)
	if err != nil {
		return fmt.Errorf("convert yaml to json: %w", err)
	}

	var document any
	if err := json.Unmarshal(jsonData, &document); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if document == nil {
		return fmt.Errorf("descriptor is empty")
	}
	if err := sch.Validate(document); err != nil {
		return fmt.Errorf("descriptor schema: %w", err)
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(stackSchemaURL, bytes.NewReader(stackSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(stackSchemaURL)
	})
	return compiledSchema, schemaErr
}
