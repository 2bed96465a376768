// Package contracts validates message payloads against the embedded AsyncAPI
// document.
package contracts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// MessageMovementCommand is the schema name of movement feed payloads
const MessageMovementCommand = "MovementCommand"

//go:embed schemas/warehouse.asyncapi.yaml
var warehouseAsyncAPI []byte

type asyncAPIDocument struct {
	AsyncAPI   string `yaml:"asyncapi"`
	Components struct {
		Schemas map[string]any `yaml:"schemas"`
	} `yaml:"components"`
}

// Validator validates payloads against compiled component schemas
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewWarehouseValidator compiles the embedded warehouse document
func NewWarehouseValidator() (*Validator, error) {
	return NewValidator(warehouseAsyncAPI)
}

// NewValidator compiles every components.schemas entry of an AsyncAPI document
func NewValidator(document []byte) (*Validator, error) {
	var doc asyncAPIDocument
	if err := yaml.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("parse asyncapi document: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()

	schemas := make(map[string]*jsonschema.Schema, len(doc.Components.Schemas))
	for name, raw := range doc.Components.Schemas {
		// round-trip through JSON so the compiler sees plain JSON values
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}

		uri := "asyncapi://components/schemas/" + name
		if err := compiler.AddResource(uri, parsed); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		compiled, err := compiler.Compile(uri)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		schemas[name] = compiled
	}

	return &Validator{schemas: schemas}, nil
}

// Validate checks a JSON payload against the named schema
func (v *Validator) Validate(message string, payload []byte) error {
	schema, ok := v.schemas[message]
	if !ok {
		return fmt.Errorf("no schema for message %s", message)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s payload is not valid JSON: %w", message, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%s payload violates contract: %w", message, err)
	}
	return nil
}

// Messages lists the compiled schema names
func (v *Validator) Messages() []string {
	names := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
