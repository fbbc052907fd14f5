package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaDocument is the discriminated-union JSON Schema published to
// clients for validation: a "type" discriminator selects one of the three
// stage shapes, each with its own minimum-length and positivity constraints.
const schemaDocument = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://mcpshell/schema/pipeline.json",
  "type": "array",
  "minItems": 1,
  "items": {
    "oneOf": [
      {
        "type": "object",
        "required": ["type", "name", "server"],
        "properties": {
          "type": {"const": "tool"},
          "name": {"type": "string", "minLength": 1},
          "server": {"type": "string", "minLength": 1},
          "args": {"type": "object"},
          "for_each": {"type": "boolean"}
        },
        "additionalProperties": false
      },
      {
        "type": "object",
        "required": ["type", "command"],
        "properties": {
          "type": {"const": "command"},
          "command": {"type": "string", "minLength": 1},
          "args": {"type": "array", "items": {"type": "string"}},
          "for_each": {"type": "boolean"},
          "timeout": {"type": "number", "exclusiveMinimum": 0}
        },
        "additionalProperties": false
      },
      {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"const": "preview"},
          "chars": {"type": "integer", "exclusiveMinimum": 0}
        },
        "additionalProperties": false
      }
    ]
  }
}`

// compiledSchema is parsed once; Validate reuses it across calls.
var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(schemaDocument)))
	if err != nil {
		panic(fmt.Sprintf("pipeline: invalid embedded schema: %v", err))
	}
	const resourceID = "https://mcpshell/schema/pipeline.json"
	if err := compiler.AddResource(resourceID, doc); err != nil {
		panic(fmt.Sprintf("pipeline: adding embedded schema: %v", err))
	}
	schema, err := compiler.Compile(resourceID)
	if err != nil {
		panic(fmt.Sprintf("pipeline: compiling embedded schema: %v", err))
	}
	return schema
}

// SchemaDocument returns the raw JSON Schema text published to clients so
// they can validate a pipeline description client-side before submitting
// it.
func SchemaDocument() string { return schemaDocument }

// Validate checks a raw pipeline description against the discriminated
// union schema, returning a *ValidationError on the first violation. The
// engine trusts validated input — this is the RPC adapter's job, run before
// a pipeline ever reaches Execute.
func Validate(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("pipeline is not valid JSON: %v", err)}
	}
	if err := compiledSchema.Validate(v); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}
