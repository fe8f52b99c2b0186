package predictor

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const artifactSchemaURL = "schema://model-artifact.json"

const artifactSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "algorithm", "symptoms", "classes"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "algorithm": {"enum": ["gaussian_nb", "softmax"]},
    "accuracy": {"type": "number", "minimum": 0, "maximum": 1},
    "symptoms": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "classes": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "gaussian_nb": {
      "type": "object",
      "required": ["class_prior", "theta", "var"],
      "properties": {
        "class_prior": {"$ref": "#/$defs/vector"},
        "theta": {"$ref": "#/$defs/matrix"},
        "var": {"$ref": "#/$defs/matrix"},
        "epsilon": {"type": "number", "minimum": 0}
      }
    },
    "softmax": {
      "type": "object",
      "required": ["weights", "bias"],
      "properties": {
        "weights": {"$ref": "#/$defs/matrix"},
        "bias": {"$ref": "#/$defs/vector"}
      }
    }
  },
  "$defs": {
    "vector": {"type": "array", "minItems": 1, "items": {"type": "number"}},
    "matrix": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/vector"}}
  }
}`

var (
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
	schemaOnce        sync.Once
)

func artifactSchemaCompiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(artifactSchema))
		if err != nil {
			compiledSchemaErr = fmt.Errorf("parse artifact schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(artifactSchemaURL, doc); err != nil {
			compiledSchemaErr = fmt.Errorf("add artifact schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = c.Compile(artifactSchemaURL)
	})
	return compiledSchema, compiledSchemaErr
}

func validateSchema(content []byte) error {
	schema, err := artifactSchemaCompiled()
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("artifact is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("artifact schema validation failed: %w", err)
	}
	return nil
}
