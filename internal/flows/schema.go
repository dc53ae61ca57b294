package flows

import (
	"encoding/json"

	"github.com/kaptinlin/jsonschema"
)

// FieldKind is the constraint family a field is checked against.
type FieldKind string

const (
	FieldText         FieldKind = "text"
	FieldNonBlankText FieldKind = "non-blank-text"
	FieldPositiveInt  FieldKind = "positive-int"
	FieldImage        FieldKind = "image"
	FieldImageList    FieldKind = "image-list"
	FieldRegion       FieldKind = "region"
	FieldHistory      FieldKind = "history"
)

// Field declares one property of a flow input or output.
type Field struct {
	Name        string
	Kind        FieldKind
	Required    bool
	Description string
}

// Schema is the declared shape of a flow input or output. Fields are
// checked in declaration order.
type Schema struct {
	Fields []Field

	compiled *jsonschema.Schema
}

// NewSchema creates a schema from its fields.
func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// Field looks up a declared field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Compiled reports whether the JSON Schema form has been compiled.
func (s Schema) Compiled() bool {
	return s.compiled != nil
}

// JSONSchema renders the schema as a JSON Schema document.
func (s Schema) JSONSchema(title string) ([]byte, error) {
	return json.MarshalIndent(s.document(title), "", "  ")
}

const dataURIPattern = `^data:[^;,/\s]+/[^;,\s]+;base64,.+$`

func (s Schema) document(title string) map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := []string{}
	for _, f := range s.Fields {
		p := fieldDocument(f.Kind)
		if f.Description != "" {
			p["description"] = f.Description
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}

	doc := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
	if title != "" {
		doc["title"] = title
	}
	return doc
}

func fieldDocument(kind FieldKind) map[string]any {
	switch kind {
	case FieldText, FieldNonBlankText:
		return map[string]any{"type": "string"}
	case FieldPositiveInt:
		return map[string]any{"type": "integer", "exclusiveMinimum": 0}
	case FieldImage:
		return imageDocument()
	case FieldImageList:
		return map[string]any{
			"type":     "array",
			"items":    imageDocument(),
			"minItems": 1,
		}
	case FieldRegion:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"x":      map[string]any{"type": "integer", "minimum": 0},
				"y":      map[string]any{"type": "integer", "minimum": 0},
				"width":  map[string]any{"type": "integer", "exclusiveMinimum": 0},
				"height": map[string]any{"type": "integer", "exclusiveMinimum": 0},
			},
			"required":             []string{"x", "y", "width", "height"},
			"additionalProperties": false,
		}
	case FieldHistory:
		return map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"role": map[string]any{"enum": []string{"user", "assistant"}},
					"text": map[string]any{"type": "string"},
				},
				"required":             []string{"role", "text"},
				"additionalProperties": false,
			},
		}
	default:
		return map[string]any{}
	}
}

func imageDocument() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": dataURIPattern,
	}
}

// compile builds the JSON Schema validator for s.
func (s *Schema) compile(title string) error {
	data, err := s.JSONSchema(title)
	if err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(data)
	if err != nil {
		return err
	}

	s.compiled = schema
	return nil
}
