package flows

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compiledSchema(t *testing.T, fields ...Field) Schema {
	t.Helper()
	s := NewSchema(fields...)
	require.NoError(t, s.compile("test"))
	return s
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestSchemaValidate(t *testing.T) {
	schema := compiledSchema(t,
		Field{Name: "prompt", Kind: FieldNonBlankText, Required: true},
		Field{Name: "width", Kind: FieldPositiveInt, Required: true},
		Field{Name: "sourceImages", Kind: FieldImageList},
		Field{Name: "selectionMask", Kind: FieldRegion},
		Field{Name: "history", Kind: FieldHistory},
		Field{Name: "note", Kind: FieldText},
	)

	tests := []struct {
		name      string
		input     string
		wantPaths []string
	}{
		{
			name:  "valid minimal",
			input: `{"prompt": "a beach", "width": 512}`,
		},
		{
			name: "valid full",
			input: `{
				"prompt": "a beach",
				"width": 512,
				"sourceImages": ["` + pngURI + `", "` + jpegURI + `"],
				"selectionMask": {"x": 0, "y": 10, "width": 20, "height": 30},
				"history": [{"role": "user", "text": "hi"}, {"role": "assistant", "text": "hello"}],
				"note": ""
			}`,
		},
		{
			name:      "missing required",
			input:     `{}`,
			wantPaths: []string{"prompt", "width"},
		},
		{
			name:      "blank prompt",
			input:     `{"prompt": "   ", "width": 512}`,
			wantPaths: []string{"prompt"},
		},
		{
			name:      "prompt wrong type",
			input:     `{"prompt": 7, "width": 512}`,
			wantPaths: []string{"prompt"},
		},
		{
			name:      "zero width",
			input:     `{"prompt": "x", "width": 0}`,
			wantPaths: []string{"width"},
		},
		{
			name:      "fractional width",
			input:     `{"prompt": "x", "width": 1.5}`,
			wantPaths: []string{"width"},
		},
		{
			name:      "bad image in list",
			input:     `{"prompt": "x", "width": 1, "sourceImages": ["` + pngURI + `", "https://example.com/a.png"]}`,
			wantPaths: []string{"sourceImages[1]"},
		},
		{
			name:      "empty image list",
			input:     `{"prompt": "x", "width": 1, "sourceImages": []}`,
			wantPaths: []string{"sourceImages"},
		},
		{
			name:      "bad region",
			input:     `{"prompt": "x", "width": 1, "selectionMask": {"x": -1, "y": 0, "width": 0, "height": 5}}`,
			wantPaths: []string{"selectionMask.x", "selectionMask.width"},
		},
		{
			name:      "bad history role",
			input:     `{"prompt": "x", "width": 1, "history": [{"role": "system", "text": "x"}]}`,
			wantPaths: []string{"history[0].role"},
		},
		{
			name:      "unknown property",
			input:     `{"prompt": "x", "width": 1, "extra": true}`,
			wantPaths: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(decode(t, tt.input))
			if len(tt.wantPaths) == 0 {
				assert.NoError(t, err)
				return
			}

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			for _, path := range tt.wantPaths {
				assert.True(t, ve.Has(path), "expected failure at %q, got %v", path, ve.Fields)
			}
		})
	}
}

func TestSchemaValidateImage(t *testing.T) {
	schema := compiledSchema(t, Field{Name: "image", Kind: FieldImage, Required: true})

	for _, uri := range []string{
		"",
		"AAAA",
		"data:image/png,AAAA",
		"data:;base64,AAAA",
		"data:image/png;base64,",
		"data:image/png;base64,!!!",
	} {
		t.Run(uri, func(t *testing.T) {
			err := schema.Validate(map[string]any{"image": uri})
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.True(t, ve.Has("image"))
		})
	}

	assert.NoError(t, schema.Validate(map[string]any{"image": pngURI}))
}

func TestSchemaValidateIsDeterministic(t *testing.T) {
	schema := compiledSchema(t,
		Field{Name: "prompt", Kind: FieldNonBlankText, Required: true},
		Field{Name: "sourceImage", Kind: FieldImage, Required: true},
	)

	for _, input := range []string{
		`{"prompt": "x", "sourceImage": "` + pngURI + `"}`,
		`{"prompt": "", "sourceImage": "nope"}`,
	} {
		first := schema.Validate(decode(t, input))
		second := schema.Validate(decode(t, input))
		assert.Equal(t, first, second)
	}
}

func TestSchemaJSONSchema(t *testing.T) {
	schema := NewSchema(
		Field{Name: "prompt", Kind: FieldNonBlankText, Required: true, Description: "What to draw"},
		Field{Name: "history", Kind: FieldHistory},
	)

	data, err := schema.JSONSchema("chat input")
	require.NoError(t, err)

	doc := decode(t, string(data))
	assert.Equal(t, "chat input", doc["title"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, []any{"prompt"}, doc["required"])

	props := doc["properties"].(map[string]any)
	assert.Equal(t, "What to draw", props["prompt"].(map[string]any)["description"])
	assert.Equal(t, "array", props["history"].(map[string]any)["type"])
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Path: "prompt", Reason: "must not be empty"},
		{Reason: "does not match schema"},
	}}
	assert.Equal(t, "validation failed: prompt: must not be empty; does not match schema", err.Error())
}
