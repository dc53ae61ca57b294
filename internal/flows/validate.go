package flows

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alexcabrera/easel/internal/datauri"
)

// FieldError is one field-level validation failure.
type FieldError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (f FieldError) String() string {
	if f.Path == "" {
		return f.Reason
	}
	return f.Path + ": " + f.Reason
}

// ValidationError collects every field that failed a schema.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether path failed.
func (e *ValidationError) Has(path string) bool {
	for _, f := range e.Fields {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Validate checks candidate against the schema. Field rules run first and
// report precise paths; the compiled JSON Schema then rejects anything the
// rules do not cover, such as unknown properties. The result depends only
// on candidate.
func (s Schema) Validate(candidate map[string]any) error {
	var errs fieldErrors

	for _, f := range s.Fields {
		v, ok := candidate[f.Name]
		if !ok || v == nil {
			if f.Required {
				errs.add(f.Name, "is required")
			}
			continue
		}
		checkField(&errs, f.Name, f.Kind, v)
	}

	if len(errs) == 0 && s.compiled != nil {
		result := s.compiled.Validate(candidate)
		if !result.IsValid() {
			var msgs []string
			for _, detail := range result.Errors {
				msgs = append(msgs, detail.Message)
			}
			sort.Strings(msgs)
			for _, msg := range msgs {
				errs.add("", msg)
			}
			if len(errs) == 0 {
				errs.add("", "does not match schema")
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

type fieldErrors []FieldError

func (e *fieldErrors) add(path, reason string) {
	*e = append(*e, FieldError{Path: path, Reason: reason})
}

func checkField(errs *fieldErrors, path string, kind FieldKind, v any) {
	switch kind {
	case FieldText:
		if _, ok := v.(string); !ok {
			errs.add(path, "must be a string")
		}

	case FieldNonBlankText:
		s, ok := v.(string)
		if !ok {
			errs.add(path, "must be a string")
			return
		}
		if strings.TrimSpace(s) == "" {
			errs.add(path, "must not be empty")
		}

	case FieldPositiveInt:
		if n, ok := integer(v); !ok || n <= 0 {
			errs.add(path, "must be a positive integer")
		}

	case FieldImage:
		checkImage(errs, path, v)

	case FieldImageList:
		items, ok := v.([]any)
		if !ok {
			errs.add(path, "must be a list of images")
			return
		}
		if len(items) == 0 {
			errs.add(path, "must contain at least one image")
			return
		}
		for i, item := range items {
			checkImage(errs, fmt.Sprintf("%s[%d]", path, i), item)
		}

	case FieldRegion:
		m, ok := v.(map[string]any)
		if !ok {
			errs.add(path, "must be a region object")
			return
		}
		for _, name := range []string{"x", "y"} {
			if n, ok := integer(m[name]); !ok || n < 0 {
				errs.add(path+"."+name, "must be a non-negative integer")
			}
		}
		for _, name := range []string{"width", "height"} {
			if n, ok := integer(m[name]); !ok || n <= 0 {
				errs.add(path+"."+name, "must be a positive integer")
			}
		}

	case FieldHistory:
		items, ok := v.([]any)
		if !ok {
			errs.add(path, "must be a list of messages")
			return
		}
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			m, ok := item.(map[string]any)
			if !ok {
				errs.add(itemPath, "must be a message object")
				continue
			}
			switch m["role"] {
			case "user", "assistant":
			default:
				errs.add(itemPath+".role", `must be "user" or "assistant"`)
			}
			if _, ok := m["text"].(string); !ok {
				errs.add(itemPath+".text", "must be a string")
			}
		}

	default:
		errs.add(path, fmt.Sprintf("unsupported field kind %q", kind))
	}
}

func checkImage(errs *fieldErrors, path string, v any) {
	s, ok := v.(string)
	if !ok {
		errs.add(path, "must be a data URI string")
		return
	}
	if _, err := datauri.Parse(s); err != nil {
		errs.add(path, "must be a data URI (data:<mime>;base64,<payload>): "+err.Error())
	}
}

// integer accepts JSON numbers with no fractional part.
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > 1<<53 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
