package schema

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Validator checks a payload body. A nil return means the body is
// valid; otherwise the returned map explains each failing field.
type Validator func(body map[string]any) map[string]any

// Registry maps payload names (command names, event types) to their
// validators. Registries are populated at startup and read
// concurrently afterwards.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// Register associates a validator with a payload name, replacing any
// previous registration.
func (r *Registry) Register(name string, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = v
}

// Lookup returns the validator for a payload name, or nil if none is
// registered. Unregistered names are treated as schemaless.
func (r *Registry) Lookup(name string) Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validators[name]
}

// Validate runs the validator registered under name against body.
// A nil return means valid (including when no schema is registered).
func (r *Registry) Validate(name string, body map[string]any) map[string]any {
	v := r.Lookup(name)
	if v == nil {
		return nil
	}
	return v(body)
}

// Kind identifies the expected shape of a field value.
type Kind string

const (
	String Kind = "string"
	Number Kind = "number"
	Bool   Kind = "bool"
	UUID   Kind = "uuid"
	Map    Kind = "map"
	Slice  Kind = "slice"
	Any    Kind = "any"
)

// Field declares one field of a payload.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Fields is a declarative payload spec. Unknown fields are allowed;
// the spec only constrains the fields it names.
type Fields []Field

// Validator compiles the spec into a Validator.
func (fs Fields) Validator() Validator {
	return func(body map[string]any) map[string]any {
		var explain map[string]any
		fail := func(name, problem string) {
			if explain == nil {
				explain = make(map[string]any)
			}
			explain[name] = problem
		}
		for _, f := range fs {
			val, ok := body[f.Name]
			if !ok || val == nil {
				if f.Required {
					fail(f.Name, "missing required field")
				}
				continue
			}
			if problem := checkKind(f.Kind, val); problem != "" {
				fail(f.Name, problem)
			}
		}
		return explain
	}
}

func checkKind(kind Kind, val any) string {
	switch kind {
	case String:
		if _, ok := val.(string); !ok {
			return fmt.Sprintf("expected string, got %T", val)
		}
	case Number:
		switch val.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Sprintf("expected number, got %T", val)
		}
	case Bool:
		if _, ok := val.(bool); !ok {
			return fmt.Sprintf("expected bool, got %T", val)
		}
	case UUID:
		// JSON decoding yields strings; in-process callers may pass
		// uuid.UUID values directly.
		switch v := val.(type) {
		case uuid.UUID:
		case string:
			if _, err := uuid.Parse(v); err != nil {
				return "expected uuid"
			}
		default:
			return fmt.Sprintf("expected uuid, got %T", val)
		}
	case Map:
		if _, ok := val.(map[string]any); !ok {
			return fmt.Sprintf("expected map, got %T", val)
		}
	case Slice:
		if _, ok := val.([]any); !ok {
			return fmt.Sprintf("expected slice, got %T", val)
		}
	case Any:
	}
	return ""
}
