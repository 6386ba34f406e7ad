package schema

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFieldsValidator(t *testing.T) {
	v := Fields{
		{Name: "name", Kind: String, Required: true},
		{Name: "count", Kind: Number},
		{Name: "id", Kind: UUID},
	}.Validator()

	// Valid payload
	assert.Nil(t, v(map[string]any{
		"name":  "visits",
		"count": float64(3),
		"id":    uuid.New().String(),
	}))

	// Optional fields may be absent
	assert.Nil(t, v(map[string]any{"name": "visits"}))

	// Unknown fields are allowed
	assert.Nil(t, v(map[string]any{"name": "visits", "extra": true}))
}

func TestFieldsValidatorFailures(t *testing.T) {
	v := Fields{
		{Name: "name", Kind: String, Required: true},
		{Name: "id", Kind: UUID},
	}.Validator()

	explain := v(map[string]any{})
	assert.Equal(t, "missing required field", explain["name"])

	explain = v(map[string]any{"name": 42})
	assert.Contains(t, explain["name"], "expected string")

	explain = v(map[string]any{"name": "x", "id": "not-a-uuid"})
	assert.Equal(t, "expected uuid", explain["id"])
}

func TestUUIDKindAcceptsNativeValues(t *testing.T) {
	v := Fields{{Name: "id", Kind: UUID, Required: true}}.Validator()
	assert.Nil(t, v(map[string]any{"id": uuid.New()}))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("example/create-counter", Fields{
		{Name: "name", Kind: String, Required: true},
	}.Validator())

	// Registered name validates
	assert.Nil(t, r.Validate("example/create-counter", map[string]any{"name": "n"}))
	assert.NotNil(t, r.Validate("example/create-counter", map[string]any{}))

	// Unregistered names are schemaless
	assert.Nil(t, r.Validate("unknown/event", map[string]any{"anything": 1}))
	assert.Nil(t, r.Lookup("unknown/event"))
}
