package tool

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoDefinition() Definition {
	return Definition{
		Name:        "echo",
		Description: "Echoes its input",
		Parameters: []Parameter{
			{Name: "text", Type: "string", Description: "Text to echo", Required: true},
			{Name: "prefix", Type: "string", Description: "Optional prefix", Default: "> "},
		},
		Handler: func(_ context.Context, args map[string]interface{}) (string, error) {
			prefix, _ := args["prefix"].(string)
			text, _ := args["text"].(string)
			return prefix + text, nil
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDefinition()))

	def, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", def.Name)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"echo"}, r.Names())
}

func TestRegisterRejectsInvalidDefinitions(t *testing.T) {
	handler := func(_ context.Context, _ map[string]interface{}) (string, error) { return "", nil }

	tests := []struct {
		name string
		def  Definition
	}{
		{"empty name", Definition{Description: "d", Handler: handler}},
		{"empty description", Definition{Name: "t", Handler: handler}},
		{"nil handler", Definition{Name: "t", Description: "d"}},
		{"bad parameter type", Definition{
			Name: "t", Description: "d", Handler: handler,
			Parameters: []Parameter{{Name: "p", Type: "decimal", Description: "x"}},
		}},
		{"parameter without description", Definition{
			Name: "t", Description: "d", Handler: handler,
			Parameters: []Parameter{{Name: "p", Type: "string"}},
		}},
	}

	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.Register(tt.def))
		})
	}
}

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDefinition()))

	res := r.Execute(context.Background(), "echo", map[string]interface{}{"text": "hi"})
	assert.True(t, res.Success)
	assert.Equal(t, "> hi", res.Output, "default prefix applies")
	assert.Equal(t, "> hi", res.Content())
}

func TestExecuteNotFound(t *testing.T) {
	r := NewRegistry()

	res := r.Execute(context.Background(), "missing", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "tool not found")
	assert.Contains(t, res.Content(), "Error:")
}

func TestExecuteValidationFailure(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDefinition()))

	// Missing required argument.
	res := r.Execute(context.Background(), "echo", map[string]interface{}{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "argument validation failed")

	// Unknown argument rejected by additionalProperties.
	res = r.Execute(context.Background(), "echo", map[string]interface{}{
		"text":  "hi",
		"bogus": 1,
	})
	assert.False(t, res.Success)

	// Wrong type.
	res = r.Execute(context.Background(), "echo", map[string]interface{}{"text": 42})
	assert.False(t, res.Success)
}

func TestExecuteHandlerError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Name:        "flaky",
		Description: "Always fails",
		Handler: func(_ context.Context, _ map[string]interface{}) (string, error) {
			return "", fmt.Errorf("backend unavailable")
		},
	}))

	res := r.Execute(context.Background(), "flaky", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "backend unavailable", res.Error)
}

func TestExecuteRecoversPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Name:        "panicky",
		Description: "Panics",
		Handler: func(_ context.Context, _ map[string]interface{}) (string, error) {
			panic("boom")
		},
	}))

	res := r.Execute(context.Background(), "panicky", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "tool panicked")
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDefinition()))
	r.Unregister("echo")

	_, ok := r.Get("echo")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestSchemasShape(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDefinition()))
	require.NoError(t, r.Register(NewClock()))

	schemas := r.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "clock", schemas[0].Name, "sorted by name")
	assert.Equal(t, "echo", schemas[1].Name)

	input := schemas[1].InputSchema
	assert.Equal(t, "object", input["type"])
	assert.Equal(t, false, input["additionalProperties"])
	assert.Equal(t, []string{"text"}, input["required"])
}
