package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalCalc(t *testing.T, expression string, variables map[string]interface{}) Result {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(NewCalculator()))

	args := map[string]interface{}{"expression": expression}
	if variables != nil {
		args["variables"] = variables
	}
	return r.Execute(context.Background(), "calculator", args)
}

func TestCalculatorExpressions(t *testing.T) {
	tests := []struct {
		expression string
		want       string
	}{
		{"2 + 3 * 4", "2 + 3 * 4 = 14"},
		{"(2 + 3) * 4", "(2 + 3) * 4 = 20"},
		{"10 / 4", "10 / 4 = 2.5"},
		{"10 % 3", "10 % 3 = 1"},
		{"2^10", "2^10 = 1024"},
		{"-5 + 3", "-5 + 3 = -2"},
		{"sqrt(16)", "sqrt(16) = 4"},
		{"abs(-7)", "abs(-7) = 7"},
		{"floor(2.9)", "floor(2.9) = 2"},
		{"ceil(2.1)", "ceil(2.1) = 3"},
		{"round(2.5)", "round(2.5) = 3"},
		{"pow(2, 8)", "pow(2, 8) = 256"},
		{"min(3, 1, 2)", "min(3, 1, 2) = 1"},
		{"max(3, 1, 2)", "max(3, 1, 2) = 3"},
		{"exp(0)", "exp(0) = 1"},
		{"log(1)", "log(1) = 0"},
		{"log10(1)", "log10(1) = 0"},
		{"sin(pi/2)", "sin(pi/2) = 1"},
		{"cos(0)", "cos(0) = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			res := evalCalc(t, tt.expression, nil)
			require.True(t, res.Success, "error: %s", res.Error)
			assert.Equal(t, tt.want, res.Output)
		})
	}
}

func TestCalculatorVariables(t *testing.T) {
	res := evalCalc(t, "x * y + 1", map[string]interface{}{
		"x": 3.0,
		"y": 4,
	})
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "x * y + 1 = 13", res.Output)
}

func TestCalculatorErrors(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		contains   string
	}{
		{"division by zero", "1 / 0", "division by zero"},
		{"modulo by zero", "1 % 0", "division by zero"},
		{"unknown identifier", "2 + nope", "unknown identifier"},
		{"unknown function", "frob(1)", "unknown function"},
		{"unbalanced parens", "(1 + 2", "closing parenthesis"},
		{"trailing garbage", "1 + 2 )", "unexpected"},
		{"empty expression", "   ", "cannot be empty"},
		{"sqrt of negative", "sqrt(-1)", "not a number"},
		{"wrong arity", "pow(2)", "expects 2 arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evalCalc(t, tt.expression, nil)
			require.False(t, res.Success)
			assert.Contains(t, res.Error, tt.contains)
		})
	}
}

func TestCalculatorRejectsNonNumericVariable(t *testing.T) {
	res := evalCalc(t, "x + 1", map[string]interface{}{"x": "nan"})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "not a number")
}

func TestClock(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewClock()))

	res := r.Execute(context.Background(), "clock", map[string]interface{}{})
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Contains(t, res.Output, "UTC")

	res = r.Execute(context.Background(), "clock", map[string]interface{}{"timezone": "Not/AZone"})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown timezone")
}
