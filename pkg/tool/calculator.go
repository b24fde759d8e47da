package tool

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var calcFunctions = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"log":   math.Log,
	"log10": math.Log10,
	"exp":   math.Exp,
	"abs":   math.Abs,
	"ceil":  math.Ceil,
	"floor": math.Floor,
	"round": math.Round,
}

var calcConstants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// NewCalculator returns the calculator tool definition. It evaluates
// arithmetic expressions with the usual trig/log/exp functions and optional
// caller-supplied variables, without ever shelling out or evaluating code.
func NewCalculator() Definition {
	return Definition{
		Name:        "calculator",
		Description: "Evaluates math expressions, including trig, log and exponential functions",
		Parameters: []Parameter{
			{
				Name:        "expression",
				Type:        "string",
				Description: "Math expression, e.g. '2 + 3 * 4', 'sqrt(16)', 'sin(pi/2)'",
				Required:    true,
			},
			{
				Name:        "variables",
				Type:        "object",
				Description: "Optional variable bindings, name to numeric value",
			},
		},
		Handler: calculate,
	}
}

func calculate(_ context.Context, args map[string]interface{}) (string, error) {
	expression, _ := args["expression"].(string)
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return "", fmt.Errorf("expression cannot be empty")
	}

	vars, err := calcVariables(args["variables"])
	if err != nil {
		return "", err
	}

	value, err := evalExpression(expression, vars)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s = %s", expression, formatNumber(value)), nil
}

func calcVariables(raw interface{}) (map[string]float64, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("variables must be an object of numbers")
	}
	vars := make(map[string]float64, len(m))
	for name, v := range m {
		switch n := v.(type) {
		case float64:
			vars[name] = n
		case int:
			vars[name] = float64(n)
		case int64:
			vars[name] = float64(n)
		default:
			return nil, fmt.Errorf("variable %q is not a number", name)
		}
	}
	return vars, nil
}

func formatNumber(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// exprParser is a recursive-descent evaluator over the expression grammar
//
//	expr   = term   {("+"|"-") term}
//	term   = unary  {("*"|"/"|"%") unary}
//	unary  = ["-"|"+"] power
//	power  = primary ["^" unary]
//	primary = number | name | name "(" expr {"," expr} ")" | "(" expr ")"
type exprParser struct {
	input string
	pos   int
	vars  map[string]float64
}

func evalExpression(input string, vars map[string]float64) (float64, error) {
	p := &exprParser{input: input, vars: vars}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case unicode.IsLetter(rune(c)) || c == '_':
		return p.parseName()
	case c == 0:
		return 0, fmt.Errorf("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected %q at position %d", c, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' || c == '.' {
			p.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) parseName() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			p.pos++
			continue
		}
		break
	}
	name := p.input[start:p.pos]

	if p.peek() == '(' {
		p.pos++
		args := []float64{}
		if p.peek() != ')' {
			for {
				v, err := p.parseExpr()
				if err != nil {
					return 0, err
				}
				args = append(args, v)
				if p.peek() != ',' {
					break
				}
				p.pos++
			}
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis after %s(", name)
		}
		p.pos++
		return callFunction(name, args)
	}

	if v, ok := p.vars[name]; ok {
		return v, nil
	}
	if v, ok := calcConstants[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown identifier %q", name)
}

func callFunction(name string, args []float64) (float64, error) {
	switch name {
	case "pow":
		if len(args) != 2 {
			return 0, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	case "min":
		if len(args) < 2 {
			return 0, fmt.Errorf("min expects at least 2 arguments")
		}
		v := args[0]
		for _, a := range args[1:] {
			v = math.Min(v, a)
		}
		return v, nil
	case "max":
		if len(args) < 2 {
			return 0, fmt.Errorf("max expects at least 2 arguments")
		}
		v := args[0]
		for _, a := range args[1:] {
			v = math.Max(v, a)
		}
		return v, nil
	}

	fn, ok := calcFunctions[name]
	if !ok {
		return 0, fmt.Errorf("unknown function %q", name)
	}
	if len(args) != 1 {
		return 0, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
	}
	v := fn(args[0])
	if math.IsNaN(v) {
		return 0, fmt.Errorf("%s: result is not a number", name)
	}
	return v, nil
}
