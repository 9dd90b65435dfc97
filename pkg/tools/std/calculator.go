package std

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"regexp"
	"strconv"

	"github.com/ilkoid/pi-llama/pkg/tools"
)

// nonMath — всё, кроме цифр, операторов, скобок, точки и пробелов.
var nonMath = regexp.MustCompile(`[^0-9+\-*/().%\s]`)

// invalidExpression — текст ошибки, который видит модель.
const invalidExpression = "Invalid expression"

var errInvalidExpression = errors.New("invalid expression")

// CalculatorTool — арифметика над числами: + - * / %, скобки, унарный минус.
type CalculatorTool struct{}

// NewCalculatorTool создаёт инструмент calculator.
func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

// Definition возвращает определение инструмента для function calling.
func (t *CalculatorTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "calculator",
		Description: "Perform mathematical calculations",
		Parameters: tools.ObjectSchema(map[string]tools.Property{
			"expression": {Type: "string", Description: "Math expression to evaluate, e.g. '15 * 23'"},
		}, "expression"),
	}
}

type calculatorResult struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// Execute вычисляет выражение. Ошибка разбора или вычисления даёт
// {"error":"Invalid expression"}, а не ошибку инструмента.
func (t *CalculatorTool) Execute(_ context.Context, argsJSON string) (string, error) {
	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return tools.ErrorResult(invalidExpression), nil
	}

	result, err := Evaluate(args.Expression)
	if err != nil {
		return tools.ErrorResult(invalidExpression), nil
	}
	return tools.MarshalResult(calculatorResult{Expression: args.Expression, Result: result})
}

// Evaluate вычисляет арифметическое выражение после удаления
// посторонних символов.
func Evaluate(expression string) (float64, error) {
	sanitized := nonMath.ReplaceAllString(expression, "")

	expr, err := parser.ParseExpr(sanitized)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errInvalidExpression, err)
	}

	v, err := eval(expr)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: result is not finite", errInvalidExpression)
	}
	return v, nil
}

func eval(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, errInvalidExpression
		}
		// Ведущие нули — десятичное число, не восьмеричное.
		return strconv.ParseFloat(n.Value, 64)

	case *ast.ParenExpr:
		return eval(n.X)

	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.SUB:
			return -x, nil
		case token.ADD:
			return x, nil
		}

	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			return x / y, nil
		case token.REM:
			return math.Mod(x, y), nil
		}
	}
	return 0, errInvalidExpression
}
