package tools

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	"evidentia/internal/lineage"
	"evidentia/internal/toolenvelope"
)

// CalcSpec builds the arithmetic-evaluation tool used throughout the
// turn-engine tests and as a safe, dependency-free sanity tool the
// model can reach for before ever touching an upstream source. The
// evaluator accepts a restricted subset of Go's own expression grammar,
// parsed via go/parser and walked with go/ast: only literals and
// +-*/() are permitted, so no identifier, call, or assignment ever
// reaches evaluation.
func CalcSpec() Spec {
	return Spec{
		Name: "calc",
		Description: DescriptionPolicy{
			Purpose:      "Evaluate a basic arithmetic expression.",
			When:         []string{"the user or the evidence pipeline needs a numeric result from +,-,*,/ and parentheses"},
			Avoid:        []string{"evaluating anything with variables, function calls, or non-numeric tokens"},
			CriticalArgs: []string{"expression (string, required)"},
			Returns:      "An aggregate envelope with data.value set to the computed number.",
			FailsIf:      []string{"expression is empty", "expression contains anything beyond numbers, + - * / ( )"},
		}.Render(),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{"type": "string", "description": "arithmetic expression, e.g. (2+3)*4"},
			},
			"required": []string{"expression"},
		},
		Handler: calcHandler,
	}
}

func calcHandler(ctx context.Context, tc lineage.Context, args map[string]any) (any, error) {
	expr, _ := args["expression"].(string)
	if expr == "" {
		return nil, NewExecutionError(ErrValidation, "expression is required", false, nil)
	}
	value, err := evalArithmetic(expr)
	if err != nil {
		return nil, NewExecutionError(ErrValidation, err.Error(), false, map[string]any{"expression": expr})
	}
	return toolenvelope.Make("calc", fmt.Sprintf("%s = %g", expr, value), toolenvelope.Options{
		ResultKind:     toolenvelope.ResultKindAggregate,
		Data:           map[string]any{"value": value, "expression": expr},
		AuthConfigured: true,
	}, tc.Lineage()), nil
}

// evalArithmetic parses expr as a Go expression and rejects it unless
// every node is a literal, unary +/-, paren, or binary +-*/ node -
// no identifiers, no calls, no selectors can survive the walk.
func evalArithmetic(expr string) (float64, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("not a valid arithmetic expression: %v", err)
	}
	if err := rejectUnsafeNodes(node); err != nil {
		return 0, err
	}
	return evalNode(node)
}

func rejectUnsafeNodes(n ast.Node) error {
	var walkErr error
	ast.Inspect(n, func(node ast.Node) bool {
		if walkErr != nil {
			return false
		}
		switch v := node.(type) {
		case *ast.BinaryExpr:
			switch v.Op {
			case token.ADD, token.SUB, token.MUL, token.QUO:
			default:
				walkErr = fmt.Errorf("unsupported operator %q", v.Op)
			}
		case *ast.UnaryExpr:
			switch v.Op {
			case token.ADD, token.SUB:
			default:
				walkErr = fmt.Errorf("unsupported unary operator %q", v.Op)
			}
		case *ast.BasicLit:
			if v.Kind != token.INT && v.Kind != token.FLOAT {
				walkErr = fmt.Errorf("unsupported literal kind")
			}
		case *ast.Ident, *ast.CallExpr, *ast.SelectorExpr, *ast.IndexExpr, *ast.StarExpr:
			walkErr = fmt.Errorf("identifiers and calls are not allowed in arithmetic expressions")
		}
		return true
	})
	return walkErr
}

func evalNode(n ast.Expr) (float64, error) {
	switch v := n.(type) {
	case *ast.BasicLit:
		var f float64
		if _, err := fmt.Sscanf(v.Value, "%g", &f); err != nil {
			return 0, fmt.Errorf("invalid numeric literal %q", v.Value)
		}
		return f, nil
	case *ast.ParenExpr:
		return evalNode(v.X)
	case *ast.UnaryExpr:
		x, err := evalNode(v.X)
		if err != nil {
			return 0, err
		}
		if v.Op == token.SUB {
			return -x, nil
		}
		return x, nil
	case *ast.BinaryExpr:
		left, err := evalNode(v.X)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(v.Y)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case token.ADD:
			return left + right, nil
		case token.SUB:
			return left - right, nil
		case token.MUL:
			return left * right, nil
		case token.QUO:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return left / right, nil
		}
	}
	return 0, fmt.Errorf("unsupported expression node")
}
