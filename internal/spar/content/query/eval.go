package query

import (
	"cmp"
	"fmt"
	"slices"

	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Resolver returns a value for a field name.
type Resolver func(name string) (any, bool)

// Evaluate evaluates a parsed filter expression against a resolver.
func Evaluate(e *expr.Expr, resolve Resolver) (bool, error) {
	if e == nil {
		return true, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return evalCall(kind.CallExpr, resolve)
	default:
		return false, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func evalCall(call *expr.Expr_Call, resolve Resolver) (bool, error) {
	switch call.Function {
	case "AND":
		return evalAnd(call.Args, resolve)
	case "OR":
		return evalOr(call.Args, resolve)
	case "NOT", "-":
		return evalNot(call.Args, resolve)
	case ":":
		return evalHas(call.Args, resolve)
	case "=", "!=", "<", "<=", ">", ">=":
		return evalCompare(call.Args, resolve, call.Function)
	default:
		return false, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func evalAnd(args []*expr.Expr, resolve Resolver) (bool, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("AND requires 2 arguments")
	}
	left, err := Evaluate(args[0], resolve)
	if err != nil || !left {
		return left, err
	}
	return Evaluate(args[1], resolve)
}

func evalOr(args []*expr.Expr, resolve Resolver) (bool, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("OR requires 2 arguments")
	}
	left, err := Evaluate(args[0], resolve)
	if err != nil {
		return false, err
	}
	if left {
		return true, nil
	}
	return Evaluate(args[1], resolve)
}

func evalNot(args []*expr.Expr, resolve Resolver) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("NOT requires 1 argument")
	}
	inner, err := Evaluate(args[0], resolve)
	if err != nil {
		return false, err
	}
	return !inner, nil
}

func evalHas(args []*expr.Expr, resolve Resolver) (bool, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("has requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return false, err
	}
	value, ok := resolve(field)
	if !ok {
		return false, fmt.Errorf("unknown field: %s", field)
	}
	right, err := extractValue(args[1])
	if err != nil {
		return false, err
	}
	needle, ok := right.(string)
	if !ok {
		return false, fmt.Errorf("has expects a string, got %T", right)
	}

	switch v := value.(type) {
	case []string:
		return needle == "*" && len(v) > 0 || slices.Contains(v, needle), nil
	case string:
		return v == needle, nil
	default:
		return false, fmt.Errorf("has unsupported on %T", value)
	}
}

func evalCompare(args []*expr.Expr, resolve Resolver, op string) (bool, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return false, err
	}

	left, ok := resolve(field)
	if !ok {
		return false, fmt.Errorf("unknown field: %s", field)
	}

	right, err := extractValue(args[1])
	if err != nil {
		return false, err
	}

	c, err := compareValues(left, right)
	if err != nil {
		return false, err
	}

	switch op {
	case "=":
		return c == 0, nil
	case "!=":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", op)
	}
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	ident, ok := e.ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return "", fmt.Errorf("expected identifier, got %T", e.ExprKind)
	}
	return ident.IdentExpr.Name, nil
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	c, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant, got %T", e.ExprKind)
	}

	switch kind := c.ConstExpr.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func compareValues(left any, right any) (int, error) {
	if l, ok := left.(string); ok {
		r, ok := right.(string)
		if !ok {
			return 0, fmt.Errorf("type mismatch: string vs %T", right)
		}
		return cmp.Compare(l, r), nil
	}
	l, ok := toFloat(left)
	if !ok {
		return 0, fmt.Errorf("unsupported value type: %T", left)
	}
	r, ok := toFloat(right)
	if !ok {
		return 0, fmt.Errorf("type mismatch: number vs %T", right)
	}
	return cmp.Compare(l, r), nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
