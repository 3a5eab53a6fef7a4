package execution

import (
	"errors"
	"fmt"

	"tinydb/pkg/parser"
	"tinydb/pkg/tuple"
	"tinydb/pkg/types"
)

var (
	// ErrDivisionByZero is returned for INTEGER division by zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrUnknownColumn is returned when an identifier names no column of
	// the table in scope.
	ErrUnknownColumn = errors.New("unknown column")
)

// evaluate resolves an expression to a value against one row. row may be
// nil when no row is in scope (INSERT values); identifiers then fail.
//
// Booleans are represented as INTEGER 0/1; NULL or cross-type comparisons
// collapse to false per the engine's WHERE semantics.
func evaluate(expr parser.Expression, schema *tuple.Schema, row []types.Value) (types.Value, error) {
	switch e := expr.(type) {
	case *parser.LiteralExpression:
		return evaluateLiteral(e)
	case *parser.IdentifierExpression:
		return evaluateIdentifier(e, schema, row)
	case *parser.BinaryOpExpression:
		return evaluateBinaryOp(e, schema, row)
	case *parser.UnaryOpExpression:
		return evaluateUnaryOp(e, schema, row)
	default:
		return types.NewNullValue(), fmt.Errorf("unsupported expression type %T", expr)
	}
}

func evaluateLiteral(e *parser.LiteralExpression) (types.Value, error) {
	switch e.Kind {
	case parser.NumberLiteral:
		return types.ConvertLiteral(e.Text, types.IntegerType)
	case parser.StringLiteral:
		return types.NewVarcharValue(e.Text), nil
	case parser.BooleanLiteral:
		if e.Text == "true" {
			return types.NewIntegerValue(1), nil
		}
		return types.NewIntegerValue(0), nil
	case parser.NullLiteral:
		return types.NewNullValue(), nil
	default:
		return types.NewNullValue(), fmt.Errorf("unknown literal kind %d", e.Kind)
	}
}

func evaluateIdentifier(e *parser.IdentifierExpression, schema *tuple.Schema, row []types.Value) (types.Value, error) {
	if row == nil {
		return types.NewNullValue(), fmt.Errorf("column reference %q not allowed here", e.Name)
	}
	idx, ok := schema.ColumnIndex(e.Name)
	if !ok {
		return types.NewNullValue(), fmt.Errorf("%w: %s", ErrUnknownColumn, e.Name)
	}
	return row[idx], nil
}

func evaluateBinaryOp(e *parser.BinaryOpExpression, schema *tuple.Schema, row []types.Value) (types.Value, error) {
	left, err := evaluate(e.Left, schema, row)
	if err != nil {
		return types.NewNullValue(), err
	}
	right, err := evaluate(e.Right, schema, row)
	if err != nil {
		return types.NewNullValue(), err
	}

	switch e.Op {
	case parser.OpAnd:
		return boolValue(isTruthy(left) && isTruthy(right)), nil
	case parser.OpOr:
		return boolValue(isTruthy(left) || isTruthy(right)), nil
	case parser.OpEqual:
		return boolValue(left.Compare(types.Equals, right)), nil
	case parser.OpNotEqual:
		return boolValue(left.Compare(types.NotEqual, right)), nil
	case parser.OpLessThan:
		return boolValue(left.Compare(types.LessThan, right)), nil
	case parser.OpLessEqual:
		return boolValue(left.Compare(types.LessThanOrEqual, right)), nil
	case parser.OpGreaterThan:
		return boolValue(left.Compare(types.GreaterThan, right)), nil
	case parser.OpGreaterEqual:
		return boolValue(left.Compare(types.GreaterThanOrEqual, right)), nil
	case parser.OpPlus, parser.OpMinus, parser.OpMultiply, parser.OpDivide:
		return evaluateArithmetic(e.Op, left, right)
	default:
		return types.NewNullValue(), fmt.Errorf("unknown binary operator %d", e.Op)
	}
}

// evaluateArithmetic applies an INTEGER arithmetic operator with
// two's-complement wrap-around. A NULL operand yields NULL.
func evaluateArithmetic(op parser.BinaryOperator, left, right types.Value) (types.Value, error) {
	if left.IsNull() || right.IsNull() {
		return types.NewNullValue(), nil
	}

	a, err := left.AsInt()
	if err != nil {
		return types.NewNullValue(), fmt.Errorf("arithmetic requires INTEGER operands: %w", err)
	}
	b, err := right.AsInt()
	if err != nil {
		return types.NewNullValue(), fmt.Errorf("arithmetic requires INTEGER operands: %w", err)
	}

	switch op {
	case parser.OpPlus:
		return types.NewIntegerValue(a + b), nil
	case parser.OpMinus:
		return types.NewIntegerValue(a - b), nil
	case parser.OpMultiply:
		return types.NewIntegerValue(a * b), nil
	case parser.OpDivide:
		if b == 0 {
			return types.NewNullValue(), ErrDivisionByZero
		}
		return types.NewIntegerValue(a / b), nil
	default:
		return types.NewNullValue(), fmt.Errorf("unknown arithmetic operator %d", op)
	}
}

func evaluateUnaryOp(e *parser.UnaryOpExpression, schema *tuple.Schema, row []types.Value) (types.Value, error) {
	operand, err := evaluate(e.Operand, schema, row)
	if err != nil {
		return types.NewNullValue(), err
	}

	switch e.Op {
	case parser.OpNot:
		return boolValue(!isTruthy(operand)), nil
	case parser.OpNegate:
		if operand.IsNull() {
			return types.NewNullValue(), nil
		}
		n, err := operand.AsInt()
		if err != nil {
			return types.NewNullValue(), fmt.Errorf("unary minus requires an INTEGER operand: %w", err)
		}
		return types.NewIntegerValue(-n), nil
	default:
		return types.NewNullValue(), fmt.Errorf("unknown unary operator %d", e.Op)
	}
}

// isTruthy collapses a value to the boolean WHERE needs: a non-null,
// non-zero INTEGER. Everything else, NULL included, is false.
func isTruthy(v types.Value) bool {
	if v.Type() != types.IntegerType {
		return false
	}
	n, _ := v.AsInt()
	return n != 0
}

func boolValue(b bool) types.Value {
	if b {
		return types.NewIntegerValue(1)
	}
	return types.NewIntegerValue(0)
}
