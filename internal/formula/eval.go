package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrNullOperand marks evaluation failures caused by a NULL column value
// feeding an operation that needs one. Callers writing calculated fields
// treat these rows as NULL rather than failing the whole run.
var ErrNullOperand = errors.New("null operand")

// Env supplies column values for one row. Values come straight from
// database/sql scanning: float64, int64, string, bool or nil.
type Env map[string]any

// Eval computes the formula for one row. The result is a float64, string
// or bool; a nil result only occurs via error.
func Eval(e Expr, env Env) (any, error) {
	switch n := e.(type) {
	case numberLit:
		return n.value, nil
	case stringLit:
		return n.value, nil
	case boolLit:
		return n.value, nil

	case columnRef:
		v, ok := env[n.name]
		if !ok {
			return nil, fmt.Errorf("unknown column [%s]", n.name)
		}
		if v == nil {
			return nil, fmt.Errorf("column [%s]: %w", n.name, ErrNullOperand)
		}
		return normalize(v), nil

	case unaryExpr:
		x, err := Eval(n.x, env)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "-":
			f, err := toNumber(x)
			if err != nil {
				return nil, err
			}
			return -f, nil
		case "NOT":
			b, err := toBool(x)
			if err != nil {
				return nil, err
			}
			return !b, nil
		}
		return nil, fmt.Errorf("unknown unary operator %q", n.op)

	case binaryExpr:
		return evalBinary(n, env)

	case callExpr:
		return evalCall(n, env)
	}
	return nil, fmt.Errorf("unknown expression node %T", e)
}

func evalBinary(n binaryExpr, env Env) (any, error) {
	// AND/OR short-circuit.
	switch n.op {
	case "AND", "OR":
		lb, err := evalBool(n.l, env)
		if err != nil {
			return nil, err
		}
		if n.op == "AND" && !lb {
			return false, nil
		}
		if n.op == "OR" && lb {
			return true, nil
		}
		return evalBool(n.r, env)
	}

	l, err := Eval(n.l, env)
	if err != nil {
		return nil, err
	}
	r, err := Eval(n.r, env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "+":
		// String concatenation when either side is a string.
		if ls, ok := l.(string); ok {
			return ls + toString(r), nil
		}
		if rs, ok := r.(string); ok {
			return toString(l) + rs, nil
		}
		return arith(n.op, l, r)
	case "-", "*", "/", "%":
		return arith(n.op, l, r)
	case "=", "!=", "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	}
	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func arith(op string, l, r any) (any, error) {
	lf, err := toNumber(l)
	if err != nil {
		return nil, err
	}
	rf, err := toNumber(r)
	if err != nil {
		return nil, err
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, errors.New("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, errors.New("modulo by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %q", op)
}

func compare(op string, l, r any) (bool, error) {
	// Strings compare lexically only when both sides are strings;
	// otherwise both sides must coerce to numbers.
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case "=":
			return ls == rs, nil
		case "!=":
			return ls != rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	lf, err := toNumber(l)
	if err != nil {
		return false, err
	}
	rf, err := toNumber(r)
	if err != nil {
		return false, err
	}
	switch op {
	case "=":
		return lf == rf, nil
	case "!=":
		return lf != rf, nil
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return false, fmt.Errorf("unknown comparison %q", op)
}

func evalCall(n callExpr, env Env) (any, error) {
	if n.fn == "IF" {
		cond, err := evalBool(n.args[0], env)
		if err != nil {
			return nil, err
		}
		if cond {
			return Eval(n.args[1], env)
		}
		return Eval(n.args[2], env)
	}

	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := Eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch n.fn {
	case "ABS":
		return numFn(args[0], math.Abs)
	case "ROUND":
		return numFn(args[0], math.Round)
	case "CEIL":
		return numFn(args[0], math.Ceil)
	case "FLOOR":
		return numFn(args[0], math.Floor)
	case "SQRT":
		return numFn(args[0], func(f float64) float64 { return math.Sqrt(f) })
	case "LOG":
		f, err := toNumber(args[0])
		if err != nil {
			return nil, err
		}
		if f <= 0 {
			return nil, fmt.Errorf("LOG of non-positive value %g", f)
		}
		return math.Log(f), nil
	case "MIN", "MAX":
		best, err := toNumber(args[0])
		if err != nil {
			return nil, err
		}
		for _, a := range args[1:] {
			f, err := toNumber(a)
			if err != nil {
				return nil, err
			}
			if (n.fn == "MIN" && f < best) || (n.fn == "MAX" && f > best) {
				best = f
			}
		}
		return best, nil
	case "LEN":
		return float64(len(toString(args[0]))), nil
	case "UPPER":
		return strings.ToUpper(toString(args[0])), nil
	case "LOWER":
		return strings.ToLower(toString(args[0])), nil
	case "STR":
		return toString(args[0]), nil
	case "TODAY":
		return time.Now().Format("2006-01-02"), nil
	case "NOW":
		return time.Now().Format(time.RFC3339), nil
	}
	return nil, fmt.Errorf("unknown function %s", n.fn)
}

func numFn(v any, f func(float64) float64) (any, error) {
	x, err := toNumber(v)
	if err != nil {
		return nil, err
	}
	out := f(x)
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return nil, fmt.Errorf("result is not a finite number")
	}
	return out, nil
}

func evalBool(e Expr, env Env) (bool, error) {
	v, err := Eval(e, env)
	if err != nil {
		return false, err
	}
	return toBool(v)
}

// normalize maps database/sql scan types onto the evaluator's three value
// kinds.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	case []byte:
		return string(x)
	case bool:
		return x
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func toNumber(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not numeric", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot use %T as a number", v)
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	}
	return false, fmt.Errorf("cannot use %T as a condition", v)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}
