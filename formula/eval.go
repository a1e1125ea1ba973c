package formula

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/liamcoop/formlogic/internal/logger"
)

var (
	// ErrSyntax reports a formula that does not fit the numeric grammar.
	ErrSyntax = errors.New("formula syntax error")

	// ErrDivisionByZero reports division or modulo by zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrUnknownFunction reports a name that is not one of the supported functions.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrNotNumeric reports a field value that cannot be read as a number.
	ErrNotNumeric = errors.New("value is not numeric")

	// ErrNotFinite reports an overflowing or undefined result.
	ErrNotFinite = errors.New("result is not finite")
)

// DefaultPrecision is the number of decimal digits results are rounded to.
const DefaultPrecision = 2

// DefaultFieldPrefix is tried when a placeholder name is not found verbatim.
const DefaultFieldPrefix = "field_"

var (
	placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)
	numericPattern     = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)
)

func (n *numberNode) eval(lookup) (float64, error) { return n.value, nil }

func (n *fieldNode) eval(env lookup) (float64, error) { return env(n.name) }

func (n *unaryNode) eval(env lookup) (float64, error) {
	v, err := n.operand.eval(env)
	if err != nil {
		return 0, err
	}
	if n.op == '-' {
		return -v, nil
	}
	return v, nil
}

func (n *binaryNode) eval(env lookup) (float64, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	case '%':
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return math.Mod(l, r), nil
	}
	return 0, fmt.Errorf("%w: operator %q", ErrSyntax, n.op)
}

func (n *callNode) eval(env lookup) (float64, error) {
	args := make([]float64, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(env)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	switch n.name {
	case "SUM", "AVG":
		total := 0.0
		for _, v := range args {
			total += v
		}
		if n.name == "AVG" {
			return total / float64(len(args)), nil
		}
		return total, nil
	case "MIN":
		result := args[0]
		for _, v := range args[1:] {
			result = math.Min(result, v)
		}
		return result, nil
	case "MAX":
		result := args[0]
		for _, v := range args[1:] {
			result = math.Max(result, v)
		}
		return result, nil
	case "ROUND":
		digits := 0
		if len(args) == 2 {
			digits = int(args[1])
		}
		return roundTo(args[0], digits), nil
	case "ABS":
		return math.Abs(args[0]), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownFunction, n.name)
}

// Options tune how placeholders are resolved.
type Options struct {
	// FieldPrefix is the prefixed variant tried after the literal name.
	FieldPrefix string
}

// DefaultOptions returns the options used by the package-level functions.
func DefaultOptions() Options {
	return Options{FieldPrefix: DefaultFieldPrefix}
}

// Evaluate computes a formula against submitted values and rounds the result
// to precision digits. The second result is false when the formula has no
// value: bad grammar, division by zero, a non-numeric field or a non-finite
// result.
func Evaluate(formula string, values map[string]any, precision int) (float64, bool) {
	v, err := Calculate(formula, values, precision, DefaultOptions())
	if err != nil {
		logger.FormulaFailures.Add(1)
		logger.Debug("formula produced no value", "formula", formula, "error", err)
		return 0, false
	}
	return v, true
}

// Calculate is Evaluate with the failure reason.
func Calculate(formula string, values map[string]any, precision int, opts Options) (float64, error) {
	tree, err := parse(formula)
	if err != nil {
		return 0, err
	}
	return run(tree, values, precision, opts)
}

// Validate parses formula and reports why it would never produce a value.
func Validate(formula string) error {
	_, err := parse(formula)
	return err
}

func run(tree node, values map[string]any, precision int, opts Options) (float64, error) {
	v, err := tree.eval(valueLookup(values, opts))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	v = roundTo(v, precision)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

// ExtractFieldNames returns the placeholder names referenced by a formula,
// without duplicates, in order of first appearance.
func ExtractFieldNames(formula string) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(formula, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

func valueLookup(values map[string]any, opts Options) lookup {
	return func(name string) (float64, error) {
		raw, ok := values[name]
		if !ok && opts.FieldPrefix != "" {
			raw, ok = values[opts.FieldPrefix+name]
		}
		if !ok {
			return 0, nil
		}
		v, err := toNumber(raw)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", name, err)
		}
		return v, nil
	}
}

// toNumber reads a submitted value as a number. Empty values count as zero.
func toNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if s == "" {
			return 0, nil
		}
		if !numericPattern.MatchString(s) {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, v)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, v)
		}
		return f, nil
	case fmt.Stringer:
		return toNumber(v.String())
	}
	return 0, fmt.Errorf("%w: %T", ErrNotNumeric, raw)
}

// roundTo rounds half away from zero. The shifted value is normalised through
// a fixed decimal rendering so 1.005 rounds to 1.01 rather than 1.0.
func roundTo(v float64, digits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	if digits < 0 {
		q := math.Pow(10, float64(-digits))
		return math.Round(v/q) * q
	}
	p := math.Pow(10, float64(digits))
	shifted, err := strconv.ParseFloat(strconv.FormatFloat(v*p, 'f', 8, 64), 64)
	if err != nil {
		shifted = v * p
	}
	return math.Round(shifted) / p
}
