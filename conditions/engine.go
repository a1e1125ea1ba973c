package conditions

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/liamcoop/formlogic/internal/logger"
)

var (
	// ErrUnknownOperator reports an operator outside its category's set.
	ErrUnknownOperator = errors.New("operator not valid for field category")

	// ErrUnknownCategory reports a category that has no operator set.
	ErrUnknownCategory = errors.New("unknown field category")

	// ErrInvalidValue reports a value that cannot be read as the category's type.
	ErrInvalidValue = errors.New("invalid value for field category")
)

// costLimit bounds a single comparison; regex matching over very long text
// is the only thing that comes close.
const costLimit = 100000

// programSources holds the comparison for every (category, operator) pair
// except the emptiness checks, which apply to all categories and are decided
// before any program runs. "value" is the field's current value and
// "operand" the configured comparison value, both already coerced.
var programSources = map[Category]map[Operator]string{
	CategoryBoolean: {
		OpChecked:   `value == true`,
		OpUnchecked: `value == false`,
	},
	CategoryNumeric: {
		OpEquals:             `value == operand`,
		OpNotEquals:          `value != operand`,
		OpGreaterThan:        `value > operand`,
		OpLessThan:           `value < operand`,
		OpGreaterThanOrEqual: `value >= operand`,
		OpLessThanOrEqual:    `value <= operand`,
	},
	CategoryDate: {
		OpEquals:        `value == operand`,
		OpNotEquals:     `value != operand`,
		OpAfter:         `value > operand`,
		OpBefore:        `value < operand`,
		OpAfterOrEqual:  `value >= operand`,
		OpBeforeOrEqual: `value <= operand`,
	},
	CategoryOption: {
		OpEquals:    `value == operand`,
		OpNotEquals: `value != operand`,
		OpIn:        `value in operand`,
		OpNotIn:     `!(value in operand)`,
	},
	CategoryMultiValue: {
		OpContains:    `operand in value`,
		OpNotContains: `!(operand in value)`,
		OpIn:          `value.exists(v, v in operand)`,
		OpNotIn:       `!value.exists(v, v in operand)`,
	},
	CategoryText: {
		OpEquals:      `value == operand`,
		OpNotEquals:   `value != operand`,
		OpContains:    `value.contains(operand)`,
		OpNotContains: `!value.contains(operand)`,
		OpStartsWith:  `value.startsWith(operand)`,
		OpEndsWith:    `value.endsWith(operand)`,
		OpRegex:       `value.matches(operand)`,
	},
	CategoryColor: {
		OpEquals:    `value == operand`,
		OpNotEquals: `value != operand`,
	},
	CategoryUnknown: {
		OpEquals:    `value == operand`,
		OpNotEquals: `value != operand`,
	},
}

type programKey struct {
	category Category
	operator Operator
}

// Engine evaluates single conditions and condition groups. All comparison
// programs are compiled up front, so an Engine is immutable after NewEngine
// and safe for concurrent use.
type Engine struct {
	env      *cel.Env
	programs map[programKey]cel.Program
}

// NewEngine creates an engine and compiles the comparison programs for every
// category.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("operand", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	en := &Engine{
		env:      env,
		programs: make(map[programKey]cel.Program),
	}
	for category, ops := range programSources {
		for op, src := range ops {
			prog, err := en.compile(src)
			if err != nil {
				return nil, fmt.Errorf("failed to compile %s/%s: %w", category, op, err)
			}
			en.programs[programKey{category, op}] = prog
		}
	}
	return en, nil
}

func (en *Engine) compile(src string) (cel.Program, error) {
	ast, issues := en.env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := en.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Evaluate decides a single condition against the target field's current
// value. Any misconfiguration or unreadable value yields false.
func (en *Engine) Evaluate(cond Condition, current any, category Category) bool {
	ok, err := en.Check(cond, current, category)
	if err != nil {
		logger.ConditionFailures.Add(1)
		logger.Debug("condition evaluated to false",
			"field", cond.Field, "operator", string(cond.Operator),
			"category", string(category), "error", err)
		return false
	}
	return ok
}

// Check is Evaluate with the reason a condition could not be decided.
func (en *Engine) Check(cond Condition, current any, category Category) (bool, error) {
	if _, known := operatorTable[category]; !known {
		return false, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if !Allows(category, cond.Operator) {
		return false, fmt.Errorf("%w: %q for %s", ErrUnknownOperator, cond.Operator, category)
	}

	switch cond.Operator {
	case OpIsEmpty:
		return isEmpty(current), nil
	case OpIsNotEmpty:
		return !isEmpty(current), nil
	}

	value, operand, err := prepare(category, cond.Operator, current, cond.Value)
	if err != nil {
		return false, err
	}

	prog, exists := en.programs[programKey{category, cond.Operator}]
	if !exists {
		return false, fmt.Errorf("%w: %q for %s has no program", ErrUnknownOperator, cond.Operator, category)
	}

	out, _, err := prog.Eval(map[string]any{
		"value":   value,
		"operand": operand,
	})
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("comparison produced %T, not bool", out.Value())
	}
	return matched, nil
}

// prepare coerces the current and comparison values into the types the
// category's programs compare.
func prepare(category Category, op Operator, current, comparison any) (value, operand any, err error) {
	switch category {
	case CategoryBoolean:
		return toBool(current), true, nil

	case CategoryNumeric:
		if isEmpty(current) {
			return nil, nil, fmt.Errorf("%w: empty numeric value", ErrInvalidValue)
		}
		v, err := toFloat(current)
		if err != nil {
			return nil, nil, err
		}
		o, err := toFloat(comparison)
		if err != nil {
			return nil, nil, err
		}
		return v, o, nil

	case CategoryDate:
		v, err := toTime(current)
		if err != nil {
			return nil, nil, err
		}
		o, err := toTime(comparison)
		if err != nil {
			return nil, nil, err
		}
		return v, o, nil

	case CategoryOption:
		v := strings.TrimSpace(toString(current))
		if op == OpIn || op == OpNotIn {
			return v, toList(comparison), nil
		}
		return v, strings.TrimSpace(toString(comparison)), nil

	case CategoryMultiValue:
		v := toList(current)
		if op == OpIn || op == OpNotIn {
			return v, toList(comparison), nil
		}
		return v, strings.TrimSpace(toString(comparison)), nil

	case CategoryText:
		if op == OpRegex {
			return toString(current), normalizePattern(toString(comparison)), nil
		}
		return toString(current), toString(comparison), nil

	case CategoryColor:
		return strings.ToLower(strings.TrimSpace(toString(current))),
			strings.ToLower(strings.TrimSpace(toString(comparison))), nil
	}

	return toString(current), toString(comparison), nil
}

var defaultEngine = sync.OnceValues(NewEngine)

// Evaluate decides a single condition with a shared default engine.
func Evaluate(cond Condition, current any, category Category) bool {
	en, err := defaultEngine()
	if err != nil {
		logger.Error("condition engine unavailable", "error", err)
		return false
	}
	return en.Evaluate(cond, current, category)
}
