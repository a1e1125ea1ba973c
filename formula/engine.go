package formula

import (
	"sync"

	"github.com/liamcoop/formlogic/internal/logger"
)

// Engine evaluates formulas and keeps parsed formulas around so a formula
// that is evaluated on every submission is only parsed once.
// Safe for concurrent use.
type Engine struct {
	opts     Options
	programs map[string]node // formula text -> parsed tree
	mu       sync.RWMutex
}

// NewEngine creates an engine with the given placeholder options.
func NewEngine(opts Options) *Engine {
	return &Engine{
		opts:     opts,
		programs: make(map[string]node),
	}
}

// Compile parses a formula and caches the result. It returns the syntax
// error, if any, so the builder can reject a formula before it is saved.
func (en *Engine) Compile(formula string) error {
	_, err := en.program(formula)
	return err
}

// Calculate evaluates a formula and returns the reason when it has no value.
func (en *Engine) Calculate(formula string, values map[string]any, precision int) (float64, error) {
	tree, err := en.program(formula)
	if err != nil {
		return 0, err
	}
	return run(tree, values, precision, en.opts)
}

// Evaluate evaluates a formula; ok is false when there is no value.
func (en *Engine) Evaluate(formula string, values map[string]any, precision int) (float64, bool) {
	v, err := en.Calculate(formula, values, precision)
	if err != nil {
		logger.FormulaFailures.Add(1)
		logger.Debug("formula produced no value", "formula", formula, "error", err)
		return 0, false
	}
	return v, true
}

// Forget drops a cached formula.
func (en *Engine) Forget(formula string) {
	en.mu.Lock()
	delete(en.programs, formula)
	en.mu.Unlock()
}

// Len returns the number of cached formulas.
func (en *Engine) Len() int {
	en.mu.RLock()
	defer en.mu.RUnlock()
	return len(en.programs)
}

func (en *Engine) program(formula string) (node, error) {
	en.mu.RLock()
	tree, ok := en.programs[formula]
	en.mu.RUnlock()
	if ok {
		return tree, nil
	}

	tree, err := parse(formula)
	if err != nil {
		return nil, err
	}

	en.mu.Lock()
	en.programs[formula] = tree
	en.mu.Unlock()
	return tree, nil
}
