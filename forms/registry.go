package forms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/liamcoop/formlogic/conditions"
	"github.com/liamcoop/formlogic/formula"
	"github.com/liamcoop/formlogic/internal/logger"
	"github.com/liamcoop/formlogic/options"
)

var (
	ErrFormNotFound  = errors.New("form not found")
	ErrFieldNotFound = errors.New("field not found")
	ErrNoOptions     = errors.New("field has no option source")
)

// RegistryConfig wires a Registry to its evaluators. Nil fields get
// defaults.
type RegistryConfig struct {
	Formulas   *formula.Engine
	Conditions *conditions.Engine
	Resolver   *options.Resolver
}

// Registry manages form definitions and evaluates them.
type Registry struct {
	forms      map[string]*Form
	formulas   *formula.Engine
	conditions *conditions.Engine
	resolver   *options.Resolver
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	r := &Registry{
		forms:      make(map[string]*Form),
		formulas:   config.Formulas,
		conditions: config.Conditions,
		resolver:   config.Resolver,
	}
	if r.formulas == nil {
		r.formulas = formula.NewEngine(formula.DefaultOptions())
	}
	if r.conditions == nil {
		en, err := conditions.NewEngine()
		if err != nil {
			return nil, fmt.Errorf("failed to create condition engine: %w", err)
		}
		r.conditions = en
	}
	if r.resolver == nil {
		r.resolver = options.NewResolver(options.ResolverConfig{})
	}
	return r, nil
}

// Put validates a form and stores it, replacing any form with the same ID.
// Its formulas are compiled ahead of the first evaluation.
func (r *Registry) Put(form Form) error {
	if err := ValidateForm(form); err != nil {
		return err
	}
	for _, f := range form.Fields {
		if f.Formula != "" {
			if err := r.formulas.Compile(f.Formula); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
	}

	stored := form
	stored.Fields = append([]Field(nil), form.Fields...)

	r.mu.Lock()
	previous := r.forms[form.ID]
	r.forms[form.ID] = &stored
	r.releaseFormulasLocked(previous)
	r.mu.Unlock()

	logger.Info("form stored", "form_id", form.ID, "fields", len(form.Fields))
	return nil
}

// Get returns a copy of the form.
func (r *Registry) Get(formID string) (Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.forms[formID]
	if !ok {
		return Form{}, fmt.Errorf("%w: %s", ErrFormNotFound, formID)
	}
	out := *f
	out.Fields = append([]Field(nil), f.Fields...)
	return out, nil
}

// Delete removes a form.
func (r *Registry) Delete(formID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.forms[formID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFormNotFound, formID)
	}
	delete(r.forms, formID)
	r.releaseFormulasLocked(previous)
	return nil
}

// releaseFormulasLocked drops compiled formulas of a removed or replaced
// form that no stored form uses any more. r.mu must be held for writing.
func (r *Registry) releaseFormulasLocked(old *Form) {
	if old == nil {
		return
	}
	inUse := make(map[string]bool)
	for _, form := range r.forms {
		for _, f := range form.Fields {
			if f.Formula != "" {
				inUse[f.Formula] = true
			}
		}
	}
	for _, f := range old.Fields {
		if f.Formula != "" && !inUse[f.Formula] {
			r.formulas.Forget(f.Formula)
		}
	}
}

// List returns the stored form IDs in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.forms))
	for id := range r.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Evaluate computes every field's state for the submitted values.
//
// Formulas run first, in declaration order; each result is written back
// into the values so later formulas and conditions can read it. Visibility
// is then decided on the updated values. Options are loaded for visible
// fields only, and a cascading field whose parent has no value gets an
// empty list without a fetch.
func (r *Registry) Evaluate(ctx context.Context, formID string, values map[string]any) ([]FieldState, error) {
	form, err := r.Get(formID)
	if err != nil {
		return nil, err
	}

	current := make(map[string]any, len(values)+len(form.Fields))
	for k, v := range values {
		current[k] = v
	}

	states := make([]FieldState, len(form.Fields))
	for i, f := range form.Fields {
		states[i] = FieldState{Name: f.Name, Visible: true}
		if f.Formula == "" {
			continue
		}
		v, ok := r.formulas.Evaluate(f.Formula, current, f.precision())
		if !ok {
			delete(current, f.Name)
			continue
		}
		current[f.Name] = v
		states[i].Value = &v
		if f.Format != nil {
			states[i].Display = formula.FormatValue(&v, f.Format.Kind, f.precision(), f.Format.Prefix, f.Format.Suffix)
		}
	}

	lookup := conditions.MapLookup(current, form.categories())
	for i, f := range form.Fields {
		states[i].Visible = r.conditions.Visible(f.Conditions, f.action(), lookup)
		if f.Options == nil || !states[i].Visible {
			continue
		}
		states[i].Options = r.loadOptions(ctx, formID, f, current)
	}
	return states, nil
}

// LoadOptions resolves a field's options. parent is the parent field's
// current value and is ignored for fields without a parent.
func (r *Registry) LoadOptions(ctx context.Context, formID, fieldName, parent string) ([]options.Option, error) {
	form, err := r.Get(formID)
	if err != nil {
		return nil, err
	}
	f, ok := form.Field(fieldName)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, formID, fieldName)
	}
	if f.Options == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoOptions, formID, fieldName)
	}
	return r.loadOptions(ctx, formID, f, map[string]any{f.Parent: parent}), nil
}

// InvalidateOptions drops the cached option lists of a field.
func (r *Registry) InvalidateOptions(ctx context.Context, formID, fieldName string) error {
	form, err := r.Get(formID)
	if err != nil {
		return err
	}
	if _, ok := form.Field(fieldName); !ok {
		return fmt.Errorf("%w: %s.%s", ErrFieldNotFound, formID, fieldName)
	}
	return r.resolver.Invalidate(ctx, OptionFieldID(formID, fieldName))
}

func (r *Registry) loadOptions(ctx context.Context, formID string, f Field, values map[string]any) []options.Option {
	parent := ""
	if f.Parent != "" {
		parent = parentValue(values[f.Parent])
		if parent == "" {
			return []options.Option{}
		}
	}
	return r.resolver.LoadOptions(ctx, OptionFieldID(formID, f.Name), *f.Options, parent)
}

// OptionFieldID is the field identifier option caches are keyed by.
func OptionFieldID(formID, fieldName string) string {
	return formID + ":" + fieldName
}

func parentValue(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	default:
		return fmt.Sprint(p)
	}
}

// Dependencies maps each field to the fields it reads through its formula,
// its conditions or its parent. Fields that read nothing are omitted.
func (r *Registry) Dependencies(formID string) (map[string][]string, error) {
	form, err := r.Get(formID)
	if err != nil {
		return nil, err
	}

	deps := make(map[string][]string)
	for _, f := range form.Fields {
		seen := make(map[string]bool)
		var names []string
		add := func(name string) {
			if name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		if f.Formula != "" {
			for _, name := range formula.ExtractFieldNames(f.Formula) {
				add(name)
			}
		}
		if f.Conditions != nil {
			for _, name := range conditions.Dependencies(*f.Conditions) {
				add(name)
			}
		}
		add(f.Parent)
		if len(names) > 0 {
			deps[f.Name] = names
		}
	}
	return deps, nil
}
