package forms

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"github.com/liamcoop/formlogic/conditions"
	"github.com/liamcoop/formlogic/formula"
)

const (
	maxFields         = 500
	maxIdentifierSize = 100
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateForm checks a form definition and reports every problem found.
// The returned error is a *multierror.Error when it is non-nil.
func ValidateForm(form Form) error {
	var result *multierror.Error

	if form.ID == "" {
		result = multierror.Append(result, fmt.Errorf("form id cannot be empty"))
	}
	if len(form.Fields) == 0 {
		result = multierror.Append(result, fmt.Errorf("form must contain at least one field"))
	}
	if len(form.Fields) > maxFields {
		result = multierror.Append(result, fmt.Errorf("form contains %d fields, maximum allowed is %d", len(form.Fields), maxFields))
	}

	names := make(map[string]bool, len(form.Fields))
	for _, f := range form.Fields {
		if err := validateIdentifier(f.Name); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid field name %q: %w", f.Name, err))
			continue
		}
		if names[f.Name] {
			result = multierror.Append(result, fmt.Errorf("duplicate field name %q", f.Name))
		}
		names[f.Name] = true
	}

	categoryOf := func(name string) (conditions.Category, bool) {
		if !names[name] {
			return "", false
		}
		f, _ := form.Field(name)
		return conditions.CategoryForFieldType(f.Type), true
	}

	for _, f := range form.Fields {
		for _, err := range validateField(f, names, categoryOf) {
			result = multierror.Append(result, fmt.Errorf("field %q: %w", f.Name, err))
		}
	}

	return result.ErrorOrNil()
}

func validateField(f Field, names map[string]bool, categoryOf func(string) (conditions.Category, bool)) []error {
	var errs []error

	if f.Formula != "" {
		if err := formula.Validate(f.Formula); err != nil {
			errs = append(errs, fmt.Errorf("invalid formula: %w", err))
		}
	}
	if f.Precision != nil && (*f.Precision < -10 || *f.Precision > 10) {
		errs = append(errs, fmt.Errorf("precision %d out of range", *f.Precision))
	}
	if f.Format != nil {
		switch f.Format.Kind {
		case formula.KindNumber, formula.KindCurrency, formula.KindPercentage:
		default:
			errs = append(errs, fmt.Errorf("unknown display format %q", f.Format.Kind))
		}
	}

	switch f.Action {
	case "", conditions.ActionShow, conditions.ActionHide:
	default:
		errs = append(errs, fmt.Errorf("unknown action %q", f.Action))
	}
	if f.Conditions != nil {
		errs = append(errs, conditions.Validate(*f.Conditions, categoryOf)...)
	}

	if f.Options != nil {
		if err := f.Options.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("invalid option source: %w", err))
		}
	}
	if f.Parent != "" {
		switch {
		case f.Parent == f.Name:
			errs = append(errs, fmt.Errorf("field cannot be its own parent"))
		case !names[f.Parent]:
			errs = append(errs, fmt.Errorf("parent %q does not exist", f.Parent))
		case f.Options == nil:
			errs = append(errs, fmt.Errorf("parent %q set without an option source", f.Parent))
		}
	}
	return errs
}

// validateIdentifier checks a field name: 1-100 characters matching
// ^[a-zA-Z_][a-zA-Z0-9_]*$.
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierSize {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentifierSize)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("must start with a letter or underscore, followed by letters, digits, or underscores")
	}
	return nil
}
