// Package forms holds form definitions and evaluates them against submitted
// values: calculated fields, conditional visibility and dynamic options.
package forms

import (
	"github.com/liamcoop/formlogic/conditions"
	"github.com/liamcoop/formlogic/formula"
	"github.com/liamcoop/formlogic/options"
)

// Format configures how a calculated value is displayed.
type Format struct {
	Kind   formula.Kind `json:"kind" mapstructure:"kind"`
	Prefix string       `json:"prefix,omitempty" mapstructure:"prefix"`
	Suffix string       `json:"suffix,omitempty" mapstructure:"suffix"`
}

// Field is one form field definition.
type Field struct {
	Name  string `json:"name" mapstructure:"name"`
	Type  string `json:"type" mapstructure:"type"`
	Label string `json:"label,omitempty" mapstructure:"label"`

	// Calculated fields.
	Formula   string  `json:"formula,omitempty" mapstructure:"formula"`
	Precision *int    `json:"precision,omitempty" mapstructure:"precision"`
	Format    *Format `json:"format,omitempty" mapstructure:"format"`

	// Conditional visibility. Action defaults to show.
	Conditions *conditions.Group `json:"conditions,omitempty" mapstructure:"conditions"`
	Action     conditions.Action `json:"action,omitempty" mapstructure:"action"`

	// Dynamic options, cascading from Parent when set.
	Options *options.SourceConfig `json:"options,omitempty" mapstructure:"options"`
	Parent  string                `json:"parent,omitempty" mapstructure:"parent"`
}

func (f Field) precision() int {
	if f.Precision == nil {
		return formula.DefaultPrecision
	}
	return *f.Precision
}

func (f Field) action() conditions.Action {
	if f.Action == "" {
		return conditions.ActionShow
	}
	return f.Action
}

// Form is a named, ordered set of fields.
type Form struct {
	ID     string  `json:"id" mapstructure:"id"`
	Name   string  `json:"name" mapstructure:"name"`
	Fields []Field `json:"fields" mapstructure:"fields"`
}

// Field returns the named field.
func (f *Form) Field(name string) (Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

func (f *Form) categories() map[string]conditions.Category {
	out := make(map[string]conditions.Category, len(f.Fields))
	for _, field := range f.Fields {
		out[field.Name] = conditions.CategoryForFieldType(field.Type)
	}
	return out
}

// FieldState is the evaluated state of one field.
type FieldState struct {
	Name    string           `json:"name"`
	Visible bool             `json:"visible"`
	Value   *float64         `json:"value,omitempty"`
	Display string           `json:"display,omitempty"`
	Options []options.Option `json:"options,omitempty"`
}
