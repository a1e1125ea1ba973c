package forms

import (
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/liamcoop/formlogic/conditions"
	"github.com/liamcoop/formlogic/options"
)

func TestValidateForm_Valid(t *testing.T) {
	if err := ValidateForm(orderForm()); err != nil {
		t.Errorf("Expected valid form, got: %v", err)
	}
}

func TestValidateForm_Empty(t *testing.T) {
	err := ValidateForm(Form{})
	if err == nil {
		t.Fatal("Expected error for empty form, got nil")
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("Expected *multierror.Error, got %T", err)
	}
	if len(merr.Errors) != 2 {
		t.Errorf("Expected 2 errors (id, fields), got %d: %v", len(merr.Errors), err)
	}
}

func TestValidateForm_FieldNames(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		wantErr string
	}{
		{"empty", "", "empty"},
		{"leading digit", "1st", "must start"},
		{"hyphen", "first-name", "must start"},
		{"space", "first name", "must start"},
		{"too long", strings.Repeat("a", 101), "exceeds maximum of 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateForm(Form{ID: "f", Fields: []Field{{Name: tt.field, Type: "text"}}})
			if err == nil {
				t.Fatalf("Expected error for field name %q, got nil", tt.field)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}

	ok := []string{"_private", "a", "field_1", strings.Repeat("b", 100)}
	for _, name := range ok {
		if err := ValidateForm(Form{ID: "f", Fields: []Field{{Name: name, Type: "text"}}}); err != nil {
			t.Errorf("Expected %q to be valid, got: %v", name, err)
		}
	}
}

func TestValidateForm_AggregatesErrors(t *testing.T) {
	badMode := conditions.Group{Match: "most", Conditions: []conditions.Node{
		conditions.Leaf(conditions.Condition{Field: "agree", Operator: conditions.OpGreaterThan, Value: 1}),
		conditions.Leaf(conditions.Condition{Field: "ghost", Operator: conditions.OpEquals, Value: "x"}),
	}}

	form := Form{
		ID: "broken",
		Fields: []Field{
			{Name: "agree", Type: "checkbox"},
			{Name: "agree", Type: "checkbox"},
			{Name: "total", Type: "calculated", Formula: "{a} +* 2"},
			{Name: "shown", Type: "text", Conditions: &badMode, Action: "blink"},
			{Name: "city", Type: "select", Parent: "state", Options: &options.SourceConfig{Kind: options.SourceURL}},
			{Name: "loop", Type: "select", Parent: "loop", Options: &options.SourceConfig{Kind: "ftp"}},
			{Name: "money", Type: "number", Format: &Format{Kind: "roman"}, Precision: intPtr(20)},
		},
	}

	err := ValidateForm(form)
	if err == nil {
		t.Fatal("Expected errors, got nil")
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("Expected *multierror.Error, got %T", err)
	}

	wantFragments := []string{
		`duplicate field name "agree"`,
		`field "total": invalid formula`,
		`unknown action "blink"`,
		`unknown match mode "most"`,
		`greater_than`,
		`unknown field "ghost"`,
		`url source needs a url`,
		`parent "state" does not exist`,
		`own parent`,
		`unknown option source kind`,
		`unknown display format "roman"`,
		`precision 20 out of range`,
	}
	msg := err.Error()
	for _, want := range wantFragments {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected error containing %q, got:\n%s", want, msg)
		}
	}
	if len(merr.Errors) != len(wantFragments) {
		t.Errorf("Expected %d errors, got %d:\n%s", len(wantFragments), len(merr.Errors), msg)
	}
}

func TestValidateForm_ParentWithoutSource(t *testing.T) {
	form := Form{ID: "f", Fields: []Field{
		{Name: "state", Type: "select"},
		{Name: "city", Type: "select", Parent: "state"},
	}}
	err := ValidateForm(form)
	if err == nil || !strings.Contains(err.Error(), "without an option source") {
		t.Errorf("Expected parent-without-source error, got: %v", err)
	}
}
