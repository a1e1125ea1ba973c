package main

import (
	"github.com/liamcoop/formlogic/conditions"
	"github.com/liamcoop/formlogic/forms"
	"github.com/liamcoop/formlogic/internal/logger"
	"github.com/liamcoop/formlogic/options"
)

// API request and response models

// EvaluateFormulaRequest is the body of POST /formulas/evaluate
type EvaluateFormulaRequest struct {
	Formula   string         `json:"formula" example:"({price}+{tax})*{quantity}"`
	Values    map[string]any `json:"values"`
	Precision *int           `json:"precision,omitempty" example:"2"`
	Format    *forms.Format  `json:"format,omitempty"`
} // @name EvaluateFormulaRequest

// EvaluateFormulaResponse carries a null value when the formula has none
type EvaluateFormulaResponse struct {
	Value   *float64 `json:"value"`
	Display string   `json:"display,omitempty" example:"$220.00"`
	Error   string   `json:"error,omitempty" example:"division by zero"`
} // @name EvaluateFormulaResponse

// FormulaFieldsRequest is the body of POST /formulas/fields
type FormulaFieldsRequest struct {
	Formula string `json:"formula" example:"{a}+{a}*{b}"`
} // @name FormulaFieldsRequest

// FormulaFieldsResponse lists the placeholders a formula reads
type FormulaFieldsResponse struct {
	Fields []string `json:"fields" example:"a,b"`
} // @name FormulaFieldsResponse

// EvaluateConditionsRequest is the body of POST /conditions/evaluate.
// Types maps field names to builder field types.
type EvaluateConditionsRequest struct {
	Group  conditions.Group  `json:"group"`
	Values map[string]any    `json:"values"`
	Types  map[string]string `json:"types,omitempty"`
} // @name EvaluateConditionsRequest

// EvaluateConditionsResponse is the group decision
type EvaluateConditionsResponse struct {
	Result       bool     `json:"result" example:"true"`
	Dependencies []string `json:"dependencies"`
} // @name EvaluateConditionsResponse

// OperatorsResponse lists a category's legal operators
type OperatorsResponse struct {
	Category  conditions.Category   `json:"category" example:"numeric"`
	Operators []conditions.Operator `json:"operators"`
} // @name OperatorsResponse

// OperatorTableResponse is the operator set of every category
type OperatorTableResponse struct {
	Categories []OperatorsResponse `json:"categories"`
} // @name OperatorTableResponse

// FormsListResponse lists stored form IDs
type FormsListResponse struct {
	Forms []string `json:"forms"`
} // @name FormsListResponse

// FormResponse is a stored form with its field dependencies
type FormResponse struct {
	forms.Form
	Dependencies map[string][]string `json:"dependencies"`
} // @name FormResponse

// EvaluateFormRequest is the body of POST /forms/{formId}/evaluate
type EvaluateFormRequest struct {
	Values map[string]any `json:"values"`
} // @name EvaluateFormRequest

// EvaluateFormResponse holds every field's state
type EvaluateFormResponse struct {
	Fields         []forms.FieldState `json:"fields"`
	EvaluationTime string             `json:"evaluationTime" example:"1.2ms"`
} // @name EvaluateFormResponse

// OptionsResponse is a field's resolved option list
type OptionsResponse struct {
	Options []options.Option `json:"options"`
} // @name OptionsResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string   `json:"error" example:"form not found"`
	Details string   `json:"details,omitempty"`
	Errors  []string `json:"errors,omitempty"`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string          `json:"status" example:"healthy"`
	Storage        string          `json:"storage" example:"postgres"`
	Forms          int             `json:"forms"`
	CachedFormulas int             `json:"cachedFormulas"`
	OptionEvents   OptionEvents    `json:"optionEvents"`
	Counters       logger.Counters `json:"counters"`
	Error          string          `json:"error,omitempty"`
} // @name HealthResponse

// OptionEvents counts option resolution outcomes since startup
type OptionEvents struct {
	Loaded int64 `json:"loaded"`
	Failed int64 `json:"failed"`
} // @name OptionEvents
