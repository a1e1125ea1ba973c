package conditions

import "strings"

// Category groups field types that share a set of comparison operators.
type Category string

const (
	CategoryBoolean    Category = "boolean"
	CategoryNumeric    Category = "numeric"
	CategoryDate       Category = "date"
	CategoryOption     Category = "option"
	CategoryMultiValue Category = "multi_value"
	CategoryText       Category = "text"
	CategoryColor      Category = "color"
	CategoryFileLike   Category = "file_like"
	CategoryUnknown    Category = "unknown"
)

// Operator is a comparison token.
type Operator string

const (
	OpChecked            Operator = "checked"
	OpUnchecked          Operator = "unchecked"
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpAfter              Operator = "after"
	OpBefore             Operator = "before"
	OpAfterOrEqual       Operator = "after_or_equal"
	OpBeforeOrEqual      Operator = "before_or_equal"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpRegex              Operator = "regex"
	OpIsEmpty            Operator = "is_empty"
	OpIsNotEmpty         Operator = "is_not_empty"
)

// operatorTable is the complete set of legal operators per category, in
// display order.
var operatorTable = map[Category][]Operator{
	CategoryBoolean: {OpChecked, OpUnchecked},
	CategoryNumeric: {OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
		OpGreaterThanOrEqual, OpLessThanOrEqual, OpIsEmpty, OpIsNotEmpty},
	CategoryDate: {OpEquals, OpNotEquals, OpAfter, OpBefore,
		OpAfterOrEqual, OpBeforeOrEqual, OpIsEmpty, OpIsNotEmpty},
	CategoryOption:     {OpEquals, OpNotEquals, OpIn, OpNotIn, OpIsEmpty, OpIsNotEmpty},
	CategoryMultiValue: {OpContains, OpNotContains, OpIn, OpNotIn, OpIsEmpty, OpIsNotEmpty},
	CategoryText: {OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpStartsWith, OpEndsWith, OpRegex, OpIsEmpty, OpIsNotEmpty},
	CategoryColor:    {OpEquals, OpNotEquals, OpIsEmpty, OpIsNotEmpty},
	CategoryFileLike: {OpIsEmpty, OpIsNotEmpty},
	CategoryUnknown:  {OpEquals, OpNotEquals, OpIsEmpty, OpIsNotEmpty},
}

// Categories lists every known category.
func Categories() []Category {
	return []Category{
		CategoryBoolean, CategoryNumeric, CategoryDate, CategoryOption, CategoryMultiValue,
		CategoryText, CategoryColor, CategoryFileLike, CategoryUnknown,
	}
}

// OperatorsFor returns the operators legal for a category. An unrecognised
// category has none.
func OperatorsFor(c Category) []Operator {
	ops := operatorTable[c]
	out := make([]Operator, len(ops))
	copy(out, ops)
	return out
}

// Allows reports whether op is legal for the category.
func Allows(c Category, op Operator) bool {
	for _, candidate := range operatorTable[c] {
		if candidate == op {
			return true
		}
	}
	return false
}

// ParseCategory reads a category name as stored in field metadata.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case "multivalue", "multi-value":
		c = CategoryMultiValue
	case "filelike", "file-like", "file":
		c = CategoryFileLike
	}
	_, ok := operatorTable[c]
	return c, ok
}

var fieldTypeCategories = map[string]Category{
	"checkbox": CategoryBoolean,
	"toggle":   CategoryBoolean,
	"switch":   CategoryBoolean,

	"number":     CategoryNumeric,
	"range":      CategoryNumeric,
	"slider":     CategoryNumeric,
	"rating":     CategoryNumeric,
	"calculated": CategoryNumeric,
	"currency":   CategoryNumeric,

	"date":     CategoryDate,
	"datetime": CategoryDate,
	"time":     CategoryDate,

	"select":           CategoryOption,
	"radio":            CategoryOption,
	"dropdown":         CategoryOption,
	"dynamic_select":   CategoryOption,
	"cascading_select": CategoryOption,

	"checkbox_group": CategoryMultiValue,
	"multiselect":    CategoryMultiValue,
	"tags":           CategoryMultiValue,

	"text":      CategoryText,
	"textarea":  CategoryText,
	"email":     CategoryText,
	"url":       CategoryText,
	"phone":     CategoryText,
	"password":  CategoryText,
	"hidden":    CategoryText,
	"rich_text": CategoryText,

	"color": CategoryColor,

	"file":      CategoryFileLike,
	"image":     CategoryFileLike,
	"video":     CategoryFileLike,
	"audio":     CategoryFileLike,
	"signature": CategoryFileLike,
}

// CategoryForFieldType maps a builder field type to its operator category.
// Unrecognised types fall back to CategoryUnknown.
func CategoryForFieldType(fieldType string) Category {
	if c, ok := fieldTypeCategories[strings.ToLower(strings.TrimSpace(fieldType))]; ok {
		return c
	}
	return CategoryUnknown
}
