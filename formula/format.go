package formula

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind selects how a calculated value is displayed.
type Kind string

const (
	KindNumber     Kind = "number"
	KindCurrency   Kind = "currency"
	KindPercentage Kind = "percentage"
)

var printer = message.NewPrinter(language.English)

// FormatValue renders a calculated value for display. A nil value renders as
// the empty string. Currency defaults to a "$" prefix and percentage to a "%"
// suffix when none is given; unknown kinds render as plain numbers.
func FormatValue(value *float64, kind Kind, precision int, prefix, suffix string) string {
	if value == nil {
		return ""
	}
	if precision < 0 {
		precision = 0
	}

	switch kind {
	case KindCurrency:
		if prefix == "" {
			prefix = "$"
		}
	case KindPercentage:
		if suffix == "" {
			suffix = "%"
		}
	}

	v := roundTo(*value, precision)
	return prefix + printer.Sprintf("%.*f", precision, v) + suffix
}
