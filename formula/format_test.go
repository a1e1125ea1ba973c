package formula

import "testing"

func TestFormatValue(t *testing.T) {
	v := 1234.5
	neg := -42.0
	ratio := 12.345

	testCases := []struct {
		name      string
		value     *float64
		kind      Kind
		precision int
		prefix    string
		suffix    string
		want      string
	}{
		{"Nil", nil, KindNumber, 2, "", "", ""},
		{"Number", &v, KindNumber, 2, "", "", "1,234.50"},
		{"Number no decimals", &v, KindNumber, 0, "", "", "1,235"},
		{"Currency default prefix", &v, KindCurrency, 2, "", "", "$1,234.50"},
		{"Currency custom prefix", &v, KindCurrency, 2, "€", "", "€1,234.50"},
		{"Percentage default suffix", &ratio, KindPercentage, 1, "", "", "12.3%"},
		{"Prefix and suffix", &neg, KindNumber, 0, "~", " units", "~-42 units"},
		{"Unknown kind", &v, Kind("weird"), 1, "", "", "1,234.5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatValue(tc.value, tc.kind, tc.precision, tc.prefix, tc.suffix)
			if got != tc.want {
				t.Errorf("FormatValue() = %q, want %q", got, tc.want)
			}
		})
	}
}
