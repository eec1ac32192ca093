package patch

import (
	"fmt"
	"strings"

	"github.com/inkwell-dev/pdfedit/coords"
)

// FormatMatrix renders m as six space-separated decimal numbers using fixed
// 6 fractional digits, trailing zeros stripped, with at least one digit
// after the decimal point retained (never "1." or "1").
func FormatMatrix(m coords.Matrix6) string {
	parts := make([]string, 6)
	for i, v := range m {
		parts[i] = formatNumber(v)
	}
	return strings.Join(parts, " ")
}

func formatNumber(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	for strings.Contains(s, ".") && strings.HasSuffix(s, "0") {
		s = s[:len(s)-1]
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}
