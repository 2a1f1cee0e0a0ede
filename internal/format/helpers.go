package format

import (
	"fmt"
	"strconv"
)

// Float renders v with prec decimals.
func Float(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// Percent renders a [0, 1] rate as a percentage with one decimal.
func Percent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// Ratio renders "num/den" followed by the rate, or "-" when den is zero.
func Ratio(num, den int) string {
	if den == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d (%s)", num, den, Percent(float64(num)/float64(den)))
}

func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
