// Package format renders prices and percentages for Telegram messages.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Price formats a price the way alert messages show it: no decimals with
// thousands separators from 1000 up, two decimals from 1, six below.
func Price(p float64) string {
	d := decimal.NewFromFloat(p)
	switch abs := d.Abs(); {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		return group(d.StringFixed(0))
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return d.StringFixed(2)
	default:
		return d.StringFixed(6)
	}
}

// ReportPrice formats a price for the periodic price table.
func ReportPrice(p float64) string {
	d := decimal.NewFromFloat(p)
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return group(d.StringFixed(2))
	}
	return d.StringFixed(8)
}

// Change formats a percentage with an explicit sign, e.g. "+1.25%".
func Change(pct float64) string {
	d := decimal.NewFromFloat(pct).Round(2)
	s := d.StringFixed(2)
	if !d.IsNegative() {
		s = "+" + s
	}
	return s + "%"
}

// PercentDistance returns |current-target|/target*100 rounded to two places.
func PercentDistance(current, target float64) float64 {
	if target == 0 {
		return 0
	}
	c := decimal.NewFromFloat(current)
	t := decimal.NewFromFloat(target)
	f, _ := c.Sub(t).Div(t).Mul(decimal.NewFromInt(100)).Abs().Round(2).Float64()
	return f
}

func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
