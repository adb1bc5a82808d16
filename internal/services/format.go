package services

import (
	"fmt"
	"github.com/shopspring/decimal"
	"strings"
)

// FormatRupiah печатает сумму в виде "Rp 1.250.000" или "Rp 9.999,50"
func FormatRupiah(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	d = d.Abs().Round(2)
	whole := d.Truncate(0)
	cents := d.Sub(whole).Shift(2).IntPart()

	digits := whole.String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if cents != 0 {
		fmt.Fprintf(&b, ",%02d", cents)
	}
	return "Rp " + sign + b.String()
}
