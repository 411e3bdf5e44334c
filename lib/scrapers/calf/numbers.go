package calf

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a portal-displayed amount into a decimal.
// The portal prints es-AR numbers ("52.630,39": dot thousands, comma
// decimals) but canonical forms ("52630.39", "0.00") must round-trip
// unchanged so normalization stays idempotent.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}

	if strings.Contains(cleaned, ",") {
		// es-AR: dots separate thousands, the comma is the decimal mark
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else if dots := strings.Count(cleaned, "."); dots > 1 {
		// "1.234.567" without decimals
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	} else if dots == 1 {
		// a single dot followed by exactly three digits is a thousands
		// separator ("52.630"); anything else is already canonical
		if idx := strings.Index(cleaned, "."); len(cleaned)-idx-1 == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unparseable amount %q: %w", s, err)
	}
	return d, nil
}
