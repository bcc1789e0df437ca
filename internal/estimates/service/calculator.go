package service

import "math"

// LineInput is a single line on an estimate before totals are computed.
type LineInput struct {
	Description    string
	Quantity       float64
	Unit           string
	UnitPriceCents int64
}

// CalculatedLine is a line with its extended total.
type CalculatedLine struct {
	LineInput
	LineTotalCents int64
}

// Totals holds the money breakdown of an estimate in cents.
type Totals struct {
	Lines          []CalculatedLine
	SubtotalCents  int64
	TaxRateBps     int
	TaxCents       int64
	DepositPercent int
	DepositCents   int64
	TotalCents     int64
}

// roundCents rounds a fractional cent amount half away from zero.
func roundCents(v float64) int64 {
	if v >= 0 {
		return int64(math.Floor(v + 0.5))
	}
	return int64(math.Ceil(v - 0.5))
}

// Calculate computes line totals, tax and deposit for an estimate.
// taxRateBps is the sales tax in basis points (625 = 6.25%).
// depositPercent is the share of the total due up front.
func Calculate(lines []LineInput, taxRateBps, depositPercent int) Totals {
	out := Totals{
		Lines:          make([]CalculatedLine, 0, len(lines)),
		TaxRateBps:     taxRateBps,
		DepositPercent: depositPercent,
	}

	for _, line := range lines {
		qty := line.Quantity
		if qty < 0 {
			qty = 0
		}
		lineTotal := roundCents(qty * float64(line.UnitPriceCents))
		out.Lines = append(out.Lines, CalculatedLine{LineInput: line, LineTotalCents: lineTotal})
		out.SubtotalCents += lineTotal
	}

	out.TaxCents = roundCents(float64(out.SubtotalCents) * float64(taxRateBps) / 10000.0)
	out.TotalCents = out.SubtotalCents + out.TaxCents
	out.DepositCents = roundCents(float64(out.TotalCents) * float64(depositPercent) / 100.0)

	return out
}
