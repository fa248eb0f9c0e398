package service

import (
	"math"

	"github.com/noah-isme/campus-print-api/internal/dto"
)

// Default per-page rates.
const (
	DefaultBWRate    = 1.0
	DefaultColorRate = 2.0
)

// Pricing is the cost breakdown of one print selection.
type Pricing struct {
	BWPages    int
	ColorPages int
	TotalPages int
	Subtotal   float64
	Total      float64
}

// View converts the pricing into its response shape.
func (p Pricing) View() dto.PricingView {
	return dto.PricingView{
		BWPages:    p.BWPages,
		ColorPages: p.ColorPages,
		TotalPages: p.TotalPages,
		Subtotal:   p.Subtotal,
		Total:      p.Total,
	}
}

// PriceSchedule carries the per-page rates.
type PriceSchedule struct {
	BWRate    float64
	ColorRate float64
}

// DefaultPriceSchedule charges 1 per black and white page and 2 per color page.
var DefaultPriceSchedule = PriceSchedule{BWRate: DefaultBWRate, ColorRate: DefaultColorRate}

// NewPriceSchedule builds a schedule, falling back to the defaults for
// non-positive rates.
func NewPriceSchedule(bwRate, colorRate float64) PriceSchedule {
	if bwRate <= 0 {
		bwRate = DefaultBWRate
	}
	if colorRate <= 0 {
		colorRate = DefaultColorRate
	}
	return PriceSchedule{BWRate: bwRate, ColorRate: colorRate}
}

// ComputePricing prices a selection with the default schedule.
func ComputePricing(pageCount, copies int, colorEnabled bool) Pricing {
	return DefaultPriceSchedule.Compute(pageCount, copies, colorEnabled)
}

// Compute prices pageCount pages printed copies times. Every page is color
// when colorEnabled, black and white otherwise. Negative page counts are
// treated as zero and copies below one as one.
func (s PriceSchedule) Compute(pageCount, copies int, colorEnabled bool) Pricing {
	if pageCount < 0 {
		pageCount = 0
	}
	if copies < 1 {
		copies = 1
	}

	p := Pricing{TotalPages: pageCount * copies}
	if colorEnabled {
		p.ColorPages = p.TotalPages
	} else {
		p.BWPages = p.TotalPages
	}
	p.Subtotal = roundCents(float64(p.BWPages)*s.BWRate + float64(p.ColorPages)*s.ColorRate)
	p.Total = p.Subtotal
	return p
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
