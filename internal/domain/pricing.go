package domain

import (
	"fmt"
	"math"
	"strconv"
)

// PriceRequest identifies one shade configuration to price.
type PriceRequest struct {
	ShadeTypeID          string
	Width                float64
	Height               float64
	MaterialVariantID    string
	InstallationIncluded bool
	RemovalIncluded      bool
}

// PriceInputs carries the catalog figures pricing needs, resolved upstream.
type PriceInputs struct {
	MinPrice          int64
	PricePerSqm       int64
	InstallationPrice int64
	RemovalPrice      int64
}

// PriceBreakdown is the human-readable explanation attached to a quote.
type PriceBreakdown struct {
	AreaCalculation      string
	BasePriceCalculation string
	MinPriceApplied      bool
}

// PriceQuote is the full pricing result for one shade.
type PriceQuote struct {
	Area                float64
	BasePrice           int64
	MinPrice            int64
	PriceBeforeServices int64
	InstallationPrice   int64
	RemovalPrice        int64
	TotalPrice          int64
	Breakdown           PriceBreakdown
}

// CalculatePrice prices one shade from its dimensions and the resolved
// catalog inputs. Dimensions are millimeters; monetary amounts are whole
// currency units. The shade type's minimum price acts as a floor on the
// area-based price, never a ceiling. Deterministic for a fixed catalog
// snapshot.
func CalculatePrice(req PriceRequest, in PriceInputs) PriceQuote {
	area := (req.Width * req.Height) / 1_000_000
	basePrice := roundMoney(area * float64(in.PricePerSqm))
	priceBeforeServices := basePrice
	if in.MinPrice > priceBeforeServices {
		priceBeforeServices = in.MinPrice
	}

	var installationPrice, removalPrice int64
	if req.InstallationIncluded {
		installationPrice = in.InstallationPrice
	}
	if req.RemovalIncluded {
		removalPrice = in.RemovalPrice
	}

	areaFormatted := formatAmount(area)

	return PriceQuote{
		Area:                area,
		BasePrice:           basePrice,
		MinPrice:            in.MinPrice,
		PriceBeforeServices: priceBeforeServices,
		InstallationPrice:   installationPrice,
		RemovalPrice:        removalPrice,
		TotalPrice:          priceBeforeServices + installationPrice + removalPrice,
		Breakdown: PriceBreakdown{
			AreaCalculation:      fmt.Sprintf("%s x %s / 1000000 = %s м²", formatAmount(req.Width), formatAmount(req.Height), areaFormatted),
			BasePriceCalculation: fmt.Sprintf("%s м² x %s сум = %s сум", areaFormatted, formatAmount(float64(in.PricePerSqm)), formatAmount(float64(basePrice))),
			MinPriceApplied:      basePrice < in.MinPrice,
		},
	}
}

// roundMoney rounds to the nearest whole currency unit, half up.
func roundMoney(value float64) int64 {
	return int64(math.Floor(value + 0.5))
}

// formatAmount renders a number for breakdown strings, dropping trailing
// zero decimals (1.50 renders as 1.5, 1.00 as 1). Values are snapped to six
// decimal places first so millimeter dimensions never pick up float noise.
func formatAmount(value float64) string {
	snapped := math.Floor(value*1e6+0.5) / 1e6
	return strconv.FormatFloat(snapped, 'f', -1, 64)
}
