package shipping

import "ryxel/internal/model"

// volumetricDivisor converts package volume to billable weight:
// one gram per 5000 cubic millimetres.
const volumetricDivisor = 5000

// BillableWeightGrams returns the billable weight of one unit of a
// variant: the larger of its actual weight and its volumetric weight
// length*width*height/5000.
func BillableWeightGrams(v model.Variant) int {
	volumetric := v.LengthMM * v.WidthMM * v.HeightMM / volumetricDivisor
	if volumetric > v.WeightGrams {
		return volumetric
	}
	return v.WeightGrams
}

// ShipmentWeightGrams sums billable weight over the requested line
// items. Quantities are keyed by variant ID.
func ShipmentWeightGrams(variants []model.Variant, quantities map[string]int) int {
	total := 0
	for _, v := range variants {
		total += BillableWeightGrams(v) * quantities[v.ID.String()]
	}
	return total
}
