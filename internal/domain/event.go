package domain

import "time"

type DrinkEvent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	VolumeMl     float64   `json:"volumeMl"`
	ABV          float64   `json:"abv"`
	ConsumedAt   time.Time `json:"consumedAt"`
	AlcoholGrams float64   `json:"alcoholGrams"`
}

type FoodCategory string

const (
	FoodLightSnack FoodCategory = "light_snack"
	FoodSmallMeal  FoodCategory = "small_meal"
	FoodFullMeal   FoodCategory = "full_meal"
	FoodHeavyMeal  FoodCategory = "heavy_meal"
	FoodCustom     FoodCategory = "custom"
)

type FoodAmount string

const (
	AmountSmall  FoodAmount = "small"
	AmountMedium FoodAmount = "medium"
	AmountLarge  FoodAmount = "large"
)

type FoodEvent struct {
	ID               string       `json:"id"`
	Category         FoodCategory `json:"category"`
	Amount           FoodAmount   `json:"amount"`
	ConsumedAt       time.Time    `json:"consumedAt"`
	AbsorptionFactor float64      `json:"absorptionFactor"`
}

var baseAbsorption = map[FoodCategory]float64{
	FoodLightSnack: 0.9,
	FoodSmallMeal:  0.8,
	FoodFullMeal:   0.7,
	FoodHeavyMeal:  0.6,
}

// AbsorptionFor returns the factor for a category and amount. A small portion
// halves the food's effect, a large one adds half again. Custom and unknown
// categories return custom clamped into (0,1], with 1 meaning no effect.
func AbsorptionFor(category FoodCategory, amount FoodAmount, custom float64) float64 {
	base, ok := baseAbsorption[category]
	if !ok {
		return clampFactor(custom)
	}

	effect := 1 - base
	switch amount {
	case AmountSmall:
		effect *= 0.5
	case AmountLarge:
		effect *= 1.5
	}
	return clampFactor(1 - effect)
}

func clampFactor(f float64) float64 {
	// NaN fails both comparisons below, so check it explicitly.
	if f != f || f <= 0 || f > 1 {
		return 1
	}
	return f
}
