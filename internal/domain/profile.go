package domain

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type DrinkingFrequency string

const (
	FrequencyNever        DrinkingFrequency = "never"
	FrequencyOccasionally DrinkingFrequency = "occasionally"
	FrequencyWeekly       DrinkingFrequency = "weekly"
	FrequencyDaily        DrinkingFrequency = "daily"
)

// Profile holds the body attributes the model reads. The core never mutates it.
type Profile struct {
	ID                string            `json:"id"`
	Name              string            `json:"name,omitempty"`
	Gender            Gender            `json:"gender"`
	WeightKg          float64           `json:"weightKg"`
	Age               int               `json:"age"`
	HeightCm          int               `json:"heightCm"`
	DrinkingFrequency DrinkingFrequency `json:"drinkingFrequency,omitempty"`
}
