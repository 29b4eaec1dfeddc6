package bac

import "time"

// Thresholds are the lower bounds of each status band above safe, ascending.
type Thresholds struct {
	Caution  float64
	Warning  float64
	Danger   float64
	Critical float64
}

// Calibration holds every constant of the model. UnitScale converts grams of
// ethanol per gram of body-water-weighted mass into the displayed unit; the
// default of 100 yields g/100 mL, to which EliminationRate and the thresholds
// are expressed.
type Calibration struct {
	EthanolDensity  float64
	WidmarkMale     float64
	WidmarkFemale   float64
	DefaultWeightKg float64
	UnitScale       float64
	EliminationRate float64
	SafetyFactor    float64
	SoberThreshold  float64
	LegalLimit      float64
	Thresholds      Thresholds
	SeriesStep      time.Duration
	SeriesLead      time.Duration
	FoodWindow      time.Duration
	FoodGrace       time.Duration
}

func DefaultCalibration() Calibration {
	return Calibration{
		EthanolDensity:  0.789,
		WidmarkMale:     0.68,
		WidmarkFemale:   0.55,
		DefaultWeightKg: 70,
		UnitScale:       100,
		EliminationRate: 0.015,
		SafetyFactor:    1.05,
		SoberThreshold:  0.01,
		LegalLimit:      0.05,
		Thresholds: Thresholds{
			Caution:  0.02,
			Warning:  0.05,
			Danger:   0.08,
			Critical: 0.15,
		},
		SeriesStep: 15 * time.Minute,
		SeriesLead: 30 * time.Minute,
		FoodWindow: 6 * time.Hour,
		FoodGrace:  30 * time.Minute,
	}
}

// withDefaults fills zero or negative fields from DefaultCalibration.
func (c Calibration) withDefaults() Calibration {
	d := DefaultCalibration()
	pick := func(v *float64, def float64) {
		if !(*v > 0) {
			*v = def
		}
	}
	pick(&c.EthanolDensity, d.EthanolDensity)
	pick(&c.WidmarkMale, d.WidmarkMale)
	pick(&c.WidmarkFemale, d.WidmarkFemale)
	pick(&c.DefaultWeightKg, d.DefaultWeightKg)
	pick(&c.UnitScale, d.UnitScale)
	pick(&c.EliminationRate, d.EliminationRate)
	pick(&c.SafetyFactor, d.SafetyFactor)
	pick(&c.SoberThreshold, d.SoberThreshold)
	pick(&c.LegalLimit, d.LegalLimit)
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = d.Thresholds
	}
	if c.SeriesStep <= 0 {
		c.SeriesStep = d.SeriesStep
	}
	if c.SeriesLead < 0 {
		c.SeriesLead = d.SeriesLead
	}
	if c.FoodWindow <= 0 {
		c.FoodWindow = d.FoodWindow
	}
	if c.FoodGrace < 0 {
		c.FoodGrace = d.FoodGrace
	}
	return c
}
