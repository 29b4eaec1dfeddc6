// Package bac estimates blood alcohol concentration with a single-compartment
// Widmark model. Every function is pure: results depend only on the inputs and
// the supplied instant.
package bac

import (
	"log"
	"math"
	"time"

	"github.com/hperssn/promille/internal/domain"
	"github.com/hperssn/promille/internal/platform/numeric"
)

type Model struct {
	cal Calibration
}

func New(cal Calibration) *Model {
	return &Model{cal: cal.withDefaults()}
}

func (m *Model) Calibration() Calibration {
	return m.cal
}

// AlcoholGrams converts a serving into grams of ethanol.
func (m *Model) AlcoholGrams(volumeMl, abv float64) float64 {
	volumeMl = numeric.NonNegative(volumeMl)
	abv = numeric.NonNegative(abv)
	if abv > 100 {
		abv = 100
	}
	return volumeMl * (abv / 100) * m.cal.EthanolDensity
}

// body is a profile reduced to the two model inputs.
type body struct {
	weightKg float64
	widmark  float64
	degraded bool
}

func (m *Model) bodyOf(p *domain.Profile) body {
	var b body
	weight := numeric.OrDefault(p.WeightKg, m.cal.DefaultWeightKg)
	if weight != p.WeightKg {
		log.Printf("WARN: profile %s has invalid weight %v, using %v kg", p.ID, p.WeightKg, weight)
		b.degraded = true
	}
	b.weightKg = weight

	switch p.Gender {
	case domain.GenderMale:
		b.widmark = m.cal.WidmarkMale
	case domain.GenderFemale:
		b.widmark = m.cal.WidmarkFemale
	default:
		// the lower ratio gives the higher estimate
		log.Printf("WARN: profile %s has unknown gender %q, using female distribution ratio", p.ID, p.Gender)
		b.widmark = m.cal.WidmarkFemale
		b.degraded = true
	}
	return b
}

// PeakBAC is the concentration grams would produce if fully absorbed at once.
// An invalid weight is replaced by the default weight and reported as degraded.
func (m *Model) PeakBAC(grams, weightKg float64, gender domain.Gender) (float64, bool) {
	b := m.bodyOf(&domain.Profile{Gender: gender, WeightKg: weightKg})
	return m.peak(grams, b), b.degraded
}

func (m *Model) peak(grams float64, b body) float64 {
	grams = numeric.NonNegative(grams)
	return grams / (b.weightKg * 1000 * b.widmark) * m.cal.UnitScale
}

// DecayedContribution applies linear elimination to a single peak.
func (m *Model) DecayedContribution(peak, hoursElapsed float64) float64 {
	peak = numeric.NonNegative(peak)
	hoursElapsed = numeric.NonNegative(hoursElapsed)
	return math.Max(0, peak-m.cal.EliminationRate*hoursElapsed)
}

// AbsorptionFactor is the smallest factor among foods eaten within FoodWindow
// before the drink or up to FoodGrace after it. Foods after at are ignored.
func (m *Model) AbsorptionFactor(foods []domain.FoodEvent, drinkAt, at time.Time) float64 {
	factor := 1.0
	from := drinkAt.Add(-m.cal.FoodWindow)
	to := drinkAt.Add(m.cal.FoodGrace)
	for _, f := range foods {
		if f.ConsumedAt.After(at) {
			break
		}
		if f.ConsumedAt.Before(from) || f.ConsumedAt.After(to) {
			continue
		}
		if f.AbsorptionFactor > 0 && f.AbsorptionFactor < factor {
			factor = f.AbsorptionFactor
		}
	}
	return factor
}

func (m *Model) bacAt(s *domain.Session, b body, at time.Time) float64 {
	total := 0.0
	for _, d := range s.Drinks {
		if d.ConsumedAt.After(at) {
			break
		}
		grams := d.AlcoholGrams
		if grams <= 0 {
			grams = m.AlcoholGrams(d.VolumeMl, d.ABV)
		}
		peak := m.peak(grams, b) * m.AbsorptionFactor(s.Foods, d.ConsumedAt, at)
		total += m.DecayedContribution(peak, at.Sub(d.ConsumedAt).Hours())
	}
	return total
}

// CurrentBAC sums the decayed contribution of every drink consumed up to now.
// A nil profile yields zero.
func (m *Model) CurrentBAC(s *domain.Session, p *domain.Profile, now time.Time) float64 {
	if p == nil || len(s.Drinks) == 0 {
		return 0
	}
	return m.bacAt(s, m.bodyOf(p), now)
}

// TimeSeries samples the BAC every SeriesStep from SeriesLead before the first
// drink through now. Each sample only sees events consumed at or before it.
func (m *Model) TimeSeries(s *domain.Session, p *domain.Profile, now time.Time) []domain.Sample {
	if p == nil {
		return []domain.Sample{}
	}
	return m.series(s, m.bodyOf(p), now)
}

// MaxSeriesSamples bounds a series; older grid points are dropped first.
const MaxSeriesSamples = 1000

func (m *Model) series(s *domain.Session, b body, now time.Time) []domain.Sample {
	if len(s.Drinks) == 0 {
		return []domain.Sample{}
	}
	start := s.Drinks[0].ConsumedAt.Add(-m.cal.SeriesLead)
	if start.After(now) {
		return []domain.Sample{}
	}

	n := int(now.Sub(start)/m.cal.SeriesStep) + 1
	if n > MaxSeriesSamples {
		start = start.Add(time.Duration(n-MaxSeriesSamples) * m.cal.SeriesStep)
		n = MaxSeriesSamples
	}
	out := make([]domain.Sample, 0, n+1)
	t := start
	for i := 0; i < n; i++ {
		out = append(out, domain.Sample{At: t, BAC: m.bacAt(s, b, t)})
		t = t.Add(m.cal.SeriesStep)
	}
	if last := out[len(out)-1].At; last.Before(now) {
		out = append(out, domain.Sample{At: now, BAC: m.bacAt(s, b, now)})
	}
	return out
}

// ProjectedZeroTime estimates when bac drops to zero, or nil when it is
// already at or below SoberThreshold.
func (m *Model) ProjectedZeroTime(bac float64, now time.Time) *time.Time {
	if !(bac > m.cal.SoberThreshold) {
		return nil
	}
	return m.project(bac, now)
}

// ProjectedThresholdTime estimates when bac falls to limit, or nil when it
// is already at or below it.
func (m *Model) ProjectedThresholdTime(bac, limit float64, now time.Time) *time.Time {
	if !(bac > limit) {
		return nil
	}
	return m.project(bac-limit, now)
}

// MaxProjection caps how far ahead a projection may land.
const MaxProjection = 7 * 24 * time.Hour

func (m *Model) project(excess float64, now time.Time) *time.Time {
	rate := m.cal.EliminationRate / m.cal.SafetyFactor
	offset := MaxProjection
	if hours := excess / rate; hours < MaxProjection.Hours() {
		offset = time.Duration(math.Round(hours*60)) * time.Minute
	}
	at := now.Add(offset)
	return &at
}

// Classify maps bac onto the status bands. A value equal to a threshold
// belongs to the band that threshold opens.
func (m *Model) Classify(bac float64) domain.Status {
	th := m.cal.Thresholds
	switch {
	case bac >= th.Critical:
		return domain.StatusCritical
	case bac >= th.Danger:
		return domain.StatusDanger
	case bac >= th.Warning:
		return domain.StatusWarning
	case bac >= th.Caution:
		return domain.StatusCaution
	default:
		return domain.StatusSafe
	}
}

// Recompute derives every BAC field of s at now. A nil profile produces a
// zero, degraded snapshot.
func (m *Model) Recompute(s *domain.Session, p *domain.Profile, now time.Time) domain.BacSnapshot {
	snap := domain.BacSnapshot{
		Status:     domain.StatusSafe,
		Series:     []domain.Sample{},
		ComputedAt: now,
	}
	if p == nil {
		snap.Degraded = true
		return snap
	}
	if len(s.Drinks) == 0 {
		return snap
	}

	b := m.bodyOf(p)
	snap.Degraded = b.degraded
	snap.Current = m.bacAt(s, b, now)
	snap.Series = m.series(s, b, now)
	snap.Max = snap.Current
	for _, sample := range snap.Series {
		if sample.BAC > snap.Max {
			snap.Max = sample.BAC
		}
	}
	snap.Status = m.Classify(snap.Current)
	snap.SoberAt = m.ProjectedZeroTime(snap.Current, now)
	snap.LegalAt = m.ProjectedThresholdTime(snap.Current, m.cal.LegalLimit, now)
	return snap
}
