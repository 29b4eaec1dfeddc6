package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hperssn/promille/internal/bac"
	"github.com/hperssn/promille/internal/config"
	"github.com/hperssn/promille/internal/domain"
	"github.com/hperssn/promille/internal/platform/numeric"
)

var estimateFlags struct {
	gender string
	weight string
	at     string
	drinks []string
	foods  []string
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Print a BAC estimate for drinks given on the command line",
	Example: `  promille estimate --gender male --weight 70 --drink 330:5@-1h --drink 40:40
  promille estimate --gender female --weight 58 --drink 500:5 --food full_meal:large@-30m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if estimateFlags.at != "" {
			if now, err = time.Parse(time.RFC3339, estimateFlags.at); err != nil {
				return fmt.Errorf("--at: %w", err)
			}
		}

		weight, _ := numeric.Parse(estimateFlags.weight)
		p := &domain.Profile{
			ID:       "cli",
			Gender:   domain.Gender(strings.ToLower(estimateFlags.gender)),
			WeightKg: weight,
		}

		model := bac.New(cfg.Calibration())
		s, err := buildSession(model, now, estimateFlags.drinks, estimateFlags.foods)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(model.Recompute(s, p, now), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	f := estimateCmd.Flags()
	f.StringVar(&estimateFlags.gender, "gender", "", "male or female")
	f.StringVar(&estimateFlags.weight, "weight", "", "body weight in kg")
	f.StringVar(&estimateFlags.at, "at", "", "evaluate at this RFC3339 instant instead of now")
	f.StringArrayVar(&estimateFlags.drinks, "drink", nil, "volumeMl:abv[@offset|@time], repeatable")
	f.StringArrayVar(&estimateFlags.foods, "food", nil, "category[:amount|:factor][@offset|@time], repeatable")
	rootCmd.AddCommand(estimateCmd)
}

func buildSession(model *bac.Model, now time.Time, drinks, foods []string) (*domain.Session, error) {
	s := domain.NewSession("", "cli", now)

	for i, spec := range drinks {
		d, err := parseDrink(spec, now)
		if err != nil {
			return nil, fmt.Errorf("--drink %q: %w", spec, err)
		}
		d.ID = fmt.Sprintf("drink-%d", i+1)
		d.AlcoholGrams = model.AlcoholGrams(d.VolumeMl, d.ABV)
		s.InsertDrink(d)
	}
	for i, spec := range foods {
		f, err := parseFood(spec, now)
		if err != nil {
			return nil, fmt.Errorf("--food %q: %w", spec, err)
		}
		f.ID = fmt.Sprintf("food-%d", i+1)
		s.InsertFood(f)
	}

	if len(s.Drinks) > 0 && s.Drinks[0].ConsumedAt.Before(s.StartedAt) {
		s.StartedAt = s.Drinks[0].ConsumedAt
	}
	return s, nil
}

// splitAt separates "body@when". when is a negative offset such as -45m or
// an RFC3339 instant; without it the event happens at now.
func splitAt(spec string, now time.Time) (string, time.Time, error) {
	body, when, ok := strings.Cut(spec, "@")
	if !ok {
		return body, now, nil
	}
	if d, err := time.ParseDuration(when); err == nil {
		if d > 0 {
			return "", time.Time{}, fmt.Errorf("offset %s is in the future", when)
		}
		return body, now.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, when)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid time %q", when)
	}
	if t.After(now) {
		t = now
	}
	return body, t.UTC(), nil
}

func parseDrink(spec string, now time.Time) (domain.DrinkEvent, error) {
	body, at, err := splitAt(spec, now)
	if err != nil {
		return domain.DrinkEvent{}, err
	}
	vol, abv, ok := strings.Cut(body, ":")
	if !ok {
		return domain.DrinkEvent{}, fmt.Errorf("expected volumeMl:abv")
	}
	v, ok := numeric.Parse(vol)
	if !ok || v <= 0 {
		return domain.DrinkEvent{}, fmt.Errorf("invalid volume %q", vol)
	}
	a, ok := numeric.Parse(abv)
	if !ok || a < 0 {
		return domain.DrinkEvent{}, fmt.Errorf("invalid abv %q", abv)
	}
	return domain.DrinkEvent{VolumeMl: v, ABV: a, ConsumedAt: at}, nil
}

func parseFood(spec string, now time.Time) (domain.FoodEvent, error) {
	body, at, err := splitAt(spec, now)
	if err != nil {
		return domain.FoodEvent{}, err
	}
	category, rest, _ := strings.Cut(body, ":")
	f := domain.FoodEvent{
		Category:   domain.FoodCategory(category),
		Amount:     domain.AmountMedium,
		ConsumedAt: at,
	}

	custom := 0.0
	switch domain.FoodAmount(rest) {
	case "":
	case domain.AmountSmall, domain.AmountMedium, domain.AmountLarge:
		f.Amount = domain.FoodAmount(rest)
	default:
		v, ok := numeric.Parse(rest)
		if !ok {
			return domain.FoodEvent{}, fmt.Errorf("invalid amount %q", rest)
		}
		custom = v
	}
	f.AbsorptionFactor = domain.AbsorptionFor(f.Category, f.Amount, custom)
	return f, nil
}
