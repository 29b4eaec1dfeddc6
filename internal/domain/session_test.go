package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func TestNewSessionGeneratesID(t *testing.T) {
	s := NewSession("", "p1", base)

	assert.NotEmpty(t, s.ID)
	assert.True(t, s.Active, "new session should be active")
	assert.Equal(t, StatusSafe, s.Status)

	assert.Equal(t, "fixed", NewSession("fixed", "p1", base).ID)
}

func TestInsertDrinkKeepsOrder(t *testing.T) {
	s := NewSession("s", "p", base)

	offsets := []int{30, 0, 90, 15, 30}
	for i, off := range offsets {
		s.InsertDrink(DrinkEvent{ID: string(rune('a' + i)), ConsumedAt: base.Add(time.Duration(off) * time.Minute)})
	}

	for i := 1; i < len(s.Drinks); i++ {
		require.False(t, s.Drinks[i].ConsumedAt.Before(s.Drinks[i-1].ConsumedAt), "drinks out of order at %d", i)
	}
	// equal timestamps keep insertion order
	assert.Equal(t, "a", s.Drinks[2].ID)
	assert.Equal(t, "e", s.Drinks[3].ID)
}

func TestRemoveEvents(t *testing.T) {
	s := NewSession("s", "p", base)
	s.InsertDrink(DrinkEvent{ID: "d1", ConsumedAt: base})
	s.InsertFood(FoodEvent{ID: "f1", ConsumedAt: base})

	assert.True(t, s.RemoveDrink("d1"))
	assert.False(t, s.RemoveDrink("d1"), "second removal should report false")
	assert.True(t, s.RemoveFood("f1"))
	assert.Empty(t, s.Foods)
}

func TestLastActivity(t *testing.T) {
	s := NewSession("s", "p", base)
	assert.True(t, s.LastActivity().Equal(base), "empty ledger should fall back to StartedAt")

	s.InsertDrink(DrinkEvent{ID: "d", ConsumedAt: base.Add(time.Hour)})
	s.InsertFood(FoodEvent{ID: "f", ConsumedAt: base.Add(2 * time.Hour)})
	assert.True(t, s.LastActivity().Equal(base.Add(2*time.Hour)), "LastActivity = %v", s.LastActivity())
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession("s", "p", base)
	s.InsertDrink(DrinkEvent{ID: "d", ConsumedAt: base})
	sober := base.Add(time.Hour)
	s.SoberAt = &sober

	c := s.Clone()
	c.Drinks[0].ID = "changed"
	*c.SoberAt = base

	assert.Equal(t, "d", s.Drinks[0].ID, "clone shares drink slice")
	assert.True(t, s.SoberAt.Equal(sober), "clone shares SoberAt pointer")
}

func TestAbsorptionFor(t *testing.T) {
	tests := []struct {
		name     string
		category FoodCategory
		amount   FoodAmount
		custom   float64
		expected float64
	}{
		{"medium full meal", FoodFullMeal, AmountMedium, 0, 0.7},
		{"small snack halves effect", FoodLightSnack, AmountSmall, 0, 0.95},
		{"large heavy meal", FoodHeavyMeal, AmountLarge, 0, 0.4},
		{"custom in range", FoodCustom, AmountMedium, 0.5, 0.5},
		{"custom zero means no effect", FoodCustom, AmountMedium, 0, 1},
		{"custom above one", FoodCustom, AmountMedium, 1.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AbsorptionFor(tt.category, tt.amount, tt.custom), 1e-9)
		})
	}
}

func TestStatusText(t *testing.T) {
	for s := StatusSafe; s <= StatusCritical; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	_, err := ParseStatus("tipsy")
	assert.Error(t, err)

	assert.True(t, StatusDanger.AtLeast(StatusWarning))
	assert.False(t, StatusCaution.AtLeast(StatusWarning))
}
