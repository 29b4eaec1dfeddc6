package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/promille/internal/domain"
	"github.com/hperssn/promille/internal/engine"
	"github.com/hperssn/promille/internal/platform/numeric"
)

// Sessions is the part of the engine the HTTP layer drives.
type Sessions interface {
	StartSession(profileID string) (engine.Result, error)
	EndSession(profileID string) (engine.Result, error)
	DeleteSession(sessionID string) (engine.Result, error)
	AddDrink(profileID string, d domain.DrinkEvent) (engine.Result, error)
	RemoveDrink(profileID, drinkID string) (engine.Result, error)
	AddFood(profileID string, f domain.FoodEvent) (engine.Result, error)
	RemoveFood(profileID, foodID string) (engine.Result, error)
	ActiveSession(profileID string) (engine.Result, error)
	History(profileID string) []engine.Result
	Subscribe(profileID string) (<-chan engine.Update, func())
}

type drinkRequest struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	VolumeMl     numeric.Number `json:"volumeMl"`
	ABV          numeric.Number `json:"abv"`
	AlcoholGrams numeric.Number `json:"alcoholGrams"`
	ConsumedAt   *time.Time     `json:"consumedAt"`
}

func (d drinkRequest) event() domain.DrinkEvent {
	e := domain.DrinkEvent{
		ID:           d.ID,
		Name:         d.Name,
		VolumeMl:     d.VolumeMl.Float(),
		ABV:          d.ABV.Float(),
		AlcoholGrams: d.AlcoholGrams.Float(),
	}
	if d.ConsumedAt != nil {
		e.ConsumedAt = d.ConsumedAt.UTC()
	}
	return e
}

// Upper bounds for a single serving.
const (
	maxVolumeMl     = 5000
	maxABV          = 100
	maxAlcoholGrams = 500
)

func (d drinkRequest) outOfRange() string {
	switch {
	case d.VolumeMl.Float() > maxVolumeMl:
		return fmt.Sprintf("volumeMl must be at most %d", maxVolumeMl)
	case d.ABV.Float() > maxABV:
		return fmt.Sprintf("abv must be at most %d", maxABV)
	case d.AlcoholGrams.Float() > maxAlcoholGrams:
		return fmt.Sprintf("alcoholGrams must be at most %d", maxAlcoholGrams)
	}
	return ""
}

type foodRequest struct {
	ID               string              `json:"id"`
	Category         domain.FoodCategory `json:"category"`
	Amount           domain.FoodAmount   `json:"amount"`
	AbsorptionFactor numeric.Number      `json:"absorptionFactor"`
	ConsumedAt       *time.Time          `json:"consumedAt"`
}

func (f foodRequest) event() domain.FoodEvent {
	e := domain.FoodEvent{
		ID:               f.ID,
		Category:         f.Category,
		Amount:           f.Amount,
		AbsorptionFactor: f.AbsorptionFactor.Float(),
	}
	if f.ConsumedAt != nil {
		e.ConsumedAt = f.ConsumedAt.UTC()
	}
	return e
}

// decode accepts an empty body as the zero request.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func startSession(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.StartSession(profileID(r))
		if err != nil {
			respondEngineError(w, err)
			return
		}

		status := http.StatusOK
		if res.Applied {
			status = http.StatusCreated
		}
		respondJSON(w, res, status)
	}
}

func getSession(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.ActiveSession(profileID(r))
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, res, http.StatusOK)
	}
}

func endSession(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.EndSession(profileID(r))
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, res, http.StatusOK)
	}
}

func deleteSession(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.DeleteSession(chi.URLParam(r, "sessionID")); err != nil {
			respondEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addDrink(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req drinkRequest
		if err := decode(r, &req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if !(req.VolumeMl.Float() > 0) && !(req.AlcoholGrams.Float() > 0) {
			respondError(w, "volumeMl must be positive", http.StatusBadRequest)
			return
		}
		if msg := req.outOfRange(); msg != "" {
			respondError(w, msg, http.StatusBadRequest)
			return
		}

		res, err := s.AddDrink(profileID(r), req.event())
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, res, http.StatusCreated)
	}
}

func removeDrink(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.RemoveDrink(profileID(r), chi.URLParam(r, "eventID"))
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, res, http.StatusOK)
	}
}

func addFood(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req foodRequest
		if err := decode(r, &req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Category == "" {
			respondError(w, "category is required", http.StatusBadRequest)
			return
		}

		res, err := s.AddFood(profileID(r), req.event())
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, res, http.StatusCreated)
	}
}

func removeFood(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.RemoveFood(profileID(r), chi.URLParam(r, "eventID"))
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, res, http.StatusOK)
	}
}

func getHistory(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, s.History(profileID(r)), http.StatusOK)
	}
}

func health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
