package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(s Sessions, profiles ProfileLookup) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health)

	r.Route("/profiles/{profileID}", func(r chi.Router) {
		r.Use(ProfileMiddleware(profiles))

		r.Post("/session", startSession(s))
		r.Get("/session", getSession(s))
		r.Post("/session/end", endSession(s))
		r.Post("/session/drinks", addDrink(s))
		r.Delete("/session/drinks/{eventID}", removeDrink(s))
		r.Post("/session/foods", addFood(s))
		r.Delete("/session/foods/{eventID}", removeFood(s))
		r.Get("/history", getHistory(s))
		r.Get("/events", StreamSessionEvents(s))
		r.Get("/ws", StreamSessionSocket(s))
	})

	r.Delete("/sessions/{sessionID}", deleteSession(s))

	return r
}
