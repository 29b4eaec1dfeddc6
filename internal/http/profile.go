package httpapi

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/promille/internal/domain"
)

type contextKey string

const profileKey contextKey = "profile"

// ProfileLookup resolves a profile id from the URL.
type ProfileLookup interface {
	Get(profileID string) (domain.Profile, bool)
}

// ProfileMiddleware rejects requests for unknown profiles and stores the
// profile on the request context.
func ProfileMiddleware(profiles ProfileLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "profileID")

			p, ok := profiles.Get(id)
			if !ok {
				log.Printf("Request for unknown profile %q", id)
				respondError(w, "profile not found", http.StatusNotFound)
				return
			}

			ctx := context.WithValue(r.Context(), profileKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ProfileFrom(r *http.Request) (domain.Profile, bool) {
	p, ok := r.Context().Value(profileKey).(domain.Profile)
	return p, ok
}

func profileID(r *http.Request) string {
	if p, ok := ProfileFrom(r); ok {
		return p.ID
	}
	return chi.URLParam(r, "profileID")
}
