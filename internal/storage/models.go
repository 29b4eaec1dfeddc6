package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hperssn/promille/internal/domain"
)

// SessionRecord is the row shape shared by both repositories. Event lists and
// the series travel as JSON.
type SessionRecord struct {
	ID         string
	ProfileID  string
	Active     bool
	EndReason  string
	StartedAt  time.Time
	EndedAt    sql.NullTime
	CurrentBAC float64
	MaxBAC     float64
	Status     string
	SoberAt    sql.NullTime
	LegalAt    sql.NullTime
	Degraded   bool
	ComputedAt time.Time
	DrinksJSON string
	FoodsJSON  string
	SeriesJSON string
	UpdatedAt  time.Time
}

// FromDomainSession converts a domain.Session to a SessionRecord. active
// overrides the session flag so a caller can persist the state it observed.
func FromDomainSession(s *domain.Session, active bool) (*SessionRecord, error) {
	drinks, err := marshalList(s.Drinks)
	if err != nil {
		return nil, fmt.Errorf("encode drinks: %w", err)
	}
	foods, err := marshalList(s.Foods)
	if err != nil {
		return nil, fmt.Errorf("encode foods: %w", err)
	}
	series, err := marshalList(s.Series)
	if err != nil {
		return nil, fmt.Errorf("encode series: %w", err)
	}

	return &SessionRecord{
		ID:         s.ID,
		ProfileID:  s.ProfileID,
		Active:     active,
		EndReason:  string(s.EndReason),
		StartedAt:  s.StartedAt.UTC(),
		EndedAt:    nullTime(s.EndedAt),
		CurrentBAC: s.CurrentBAC,
		MaxBAC:     s.MaxBAC,
		Status:     s.Status.String(),
		SoberAt:    nullTime(s.SoberAt),
		LegalAt:    nullTime(s.LegalAt),
		Degraded:   s.Degraded,
		ComputedAt: s.ComputedAt.UTC(),
		DrinksJSON: drinks,
		FoodsJSON:  foods,
		SeriesJSON: series,
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

// ToDomain rebuilds the session a record was made from.
func (r *SessionRecord) ToDomain() (*domain.Session, error) {
	s := domain.NewSession(r.ID, r.ProfileID, r.StartedAt.UTC())
	s.Active = r.Active
	s.EndReason = domain.EndReason(r.EndReason)
	s.EndedAt = timePtr(r.EndedAt)
	s.CurrentBAC = r.CurrentBAC
	s.MaxBAC = r.MaxBAC
	s.SoberAt = timePtr(r.SoberAt)
	s.LegalAt = timePtr(r.LegalAt)
	s.Degraded = r.Degraded
	s.ComputedAt = r.ComputedAt.UTC()

	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", r.ID, err)
	}
	s.Status = status

	if err := json.Unmarshal([]byte(r.DrinksJSON), &s.Drinks); err != nil {
		return nil, fmt.Errorf("session %s: decode drinks: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.FoodsJSON), &s.Foods); err != nil {
		return nil, fmt.Errorf("session %s: decode foods: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.SeriesJSON), &s.Series); err != nil {
		return nil, fmt.Errorf("session %s: decode series: %w", r.ID, err)
	}
	return s, nil
}

// marshalList never writes null so the NOT NULL columns always decode to a slice.
func marshalList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}

const sessionColumns = `id, profile_id, active, end_reason, started_at, ended_at, current_bac, max_bac,
	status, sober_at, legal_at, degraded, computed_at, drinks_json, foods_json, series_json, updated_at`

func scanRecord(row rowScanner) (*SessionRecord, error) {
	var r SessionRecord
	err := row.Scan(
		&r.ID,
		&r.ProfileID,
		&r.Active,
		&r.EndReason,
		&r.StartedAt,
		&r.EndedAt,
		&r.CurrentBAC,
		&r.MaxBAC,
		&r.Status,
		&r.SoberAt,
		&r.LegalAt,
		&r.Degraded,
		&r.ComputedAt,
		&r.DrinksJSON,
		&r.FoodsJSON,
		&r.SeriesJSON,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanSessions(rows *sql.Rows) ([]domain.Session, error) {
	sessions := []domain.Session{}

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		s, err := record.ToDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}

	return sessions, rows.Err()
}
