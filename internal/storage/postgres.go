package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/hperssn/promille/internal/domain"
)

// PostgresRepository is the optional remote store.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := Migrate(ctx, db, goose.DialectPostgres); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("Postgres session store ready")
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) SaveSession(ctx context.Context, record *SessionRecord) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			end_reason = EXCLUDED.end_reason,
			ended_at = EXCLUDED.ended_at,
			current_bac = EXCLUDED.current_bac,
			max_bac = EXCLUDED.max_bac,
			status = EXCLUDED.status,
			sober_at = EXCLUDED.sober_at,
			legal_at = EXCLUDED.legal_at,
			degraded = EXCLUDED.degraded,
			computed_at = EXCLUDED.computed_at,
			drinks_json = EXCLUDED.drinks_json,
			foods_json = EXCLUDED.foods_json,
			series_json = EXCLUDED.series_json,
			updated_at = EXCLUDED.updated_at
		WHERE sessions.updated_at <= EXCLUDED.updated_at
	`

	// JSON goes over the wire as text; lib/pq would encode []byte as bytea.
	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.ProfileID,
		record.Active,
		record.EndReason,
		record.StartedAt,
		record.EndedAt,
		record.CurrentBAC,
		record.MaxBAC,
		record.Status,
		record.SoberAt,
		record.LegalAt,
		record.Degraded,
		record.ComputedAt,
		record.DrinksJSON,
		record.FoodsJSON,
		record.SeriesJSON,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", record.ID, err)
	}
	return nil
}

func (r *PostgresRepository) GetActive(ctx context.Context, profileID string) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE profile_id = $1 AND active
		ORDER BY started_at DESC
		LIMIT 1
	`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, profileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.ToDomain()
}

func (r *PostgresRepository) GetHistory(ctx context.Context, profileID string) ([]domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE profile_id = $1 AND NOT active
		ORDER BY ended_at DESC NULLS LAST
	`

	rows, err := r.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
