package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/hperssn/promille/internal/domain"
)

// SQLiteRepository is the durable local cache.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := Migrate(ctx, db, goose.DialectSQLite3); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("SQLite session store ready at %s", dbPath)
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) SaveSession(ctx context.Context, record *SessionRecord) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active = excluded.active,
			end_reason = excluded.end_reason,
			ended_at = excluded.ended_at,
			current_bac = excluded.current_bac,
			max_bac = excluded.max_bac,
			status = excluded.status,
			sober_at = excluded.sober_at,
			legal_at = excluded.legal_at,
			degraded = excluded.degraded,
			computed_at = excluded.computed_at,
			drinks_json = excluded.drinks_json,
			foods_json = excluded.foods_json,
			series_json = excluded.series_json,
			updated_at = excluded.updated_at
	`

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

func (r *SQLiteRepository) GetActive(ctx context.Context, profileID string) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE profile_id = ? AND active = 1
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

func (r *SQLiteRepository) GetHistory(ctx context.Context, profileID string) ([]domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE profile_id = ? AND active = 0
		ORDER BY ended_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
