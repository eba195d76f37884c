package requests

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mvillareal/intake-scheduler/internal/dates"
)

// DB is the pgx surface the repository needs. Satisfied by *pgxpool.Pool
// and by pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores intake submissions in the relational database.
type Repository struct {
	db DB
}

// NewRepository initializes a repo backed by pgx.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, category_id, last_name, first_name, purok, barangay, chosen_date, submitted_at`

// Insert stores a new submission and returns it with its generated ID.
func (r *Repository) Insert(ctx context.Context, req Request) (Request, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO appointment_requests
		 (id, category_id, last_name, first_name, purok, barangay, chosen_date, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.CategoryID, req.LastName, req.FirstName, req.Purok, req.Barangay,
		req.Date.Time(time.UTC), req.SubmittedAt)
	if err != nil {
		return Request{}, fmt.Errorf("requests: insert: %w", err)
	}
	return req, nil
}

// ListByCategory returns every submission for one category, oldest first.
func (r *Repository) ListByCategory(ctx context.Context, categoryID string) ([]Request, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM appointment_requests
		 WHERE category_id = $1 ORDER BY submitted_at`,
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("requests: list by category: %w", err)
	}
	return scanAll(rows)
}

// ListByDate returns every submission choosing the given date, across all
// categories, oldest first.
func (r *Repository) ListByDate(ctx context.Context, d dates.Date) ([]Request, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM appointment_requests
		 WHERE chosen_date = $1 ORDER BY submitted_at`,
		d.Time(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("requests: list by date: %w", err)
	}
	return scanAll(rows)
}

// DeleteOlderThan removes submissions whose submission timestamp predates
// cutoff, regardless of their chosen date. Returns the number removed.
func (r *Repository) DeleteOlderThan(ctx context.Context, categoryID string, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM appointment_requests WHERE category_id = $1 AND submitted_at < $2`,
		categoryID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("requests: delete older than: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByID removes one submission. Used by the incremental path to unwind
// a booking whose calendar write failed.
func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM appointment_requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("requests: delete by id: %w", err)
	}
	return nil
}

// Count returns the total number of stored submissions.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointment_requests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("requests: count: %w", err)
	}
	return n, nil
}

func scanAll(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	var out []Request
	for rows.Next() {
		var (
			req Request
			day time.Time
		)
		if err := rows.Scan(&req.ID, &req.CategoryID, &req.LastName, &req.FirstName,
			&req.Purok, &req.Barangay, &day, &req.SubmittedAt); err != nil {
			return nil, fmt.Errorf("requests: scan: %w", err)
		}
		req.Date = dates.FromTime(day, time.UTC)
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("requests: rows: %w", err)
	}
	return out, nil
}
