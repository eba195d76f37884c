// Package ledger owns the per-category, per-date slot table: seeding the
// booking window, decrementing capacity across all categories at once, and
// the compensating reversal when a downstream step fails.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/internal/registry"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// Row is one ledger entry. Steady-state invariant: Booked + Left equals the
// slot cap and both stay non-negative.
type Row struct {
	Date   dates.Date
	Booked int
	Left   int
}

// Querier is the query surface shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB adds transaction support to Querier. Satisfied by *pgxpool.Pool and by
// pgxmock in tests.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service coordinates all ledger mutations. Callers are expected to hold the
// scheduler mutex around SeedWindow, DecrementAllCategories, and Revert;
// the mutex is what keeps the cross-category read phase consistent.
type Service struct {
	db        DB
	registry  *registry.Registry
	validator *dates.Validator
	slotCap   int
	logger    *logging.Logger
}

// NewService builds the ledger service.
func NewService(db DB, reg *registry.Registry, validator *dates.Validator, slotCap int, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		db:        db,
		registry:  reg,
		validator: validator,
		slotCap:   slotCap,
		logger:    logger,
	}
}

// SlotCap returns the configured per-date capacity.
func (s *Service) SlotCap() int {
	return s.slotCap
}

// SeedWindow prunes ledger rows outside [start, start+days] and inserts a
// fresh full-capacity row for every valid business date lacking one, for
// every category. Repeated calls change nothing.
func (s *Service) SeedWindow(ctx context.Context, start dates.Date, days int) error {
	end := start.AddDays(days)

	for _, cat := range s.registry.Categories() {
		tag, err := s.db.Exec(ctx,
			`DELETE FROM slot_ledger WHERE category_id = $1 AND (slot_date < $2 OR slot_date > $3)`,
			cat.ID, start.Time(time.UTC), end.Time(time.UTC))
		if err != nil {
			return fmt.Errorf("ledger: prune window for %s: %w", cat.ID, err)
		}
		if n := tag.RowsAffected(); n > 0 {
			s.logger.Info("ledger: pruned rows outside window", "category", cat.ID, "rows", n)
		}
	}

	for _, d := range dates.Range(start, days) {
		if !s.validator.IsValidBusinessDate(ctx, d) {
			continue
		}
		for _, cat := range s.registry.Categories() {
			if _, err := s.db.Exec(ctx,
				`INSERT INTO slot_ledger (category_id, slot_date, booked, left_count)
				 VALUES ($1, $2, 0, $3)
				 ON CONFLICT (category_id, slot_date) DO NOTHING`,
				cat.ID, d.Time(time.UTC), s.slotCap); err != nil {
				return fmt.Errorf("ledger: seed %s %s: %w", cat.ID, d, err)
			}
		}
	}
	return nil
}

// ReadWindow returns the rows for one category in [start, end], ordered by
// date.
func (s *Service) ReadWindow(ctx context.Context, categoryID string, start, end dates.Date) ([]Row, error) {
	rows, err := s.db.Query(ctx,
		`SELECT slot_date, booked, left_count FROM slot_ledger
		 WHERE category_id = $1 AND slot_date >= $2 AND slot_date <= $3
		 ORDER BY slot_date`,
		categoryID, start.Time(time.UTC), end.Time(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("ledger: read window for %s: %w", categoryID, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			day          time.Time
			booked, left int
		)
		if err := rows.Scan(&day, &booked, &left); err != nil {
			return nil, fmt.Errorf("ledger: scan row: %w", err)
		}
		out = append(out, Row{Date: dates.FromTime(day, time.UTC), Booked: booked, Left: left})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: read window for %s: %w", categoryID, err)
	}
	return out, nil
}

// MinLeft returns the smallest remaining count across categories for a date.
// Dates with no rows yet report full capacity.
func (s *Service) MinLeft(ctx context.Context, d dates.Date) (int, error) {
	var minLeft *int
	err := s.db.QueryRow(ctx,
		`SELECT MIN(left_count) FROM slot_ledger WHERE slot_date = $1`,
		d.Time(time.UTC)).Scan(&minLeft)
	if err != nil {
		return 0, fmt.Errorf("ledger: min left for %s: %w", d, err)
	}
	if minLeft == nil {
		return s.slotCap, nil
	}
	return *minLeft, nil
}

// WindowAvailability returns the min-left per date over [start, end] for
// dates that have ledger rows.
func (s *Service) WindowAvailability(ctx context.Context, start, end dates.Date) (map[string]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT slot_date, MIN(left_count) FROM slot_ledger
		 WHERE slot_date >= $1 AND slot_date <= $2
		 GROUP BY slot_date ORDER BY slot_date`,
		start.Time(time.UTC), end.Time(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("ledger: window availability: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			day  time.Time
			left int
		)
		if err := rows.Scan(&day, &left); err != nil {
			return nil, fmt.Errorf("ledger: scan availability: %w", err)
		}
		out[dates.FromTime(day, time.UTC).String()] = left
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: window availability: %w", err)
	}
	return out, nil
}
