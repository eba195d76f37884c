package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mvillareal/intake-scheduler/internal/dates"
)

// DecrementAllCategories books one slot on d in every category at once.
//
// Phase 1 reads (and lazily creates) each category's row under row locks and
// trips the overbooking guard before anything is written: a booking is never
// partially applied across categories. Phase 2 applies all writes inside the
// same transaction. The returned slice holds the resulting left counts in
// registry order.
func (s *Service) DecrementAllCategories(ctx context.Context, d dates.Date) ([]int, error) {
	if s.validator.IsHoliday(ctx, d) {
		return nil, ErrHolidayDate
	}
	if !s.validator.IsValidBusinessDate(ctx, d) {
		return nil, ErrInvalidDate
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: begin decrement: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	categories := s.registry.Categories()

	// Phase 1: read every category's row; abort before any write if one is
	// already empty.
	lefts := make([]int, len(categories))
	for i, cat := range categories {
		left, err := s.rowForUpdate(ctx, tx, cat.ID, d)
		if err != nil {
			return nil, err
		}
		if left <= 0 {
			return nil, ErrNoSlots
		}
		lefts[i] = left
	}

	// Phase 2: all guards passed, apply every write.
	for i, cat := range categories {
		if _, err := tx.Exec(ctx,
			`UPDATE slot_ledger
			 SET booked = booked + 1, left_count = GREATEST(left_count - 1, 0)
			 WHERE category_id = $1 AND slot_date = $2`,
			cat.ID, d.Time(time.UTC)); err != nil {
			return nil, fmt.Errorf("ledger: decrement %s %s: %w", cat.ID, d, err)
		}
		lefts[i]--
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ledger: commit decrement: %w", err)
	}
	return lefts, nil
}

// Revert undoes one decrement on d across every category, clamped to
// [0, cap]. Called when a downstream step fails after a successful
// decrement; this is compensating-transaction semantics, not atomicity
// between the ledger and the calendar.
func (s *Service) Revert(ctx context.Context, d dates.Date) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin revert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, cat := range s.registry.Categories() {
		if _, err := tx.Exec(ctx,
			`UPDATE slot_ledger
			 SET booked = GREATEST(booked - 1, 0), left_count = LEAST(left_count + 1, $3)
			 WHERE category_id = $1 AND slot_date = $2`,
			cat.ID, d.Time(time.UTC), s.slotCap); err != nil {
			return fmt.Errorf("ledger: revert %s %s: %w", cat.ID, d, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit revert: %w", err)
	}
	s.logger.Info("ledger: reverted decrement", "date", d.String())
	return nil
}

// rowForUpdate locks one category's row for d, creating it at full capacity
// on first reference, and returns its left count.
func (s *Service) rowForUpdate(ctx context.Context, tx pgx.Tx, categoryID string, d dates.Date) (int, error) {
	day := d.Time(time.UTC)
	if _, err := tx.Exec(ctx,
		`INSERT INTO slot_ledger (category_id, slot_date, booked, left_count)
		 VALUES ($1, $2, 0, $3)
		 ON CONFLICT (category_id, slot_date) DO NOTHING`,
		categoryID, day, s.slotCap); err != nil {
		return 0, fmt.Errorf("ledger: ensure row %s %s: %w", categoryID, d, err)
	}

	var left int
	if err := tx.QueryRow(ctx,
		`SELECT left_count FROM slot_ledger
		 WHERE category_id = $1 AND slot_date = $2 FOR UPDATE`,
		categoryID, day).Scan(&left); err != nil {
		return 0, fmt.Errorf("ledger: lock row %s %s: %w", categoryID, d, err)
	}
	return left, nil
}
