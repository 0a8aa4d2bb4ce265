package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dz-manifest-api/internal/models"
)

// PeriodArchiveSchema creates the closed-period archive table.
const PeriodArchiveSchema = `CREATE TABLE IF NOT EXISTS period_archives (
	period_id TEXT NOT NULL,
	instructor_id TEXT NOT NULL,
	instructor_name TEXT NOT NULL DEFAULT '',
	balance NUMERIC(12,2) NOT NULL,
	earnings NUMERIC(12,2) NOT NULL,
	jumps INTEGER NOT NULL,
	closed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (period_id, instructor_id)
)`

// PeriodArchiveRepository keeps an immutable Postgres copy of final balances.
type PeriodArchiveRepository struct {
	db *sqlx.DB
}

// NewPeriodArchiveRepository constructs the repository.
func NewPeriodArchiveRepository(db *sqlx.DB) *PeriodArchiveRepository {
	return &PeriodArchiveRepository{db: db}
}

// Archive inserts every line of a closed period in one transaction. Existing
// lines are never overwritten.
func (r *PeriodArchiveRepository) Archive(ctx context.Context, period models.Period) (err error) {
	if period.ClosedAt == nil {
		return fmt.Errorf("period %s is not closed", period.ID)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin period archive transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ids := make([]string, 0, len(period.FinalBalances))
	for id := range period.FinalBalances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	const query = `INSERT INTO period_archives (period_id, instructor_id, instructor_name, balance, earnings, jumps, closed_at)
VALUES (:period_id, :instructor_id, :instructor_name, :balance, :earnings, :jumps, :closed_at)
ON CONFLICT (period_id, instructor_id) DO NOTHING`
	for _, id := range ids {
		row := models.PeriodArchiveRow{PeriodID: period.ID, ClosedAt: period.ClosedAt.UTC(), InstructorTotals: period.FinalBalances[id]}
		row.InstructorID = id
		if _, err = tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("archive period %s instructor %s: %w", period.ID, id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit period archive: %w", err)
	}
	return nil
}

// ListByPeriod returns the archived lines of a period ordered by instructor.
func (r *PeriodArchiveRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.PeriodArchiveRow, error) {
	const query = `SELECT period_id, instructor_id, instructor_name, balance, earnings, jumps, closed_at
FROM period_archives WHERE period_id = $1 ORDER BY instructor_id`
	var rows []models.PeriodArchiveRow
	if err := r.db.SelectContext(ctx, &rows, query, periodID); err != nil {
		return nil, fmt.Errorf("list period archive: %w", err)
	}
	return rows, nil
}
