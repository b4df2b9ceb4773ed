package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/calclog"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const runLogColumns = `run_id, company_id, period_year, period_month, process_type, status,
			total_employees, processed, succeeded, failed, skipped, error_message,
			started_at, finished_at`

type runLogRepository struct {
	db *database.DB
}

func NewRunLogRepository(db *database.DB) calclog.RunLogRepository {
	return &runLogRepository{db: db}
}

// Create implements calclog.RunLogRepository.
func (r *runLogRepository) Create(ctx context.Context, log calclog.RunLog) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO payroll_run_logs (
			run_id, company_id, period_year, period_month, process_type, status,
			total_employees, processed, succeeded, failed, skipped, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0, 0, $8)
	`,
		log.RunID, log.CompanyID, log.Period.Year, log.Period.Month, log.ProcessType, log.Status,
		log.TotalEmployees, log.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run log: %w", err)
	}
	return nil
}

// Finish implements calclog.RunLogRepository. started_at is kept from Create.
func (r *runLogRepository) Finish(ctx context.Context, log calclog.RunLog) error {
	q := GetQuerier(ctx, r.db)

	var runID string
	err := q.QueryRow(ctx, `
		UPDATE payroll_run_logs
		SET status = $2,
			total_employees = $3,
			processed = $4,
			succeeded = $5,
			failed = $6,
			skipped = $7,
			error_message = $8,
			finished_at = $9
		WHERE run_id = $1
		RETURNING run_id
	`,
		log.RunID, log.Status, log.TotalEmployees, log.Processed, log.Succeeded, log.Failed,
		log.Skipped, log.ErrorMessage, log.FinishedAt,
	).Scan(&runID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("run %s: %w", log.RunID, calclog.ErrRunLogNotFound)
		}
		return fmt.Errorf("failed to finish run log: %w", err)
	}
	return nil
}

// GetByRunID implements calclog.RunLogRepository.
func (r *runLogRepository) GetByRunID(ctx context.Context, companyID, runID string) (calclog.RunLog, error) {
	q := GetQuerier(ctx, r.db)

	l, err := scanRunLog(q.QueryRow(ctx, `
		SELECT `+runLogColumns+`
		FROM payroll_run_logs
		WHERE run_id = $1 AND company_id = $2
	`, runID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calclog.RunLog{}, calclog.ErrRunLogNotFound
		}
		return calclog.RunLog{}, fmt.Errorf("failed to get run log: %w", err)
	}
	return l, nil
}

// ListByCompany implements calclog.RunLogRepository.
func (r *runLogRepository) ListByCompany(ctx context.Context, companyID string, filter calclog.ListFilter) ([]calclog.RunLog, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT `+runLogColumns+`
		FROM payroll_run_logs
		WHERE company_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY started_at DESC, run_id DESC
		LIMIT $3
	`, companyID, string(filter.Status), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	defer rows.Close()

	logs := []calclog.RunLog{}
	for rows.Next() {
		l, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return logs, nil
}

// CountByStatus implements calclog.RunLogRepository.
func (r *runLogRepository) CountByStatus(ctx context.Context, companyID string) (map[calclog.Status]int, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT status, COUNT(*)
		FROM payroll_run_logs
		WHERE company_id = $1
		GROUP BY status
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count run logs: %w", err)
	}
	defer rows.Close()

	counts := make(map[calclog.Status]int)
	for rows.Next() {
		var (
			status calclog.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan run log count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count run logs: %w", err)
	}
	return counts, nil
}

func scanRunLog(row pgx.Row) (calclog.RunLog, error) {
	var l calclog.RunLog
	err := row.Scan(
		&l.RunID, &l.CompanyID, &l.Period.Year, &l.Period.Month, &l.ProcessType, &l.Status,
		&l.TotalEmployees, &l.Processed, &l.Succeeded, &l.Failed, &l.Skipped, &l.ErrorMessage,
		&l.StartedAt, &l.FinishedAt,
	)
	return l, err
}

// MarkStale implements calclog.RunLogRepository.
func (r *runLogRepository) MarkStale(ctx context.Context, olderThan time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE payroll_run_logs
		SET status = $1, error_message = $2, finished_at = NOW()
		WHERE status = $3 AND started_at < $4
	`, calclog.StatusError, "run abandoned while processing", calclog.StatusProcessing, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
