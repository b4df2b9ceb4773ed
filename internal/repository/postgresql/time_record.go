package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/timerecord"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
)

type timeRecordRepositoryImpl struct {
	db *database.DB
}

func NewTimeRecordRepository(db *database.DB) timerecord.Repository {
	return &timeRecordRepositoryImpl{db: db}
}

// ListByEmployeePeriod implements timerecord.Repository.
func (r *timeRecordRepositoryImpl) ListByEmployeePeriod(ctx context.Context, employeeID string, from, to time.Time) ([]timerecord.TimeRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT employee_id, recorded_at, kind
		FROM time_records
		WHERE employee_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at, id
	`

	rows, err := q.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list time records: %w", err)
	}
	defer rows.Close()

	var records []timerecord.TimeRecord
	for rows.Next() {
		var rec timerecord.TimeRecord
		if err := rows.Scan(&rec.EmployeeID, &rec.Timestamp, &rec.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan time record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time records: %w", err)
	}

	return records, nil
}
