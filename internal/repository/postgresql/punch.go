package postgresql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/punch"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type punchRepository struct {
	db *database.DB
}

func NewPunchRepository(db *database.DB) punch.PunchStore {
	return &punchRepository{db: db}
}

// BulkInsert implements punch.PunchStore.
func (r *punchRepository) BulkInsert(ctx context.Context, records []punch.PunchRecord) (punch.BulkInsertResult, error) {
	result := punch.BulkInsertResult{Total: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO punch_records (
			id, device_address, employee_device_id, punched_at, calendar_date,
			punch_type, punch_mode, raw_payload, company_id, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (device_address, employee_device_id, punched_at, company_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, p := range records {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		ingestedAt := p.IngestedAt
		if ingestedAt.IsZero() {
			ingestedAt = time.Now().UTC()
		}
		var payload any
		if len(p.RawPayload) > 0 {
			payload = string(p.RawPayload)
		}
		batch.Queue(query,
			id,
			p.DeviceAddress,
			p.EmployeeDeviceID,
			p.Timestamp.UTC(),
			p.CalendarDate,
			p.PunchType,
			p.PunchMode,
			payload,
			p.CompanyID,
			ingestedAt,
		)
	}

	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		tag, err := br.Exec()
		if err != nil {
			return punch.BulkInsertResult{}, fmt.Errorf("failed to insert punch records: %w", err)
		}
		if tag.RowsAffected() == 1 {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if err := br.Close(); err != nil {
		return punch.BulkInsertResult{}, fmt.Errorf("failed to finish punch batch: %w", err)
	}

	return result, nil
}

// QueryRange implements punch.PunchStore.
func (r *punchRepository) QueryRange(ctx context.Context, filter punch.RangeFilter) ([]punch.PunchRecord, error) {
	q := GetQuerier(ctx, r.db)

	var (
		conditions = []string{"company_id = $1", "calendar_date >= $2", "calendar_date <= $3"}
		args       = []any{filter.CompanyID, filter.StartDate, filter.EndDate}
	)
	if filter.DeviceAddress != "" {
		args = append(args, filter.DeviceAddress)
		conditions = append(conditions, fmt.Sprintf("device_address = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT id, device_address, employee_device_id, punched_at, calendar_date,
			   punch_type, punch_mode, raw_payload, company_id, ingested_at
		FROM punch_records
		WHERE %s
		ORDER BY punched_at ASC, employee_device_id ASC
	`, strings.Join(conditions, " AND "))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query punch records: %w", err)
	}
	defer rows.Close()

	var records []punch.PunchRecord
	for rows.Next() {
		var p punch.PunchRecord
		if err := rows.Scan(
			&p.ID, &p.DeviceAddress, &p.EmployeeDeviceID, &p.Timestamp, &p.CalendarDate,
			&p.PunchType, &p.PunchMode, &p.RawPayload, &p.CompanyID, &p.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan punch record: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate punch records: %w", err)
	}

	return records, nil
}

// LastSyncInfo implements punch.PunchStore.
func (r *punchRepository) LastSyncInfo(ctx context.Context, deviceAddress string, companyID string) (*punch.LastSync, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT punched_at, ingested_at
		FROM punch_records
		WHERE device_address = $1 AND company_id = $2
		ORDER BY punched_at DESC
		LIMIT 1
	`

	var last punch.LastSync
	err := q.QueryRow(ctx, query, deviceAddress, companyID).Scan(&last.Timestamp, &last.IngestedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last sync info: %w", err)
	}

	last.Timestamp = last.Timestamp.UTC()
	last.IngestedAt = last.IngestedAt.UTC()
	return &last, nil
}

// Stats implements punch.PunchStore.
func (r *punchRepository) Stats(ctx context.Context, deviceAddress string, companyID string) (punch.Stats, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COUNT(*), MAX(ingested_at), MIN(punched_at), MAX(punched_at)
		FROM punch_records
		WHERE device_address = $1 AND company_id = $2
	`

	var stats punch.Stats
	err := q.QueryRow(ctx, query, deviceAddress, companyID).Scan(
		&stats.TotalPunches, &stats.LastSyncTime, &stats.OldestRecord, &stats.NewestRecord,
	)
	if err != nil {
		return punch.Stats{}, fmt.Errorf("failed to get punch stats: %w", err)
	}

	return stats, nil
}
