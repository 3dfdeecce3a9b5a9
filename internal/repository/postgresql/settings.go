package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type settingsRepository struct {
	db *database.DB
}

func NewSettingsRepository(db *database.DB) settings.SettingsRepository {
	return &settingsRepository{db: db}
}

const settingsColumns = `
	id, company_id, version, use_custom_cutoff, cutoff_time, grace_minutes,
	count_weekends, use_device_defaults, device_port, is_active, created_by, created_at
`

func scanSettings(row pgx.Row) (settings.AttendanceSettings, error) {
	var s settings.AttendanceSettings
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.Version, &s.UseCustomCutoff, &s.CutoffTime, &s.GraceMinutes,
		&s.CountWeekends, &s.UseDeviceDefaults, &s.DevicePort, &s.IsActive, &s.CreatedBy, &s.CreatedAt,
	)
	return s, err
}

// GetActive implements settings.SettingsRepository.
func (r *settingsRepository) GetActive(ctx context.Context, companyID string) (settings.AttendanceSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + settingsColumns + `
		FROM attendance_settings
		WHERE company_id = $1 AND is_active
	`

	s, err := scanSettings(q.QueryRow(ctx, query, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return settings.AttendanceSettings{}, settings.ErrSettingsNotFound
		}
		return settings.AttendanceSettings{}, fmt.Errorf("failed to get active settings: %w", err)
	}
	return s, nil
}

// ReplaceActive implements settings.SettingsRepository.
//
// Concurrent updates of one company serialize on an advisory lock, so the
// version sequence has no gaps and at most one row is active.
func (r *settingsRepository) ReplaceActive(ctx context.Context, s settings.AttendanceSettings) (settings.AttendanceSettings, error) {
	var created settings.AttendanceSettings

	err := WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.CompanyID); err != nil {
			return fmt.Errorf("failed to lock settings: %w", err)
		}

		var version int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM attendance_settings WHERE company_id = $1`,
			s.CompanyID,
		).Scan(&version); err != nil {
			return fmt.Errorf("failed to read settings version: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE attendance_settings SET is_active = false WHERE company_id = $1 AND is_active`,
			s.CompanyID,
		); err != nil {
			return fmt.Errorf("failed to deactivate settings: %w", err)
		}

		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now().UTC()
		}
		s.Version = version + 1
		s.IsActive = true

		query := `
			INSERT INTO attendance_settings (` + settingsColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING ` + settingsColumns

		row := tx.QueryRow(ctx, query,
			s.ID, s.CompanyID, s.Version, s.UseCustomCutoff, s.CutoffTime, s.GraceMinutes,
			s.CountWeekends, s.UseDeviceDefaults, s.DevicePort, s.IsActive, s.CreatedBy, s.CreatedAt,
		)
		var err error
		if created, err = scanSettings(row); err != nil {
			return fmt.Errorf("failed to insert settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return settings.AttendanceSettings{}, err
	}

	return created, nil
}

// ListHistory implements settings.SettingsRepository.
func (r *settingsRepository) ListHistory(ctx context.Context, companyID string, limit int) ([]settings.AttendanceSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + settingsColumns + `
		FROM attendance_settings
		WHERE company_id = $1
		ORDER BY version DESC
		LIMIT $2
	`

	rows, err := q.Query(ctx, query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings history: %w", err)
	}
	defer rows.Close()

	var history []settings.AttendanceSettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settings: %w", err)
		}
		history = append(history, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings history: %w", err)
	}

	return history, nil
}
