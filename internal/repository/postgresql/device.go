package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type deviceRepository struct {
	db *database.DB
}

func NewDeviceRepository(db *database.DB) device.DeviceRepository {
	return &deviceRepository{db: db}
}

const deviceColumns = `
	id, tenant_id, serial_number, name, protocol, status, last_seen,
	is_active, created_at, updated_at`

// GetByID implements device.DeviceRepository.
func (r *deviceRepository) GetByID(ctx context.Context, id string) (device.Device, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	d, err := scanDevice(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return device.Device{}, device.ErrDeviceNotFound
		}
		return device.Device{}, fmt.Errorf("failed to get device by ID: %w", err)
	}
	return d, nil
}

// GetBySerial implements device.DeviceRepository. Serial numbers are what
// push terminals identify themselves with on check-in.
func (r *deviceRepository) GetBySerial(ctx context.Context, serial string) (device.Device, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE serial_number = $1`
	d, err := scanDevice(q.QueryRow(ctx, query, serial))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return device.Device{}, device.ErrDeviceNotFound
		}
		return device.Device{}, fmt.Errorf("failed to get device by serial: %w", err)
	}
	return d, nil
}

// ListActive implements device.DeviceRepository.
func (r *deviceRepository) ListActive(ctx context.Context, tenantID string) ([]device.Device, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY name ASC
	`

	rows, err := q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active devices: %w", err)
	}
	defer rows.Close()

	var devices []device.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read devices: %w", err)
	}
	return devices, nil
}

// TouchSeen implements device.DeviceRepository.
func (r *deviceRepository) TouchSeen(ctx context.Context, id string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		UPDATE devices
		SET status = 'online', last_seen = $2, updated_at = NOW()
		WHERE id = $1
	`, id, at.UTC())

	if err != nil {
		return fmt.Errorf("failed to touch device last seen: %w", err)
	}
	return nil
}

func scanDevice(row pgx.Row) (device.Device, error) {
	var d device.Device
	err := row.Scan(
		&d.ID, &d.TenantID, &d.SerialNumber, &d.Name, &d.Protocol, &d.Status,
		&d.LastSeen, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}
