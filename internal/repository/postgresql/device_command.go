package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type commandRepository struct {
	db *database.DB
}

func NewCommandRepository(db *database.DB) device.CommandRepository {
	return &commandRepository{db: db}
}

const commandColumns = `
	id, tenant_id, device_id, command_type, payload, status, priority,
	response, created_at, sent_at, completed_at`

// Create implements device.CommandRepository.
func (r *commandRepository) Create(ctx context.Context, cmd device.DeviceCommand) (device.DeviceCommand, error) {
	q := GetQuerier(ctx, r.db)

	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Status == "" {
		cmd.Status = device.CommandPending
	}

	query := `
		INSERT INTO device_commands (
			id, tenant_id, device_id, command_type, payload, status, priority
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		cmd.ID, cmd.TenantID, cmd.DeviceID, cmd.CommandType, cmd.Payload,
		cmd.Status, cmd.Priority,
	).Scan(&cmd.CreatedAt)

	if err != nil {
		return device.DeviceCommand{}, fmt.Errorf("failed to create device command: %w", err)
	}
	return cmd, nil
}

// ListPending implements device.CommandRepository.
func (r *commandRepository) ListPending(ctx context.Context, deviceID string, limit int) ([]device.DeviceCommand, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + commandColumns + `
		FROM device_commands
		WHERE device_id = $1 AND status = $2
		ORDER BY priority DESC, created_at ASC
		LIMIT $3
	`

	rows, err := q.Query(ctx, query, deviceID, device.CommandPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending commands: %w", err)
	}
	defer rows.Close()

	var commands []device.DeviceCommand
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device command: %w", err)
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read device commands: %w", err)
	}
	return commands, nil
}

// NextForDelivery implements device.CommandRepository. The row is claimed
// with FOR UPDATE SKIP LOCKED so parallel check-ins from the same device
// never deliver one command twice.
func (r *commandRepository) NextForDelivery(ctx context.Context, deviceID string) (device.DeviceCommand, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE device_commands
		SET status = $3, sent_at = NOW()
		WHERE id = (
			SELECT id FROM device_commands
			WHERE device_id = $1 AND status = $2
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + commandColumns + `
	`

	cmd, err := scanCommand(q.QueryRow(ctx, query, deviceID, device.CommandPending, device.CommandSent))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return device.DeviceCommand{}, device.ErrNoPendingCommand
		}
		return device.DeviceCommand{}, fmt.Errorf("failed to claim next command: %w", err)
	}
	return cmd, nil
}

// LastSent implements device.CommandRepository.
func (r *commandRepository) LastSent(ctx context.Context, deviceID string) (device.DeviceCommand, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + commandColumns + `
		FROM device_commands
		WHERE device_id = $1 AND status = $2
		ORDER BY sent_at DESC
		LIMIT 1
	`

	cmd, err := scanCommand(q.QueryRow(ctx, query, deviceID, device.CommandSent))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return device.DeviceCommand{}, device.ErrCommandNotFound
		}
		return device.DeviceCommand{}, fmt.Errorf("failed to get last sent command: %w", err)
	}
	return cmd, nil
}

// GetByID implements device.CommandRepository.
func (r *commandRepository) GetByID(ctx context.Context, id string) (device.DeviceCommand, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + commandColumns + ` FROM device_commands WHERE id = $1`
	cmd, err := scanCommand(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return device.DeviceCommand{}, device.ErrCommandNotFound
		}
		return device.DeviceCommand{}, fmt.Errorf("failed to get command by ID: %w", err)
	}
	return cmd, nil
}

// Complete implements device.CommandRepository.
func (r *commandRepository) Complete(ctx context.Context, id string, success bool, response string) error {
	q := GetQuerier(ctx, r.db)

	status := device.CommandCompleted
	if !success {
		status = device.CommandFailed
	}

	tag, err := q.Exec(ctx, `
		UPDATE device_commands
		SET status = $2, response = $3, completed_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, status, response, device.CommandSent)

	if err != nil {
		return fmt.Errorf("failed to complete command: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return device.ErrCommandNotOpen
	}
	return nil
}

// ExpireStuckSent implements device.CommandRepository.
func (r *commandRepository) ExpireStuckSent(ctx context.Context, cutoff time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE device_commands
		SET status = $1, response = 'expired: no result from device', completed_at = NOW()
		WHERE status = $2 AND sent_at < $3
	`, device.CommandFailed, device.CommandSent, cutoff.UTC())

	if err != nil {
		return 0, fmt.Errorf("failed to expire stuck commands: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCommand(row pgx.Row) (device.DeviceCommand, error) {
	var cmd device.DeviceCommand
	err := row.Scan(
		&cmd.ID, &cmd.TenantID, &cmd.DeviceID, &cmd.CommandType, &cmd.Payload,
		&cmd.Status, &cmd.Priority, &cmd.Response, &cmd.CreatedAt, &cmd.SentAt,
		&cmd.CompletedAt,
	)
	return cmd, err
}
