package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/punch"
	"github.com/apextime/attendance-backend-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type rawEventRepository struct {
	db *database.DB
}

func NewRawEventRepository(db *database.DB) punch.RawEventRepository {
	return &rawEventRepository{db: db}
}

const rawEventColumns = `
	id, tenant_id, device_id, device_user_token, punch_time, direction,
	raw_payload, processed, seq, created_at, processed_at`

// Upsert implements punch.RawEventRepository. The composite unique index on
// (device_id, device_user_token, punch_time, tenant_id) makes re-delivery of
// the same physical event a no-op; xmax = 0 distinguishes a fresh insert.
func (r *rawEventRepository) Upsert(ctx context.Context, event punch.RawPunchEvent) (bool, error) {
	q := GetQuerier(ctx, r.db)

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	query := `
		INSERT INTO raw_punch_events (
			id, tenant_id, device_id, device_user_token, punch_time,
			direction, raw_payload, processed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, false)
		ON CONFLICT (device_id, device_user_token, punch_time, tenant_id)
		DO UPDATE SET device_user_token = EXCLUDED.device_user_token
		RETURNING (xmax = 0)
	`

	var inserted bool
	err := q.QueryRow(ctx, query,
		event.ID,
		event.TenantID,
		event.DeviceID,
		event.DeviceUserToken,
		event.PunchTime.UTC(),
		event.Direction,
		event.RawPayload,
	).Scan(&inserted)

	if err != nil {
		return false, fmt.Errorf("failed to upsert raw punch event: %w", err)
	}

	return inserted, nil
}

// ListUnprocessed implements punch.RawEventRepository.
func (r *rawEventRepository) ListUnprocessed(ctx context.Context, tenantID string, limit int) ([]punch.RawPunchEvent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + rawEventColumns + `
		FROM raw_punch_events
		WHERE tenant_id = $1
		  AND processed = false
		ORDER BY seq ASC
		LIMIT $2
	`

	rows, err := q.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed events: %w", err)
	}
	defer rows.Close()

	return scanRawEvents(rows)
}

// ListByTokensInWindow implements punch.RawEventRepository.
func (r *rawEventRepository) ListByTokensInWindow(ctx context.Context, tenantID string, tokens []string, from, to time.Time) ([]punch.RawPunchEvent, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + rawEventColumns + `
		FROM raw_punch_events
		WHERE tenant_id = $1
		  AND device_user_token = ANY($2)
		  AND punch_time >= $3 AND punch_time < $4
		ORDER BY punch_time ASC, seq ASC
	`

	rows, err := q.Query(ctx, query, tenantID, tokens, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list events by tokens: %w", err)
	}
	defer rows.Close()

	return scanRawEvents(rows)
}

// ListInWindow implements punch.RawEventRepository.
func (r *rawEventRepository) ListInWindow(ctx context.Context, tenantID string, from, to time.Time) ([]punch.RawPunchEvent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + rawEventColumns + `
		FROM raw_punch_events
		WHERE tenant_id = $1
		  AND punch_time >= $2 AND punch_time < $3
		ORDER BY punch_time ASC, seq ASC
	`

	rows, err := q.Query(ctx, query, tenantID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list events in window: %w", err)
	}
	defer rows.Close()

	return scanRawEvents(rows)
}

// MarkProcessed implements punch.RawEventRepository.
func (r *rawEventRepository) MarkProcessed(ctx context.Context, tenantID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE raw_punch_events
		SET processed = true, processed_at = NOW()
		WHERE tenant_id = $1 AND id = ANY($2)
	`

	if _, err := q.Exec(ctx, query, tenantID, ids); err != nil {
		return fmt.Errorf("failed to mark events processed: %w", err)
	}
	return nil
}

// ResetProcessed implements punch.RawEventRepository.
func (r *rawEventRepository) ResetProcessed(ctx context.Context, tenantID string, from, to time.Time, tokens []string) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE raw_punch_events
		SET processed = false, processed_at = NULL
		WHERE tenant_id = $1
		  AND punch_time >= $2 AND punch_time < $3
	`
	args := []interface{}{tenantID, from.UTC(), to.UTC()}

	if len(tokens) > 0 {
		query += " AND device_user_token = ANY($4)"
		args = append(args, tokens)
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to reset processed flags: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List implements punch.RawEventRepository.
func (r *rawEventRepository) List(ctx context.Context, tenantID string, filter punch.Filter) ([]punch.RawPunchEvent, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseWhere := "tenant_id = $1"
	args := []interface{}{tenantID}
	argIdx := 2

	if filter.DeviceID != nil && *filter.DeviceID != "" {
		baseWhere += fmt.Sprintf(" AND device_id = $%d", argIdx)
		args = append(args, *filter.DeviceID)
		argIdx++
	}
	if filter.Token != nil && *filter.Token != "" {
		baseWhere += fmt.Sprintf(" AND device_user_token = $%d", argIdx)
		args = append(args, *filter.Token)
		argIdx++
	}
	if filter.StartTime != nil {
		baseWhere += fmt.Sprintf(" AND punch_time >= $%d", argIdx)
		args = append(args, filter.StartTime.UTC())
		argIdx++
	}
	if filter.EndTime != nil {
		baseWhere += fmt.Sprintf(" AND punch_time < $%d", argIdx)
		args = append(args, filter.EndTime.UTC())
		argIdx++
	}
	if filter.Processed != nil {
		baseWhere += fmt.Sprintf(" AND processed = $%d", argIdx)
		args = append(args, *filter.Processed)
		argIdx++
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM raw_punch_events WHERE " + baseWhere
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count raw events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := fmt.Sprintf(`
		SELECT `+rawEventColumns+`
		FROM raw_punch_events
		WHERE `+baseWhere+`
		ORDER BY punch_time DESC, seq DESC
		LIMIT $%d OFFSET $%d
	`, argIdx, argIdx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list raw events: %w", err)
	}
	defer rows.Close()

	events, err := scanRawEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func scanRawEvents(rows pgx.Rows) ([]punch.RawPunchEvent, error) {
	var events []punch.RawPunchEvent
	for rows.Next() {
		var e punch.RawPunchEvent
		err := rows.Scan(
			&e.ID, &e.TenantID, &e.DeviceID, &e.DeviceUserToken, &e.PunchTime,
			&e.Direction, &e.RawPayload, &e.Processed, &e.Seq, &e.CreatedAt,
			&e.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read raw events: %w", err)
	}
	return events, nil
}
