// Package normalizer converts heterogeneous device payloads (push-protocol
// text, direct-push JSON/XML callbacks, manual CSV/workbook rows) into
// canonical raw punch events, deduplicated at the store.
//
// Every ingest path is cheap and synchronous: parse, anchor the timestamp to
// the tenant's civil offset, upsert. Resolution and aggregation happen later
// in the background sweep, so a device acknowledgment never waits on them.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apextime/attendance-backend-go/internal/config"
	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/domain/punch"
	"github.com/apextime/attendance-backend-go/internal/domain/tenant"
	"github.com/apextime/attendance-backend-go/internal/pkg/metrics"
	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
	"github.com/apextime/attendance-backend-go/internal/service/resolver"
)

// Result reports the outcome of one ingested batch. Dropped rows are
// malformed or filtered payloads; they are counted, never returned to the
// device as errors.
type Result struct {
	Received   int `json:"received"`
	Stored     int `json:"stored"`
	Duplicates int `json:"duplicates"`
	Dropped    int `json:"dropped"`
}

type Service interface {
	// IngestPushData parses a push-protocol text body (tab-separated
	// token/timestamp lines) from a device and stores the events.
	IngestPushData(ctx context.Context, dev device.Device, body string) (Result, error)

	// IngestDirectPush stores a single direct-push callback event. Only
	// successful-verification sub-types are retained; everything else is
	// acknowledged upstream and dropped here.
	IngestDirectPush(ctx context.Context, dev device.Device, evt DirectPushEvent) (Result, error)

	// IngestImportRows stores manually imported rows (CSV / workbook / USB).
	IngestImportRows(ctx context.Context, dev device.Device, rows []ImportRow) (Result, error)

	// IngestLegacyRows stores rows relayed from a legacy terminal database.
	IngestLegacyRows(ctx context.Context, dev device.Device, rows []LegacyRow) (Result, error)
}

type normalizerImpl struct {
	events   punch.RawEventRepository
	tenants  tenant.TenantRepository
	resolver resolver.Service
	cfg      config.AttendanceConfig
}

func NewNormalizerService(
	events punch.RawEventRepository,
	tenants tenant.TenantRepository,
	resolverSvc resolver.Service,
	cfg config.AttendanceConfig,
) Service {
	return &normalizerImpl{
		events:   events,
		tenants:  tenants,
		resolver: resolverSvc,
		cfg:      cfg,
	}
}

// IngestPushData implements Service.
func (n *normalizerImpl) IngestPushData(ctx context.Context, dev device.Device, body string) (Result, error) {
	offset, err := n.tenantOffset(ctx, dev.TenantID)
	if err != nil {
		return Result{}, err
	}

	records, malformed := parsePushLines(body)

	result := Result{Received: len(records) + malformed, Dropped: malformed}
	metrics.EventsReceived.WithLabelValues(metrics.TransportPush).Add(float64(result.Received))
	metrics.EventsDropped.WithLabelValues(metrics.TransportPush, "malformed").Add(float64(malformed))

	for _, rec := range records {
		punchTime, err := parseLocalTimestamp(rec.Timestamp, offset)
		if err != nil {
			result.Dropped++
			metrics.EventsDropped.WithLabelValues(metrics.TransportPush, "bad_timestamp").Inc()
			slog.Debug("Dropped push line with unparseable timestamp",
				"device", dev.SerialNumber, "line", rec.Line)
			continue
		}

		n.store(ctx, metrics.TransportPush, &result, punch.RawPunchEvent{
			TenantID:        dev.TenantID,
			DeviceID:        dev.ID,
			DeviceUserToken: rec.Token,
			PunchTime:       punchTime,
			Direction:       rec.Direction,
			RawPayload:      &rec.Line,
		})
	}

	slog.Info("Push batch ingested", "device", dev.SerialNumber,
		"received", result.Received, "stored", result.Stored,
		"duplicates", result.Duplicates, "dropped", result.Dropped)
	return result, nil
}

// IngestDirectPush implements Service.
func (n *normalizerImpl) IngestDirectPush(ctx context.Context, dev device.Device, evt DirectPushEvent) (Result, error) {
	result := Result{Received: 1}
	metrics.EventsReceived.WithLabelValues(metrics.TransportDirectPush).Inc()

	if !evt.Verified() {
		result.Dropped++
		metrics.EventsDropped.WithLabelValues(metrics.TransportDirectPush, "unverified").Inc()
		return result, nil
	}
	if evt.UserToken == "" || evt.Time == "" {
		result.Dropped++
		metrics.EventsDropped.WithLabelValues(metrics.TransportDirectPush, "malformed").Inc()
		return result, nil
	}

	offset, err := n.tenantOffset(ctx, dev.TenantID)
	if err != nil {
		return Result{}, err
	}

	punchTime, err := parseEventTime(evt.Time, offset)
	if err != nil {
		result.Dropped++
		metrics.EventsDropped.WithLabelValues(metrics.TransportDirectPush, "bad_timestamp").Inc()
		slog.Debug("Dropped direct-push event with unparseable time",
			"device", dev.SerialNumber, "time", evt.Time)
		return result, nil
	}

	raw := evt.Raw
	n.store(ctx, metrics.TransportDirectPush, &result, punch.RawPunchEvent{
		TenantID:        dev.TenantID,
		DeviceID:        dev.ID,
		DeviceUserToken: evt.UserToken,
		PunchTime:       punchTime,
		RawPayload:      &raw,
	})

	// Access controllers often carry the person's display name; use it to
	// upgrade placeholder identities. Never block the ack on this.
	if evt.Name != "" && result.Stored > 0 {
		if err := n.resolver.BackfillName(ctx, dev.TenantID, evt.UserToken, evt.Name); err != nil {
			slog.Warn("Name backfill failed", "device", dev.SerialNumber,
				"token", evt.UserToken, "error", err)
		}
	}

	return result, nil
}

// IngestImportRows implements Service.
func (n *normalizerImpl) IngestImportRows(ctx context.Context, dev device.Device, rows []ImportRow) (Result, error) {
	offset, err := n.tenantOffset(ctx, dev.TenantID)
	if err != nil {
		return Result{}, err
	}

	result := Result{Received: len(rows)}
	metrics.EventsReceived.WithLabelValues(metrics.TransportImport).Add(float64(len(rows)))

	for i, row := range rows {
		punchTime, err := parseLocalTimestamp(row.Timestamp, offset)
		if err != nil {
			// The first row of a hand-built file is usually a header.
			if i == 0 {
				result.Received--
				continue
			}
			result.Dropped++
			metrics.EventsDropped.WithLabelValues(metrics.TransportImport, "bad_timestamp").Inc()
			continue
		}
		if row.Token == "" {
			result.Dropped++
			metrics.EventsDropped.WithLabelValues(metrics.TransportImport, "malformed").Inc()
			continue
		}

		raw := row.Raw
		n.store(ctx, metrics.TransportImport, &result, punch.RawPunchEvent{
			TenantID:        dev.TenantID,
			DeviceID:        dev.ID,
			DeviceUserToken: row.Token,
			PunchTime:       punchTime,
			Direction:       row.Direction,
			RawPayload:      &raw,
		})
	}

	slog.Info("Import batch ingested", "device", dev.SerialNumber,
		"received", result.Received, "stored", result.Stored,
		"duplicates", result.Duplicates, "dropped", result.Dropped)
	return result, nil
}

// store upserts one event and folds the outcome into result. Store failures
// count as dropped so one bad row never fails a batch.
func (n *normalizerImpl) store(ctx context.Context, transport string, result *Result, event punch.RawPunchEvent) {
	inserted, err := n.events.Upsert(ctx, event)
	if err != nil {
		result.Dropped++
		metrics.EventsDropped.WithLabelValues(transport, "store_error").Inc()
		slog.Error("Failed to store raw punch event", "device_id", event.DeviceID,
			"token", event.DeviceUserToken, "error", err)
		return
	}
	if inserted {
		result.Stored++
		metrics.EventsStored.WithLabelValues(transport).Inc()
	} else {
		result.Duplicates++
		metrics.EventsDuplicate.WithLabelValues(transport).Inc()
	}
}

func (n *normalizerImpl) tenantOffset(ctx context.Context, tenantID string) (int, error) {
	t, err := n.tenants.GetByID(ctx, tenantID)
	if err != nil {
		// A device can be registered before its tenant's civil-time row;
		// those events anchor to the configured default offset.
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return n.cfg.DefaultTZOffsetMinutes, nil
		}
		return 0, fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}
	return t.TZOffsetMinutes, nil
}

// parseLocalTimestamp parses a zone-less timestamp as tenant-local civil time
// and returns the UTC instant. Zone-less device timestamps are never host
// time and never UTC.
func parseLocalTimestamp(value string, offsetMinutes int) (time.Time, error) {
	loc := workday.FixedZone(offsetMinutes)
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"02-01-2006 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", punch.ErrMalformedPayload, value)
}

// parseEventTime parses a direct-push event time, which usually carries an
// explicit zone; zone-less values fall back to tenant-local anchoring.
func parseEventTime(value string, offsetMinutes int) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return parseLocalTimestamp(value, offsetMinutes)
}
