package normalizer

import (
	"context"
	"log/slog"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
	"github.com/apextime/attendance-backend-go/internal/domain/punch"
	"github.com/apextime/attendance-backend-go/internal/pkg/metrics"
)

// LegacyRow is one attendance row relayed from a legacy terminal database by
// the on-premise sync agent. Timestamps are zone-less terminal-local values;
// the agent forwards them untouched and anchoring happens here.
type LegacyRow struct {
	Token       string  `json:"user_sn"`
	Timestamp   string  `json:"logged_at"`
	Direction   *string `json:"direction,omitempty"`
	Name        string  `json:"name,omitempty"`
	SourceLogID string  `json:"source_log_id,omitempty"`
}

// IngestLegacyRows implements Service.
func (n *normalizerImpl) IngestLegacyRows(ctx context.Context, dev device.Device, rows []LegacyRow) (Result, error) {
	offset, err := n.tenantOffset(ctx, dev.TenantID)
	if err != nil {
		return Result{}, err
	}

	result := Result{Received: len(rows)}
	metrics.EventsReceived.WithLabelValues(metrics.TransportLegacy).Add(float64(len(rows)))

	for _, row := range rows {
		if row.Token == "" || row.Timestamp == "" {
			result.Dropped++
			metrics.EventsDropped.WithLabelValues(metrics.TransportLegacy, "malformed").Inc()
			continue
		}
		punchTime, err := parseLocalTimestamp(row.Timestamp, offset)
		if err != nil {
			result.Dropped++
			metrics.EventsDropped.WithLabelValues(metrics.TransportLegacy, "bad_timestamp").Inc()
			slog.Debug("Dropped legacy row with unparseable timestamp",
				"device", dev.SerialNumber, "logged_at", row.Timestamp)
			continue
		}

		var raw *string
		if row.SourceLogID != "" {
			source := row.SourceLogID
			raw = &source
		}

		storedBefore := result.Stored
		n.store(ctx, metrics.TransportLegacy, &result, punch.RawPunchEvent{
			TenantID:        dev.TenantID,
			DeviceID:        dev.ID,
			DeviceUserToken: row.Token,
			PunchTime:       punchTime,
			Direction:       row.Direction,
			RawPayload:      raw,
		})

		// Legacy log tables sometimes carry the person's name alongside the
		// punch; use it the same way direct-push names are used.
		if row.Name != "" && result.Stored > storedBefore {
			if err := n.resolver.BackfillName(ctx, dev.TenantID, row.Token, row.Name); err != nil {
				slog.Warn("Name backfill failed", "device", dev.SerialNumber,
					"token", row.Token, "error", err)
			}
		}
	}

	slog.Info("Legacy batch ingested", "device", dev.SerialNumber,
		"received", result.Received, "stored", result.Stored,
		"duplicates", result.Duplicates, "dropped", result.Dropped)
	return result, nil
}
