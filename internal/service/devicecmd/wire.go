package devicecmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/device"
)

// WireFormat renders a command in the push-protocol text form the terminal
// executes: "C:<id>:<directive>". Unknown payload fields render empty rather
// than failing delivery.
func WireFormat(cmd device.DeviceCommand) string {
	payload := map[string]any{}
	if cmd.Payload != "" {
		// Delivery must not fail on a hand-edited payload; missing fields
		// just render empty.
		_ = json.Unmarshal([]byte(cmd.Payload), &payload)
	}

	switch cmd.CommandType {
	case device.CommandUploadUser:
		return fmt.Sprintf("C:%s:DATA USER PIN=%s\tName=%s\tPri=%s\tPasswd=%s\tCard=%s\tGrp=%s",
			cmd.ID,
			field(payload, "user_id"),
			field(payload, "name"),
			field(payload, "privilege"),
			field(payload, "password"),
			field(payload, "card_no"),
			field(payload, "department"),
		)
	case device.CommandDeleteUser:
		return fmt.Sprintf("C:%s:DATA DELETE USER PIN=%s", cmd.ID, field(payload, "user_id"))
	case device.CommandClearUsers:
		return fmt.Sprintf("C:%s:DATA DELETE USER", cmd.ID)
	case device.CommandTimeSync:
		return fmt.Sprintf("C:%s:DATA UPDATE STIME %s", cmd.ID, syncInstant(payload))
	case device.CommandRestart:
		return fmt.Sprintf("C:%s:DATA RESTART", cmd.ID)
	case device.CommandDataPull:
		return fmt.Sprintf("C:%s:DATA QUERY ATTLOG", cmd.ID)
	default:
		return fmt.Sprintf("C:%s:%s", cmd.ID, cmd.CommandType)
	}
}

// syncInstant renders the payload timestamp as "YYYY-MM-DD HH:MM:SS",
// falling back to now when absent or unparseable.
func syncInstant(payload map[string]any) string {
	const layout = "2006-01-02 15:04:05"
	if raw := field(payload, "timestamp"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC().Format(layout)
		}
	}
	return time.Now().UTC().Format(layout)
}

// field renders a payload value as text; numbers lose the JSON float suffix.
func field(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
