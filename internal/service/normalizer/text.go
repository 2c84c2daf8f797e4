package normalizer

import (
	"strings"
)

// pushRecord is one parsed line of a push-protocol ATTLOG body.
type pushRecord struct {
	Token     string
	Timestamp string
	Direction *string
	Line      string
}

// directionNames maps the push-protocol punch state codes to directions.
// Codes outside the table are stored without a direction rather than dropped.
var directionNames = map[string]string{
	"0": "in",
	"1": "out",
	"2": "break_out",
	"3": "break_in",
	"4": "overtime_in",
	"5": "overtime_out",
}

// parsePushLines splits a push-protocol data body into records. Each line is
// tab-separated: user token, timestamp, then optional state and verify
// columns. Blank lines are skipped; lines missing the first two columns are
// counted as malformed.
func parsePushLines(body string) ([]pushRecord, int) {
	var (
		records   []pushRecord
		malformed int
	)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			malformed++
			continue
		}

		token := strings.TrimSpace(fields[0])
		timestamp := strings.TrimSpace(fields[1])
		if token == "" || timestamp == "" {
			malformed++
			continue
		}

		rec := pushRecord{Token: token, Timestamp: timestamp, Line: line}
		if len(fields) >= 3 {
			if name, ok := directionNames[strings.TrimSpace(fields[2])]; ok {
				rec.Direction = &name
			}
		}
		records = append(records, rec)
	}
	return records, malformed
}
