package normalizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/apextime/attendance-backend-go/internal/domain/punch"
	"github.com/xuri/excelize/v2"
)

// ImportRow is one manually supplied punch: token, tenant-local timestamp,
// optional direction. Raw keeps the original row for audit.
type ImportRow struct {
	Token     string
	Timestamp string
	Direction *string
	Raw       string
}

// ParseCSV reads import rows from a CSV stream. Expected columns: token,
// timestamp, optional direction. Column count is not enforced beyond the
// first two; extra columns are ignored.
func ParseCSV(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []ImportRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", punch.ErrMalformedPayload, err)
		}
		rows = append(rows, importRowFromRecord(record))
	}
	return rows, nil
}

// ParseWorkbook reads import rows from the first sheet of an XLSX workbook.
func ParseWorkbook(r io.Reader) ([]ImportRow, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", punch.ErrMalformedPayload, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", punch.ErrMalformedPayload)
	}

	cells, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook rows: %w", err)
	}

	var rows []ImportRow
	for _, record := range cells {
		if len(record) == 0 {
			continue
		}
		rows = append(rows, importRowFromRecord(record))
	}
	return rows, nil
}

func importRowFromRecord(record []string) ImportRow {
	row := ImportRow{Raw: strings.Join(record, ",")}
	if len(record) > 0 {
		row.Token = strings.TrimSpace(record[0])
	}
	if len(record) > 1 {
		row.Timestamp = strings.TrimSpace(record[1])
	}
	if len(record) > 2 {
		if dir := strings.ToLower(strings.TrimSpace(record[2])); dir == "in" || dir == "out" {
			row.Direction = &dir
		}
	}
	return row
}
