package transfer

import (
	"encoding/csv"
	"fmt"
	"io"

	"linkreview/pkg/domain"
)

// InvalidFormatError reports a malformed CSV payload.
type InvalidFormatError struct {
	Line   int
	Reason string
}

func (e InvalidFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid person record csv at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("invalid person record csv: %s", e.Reason)
}

// csvHeader is the canonical column order: identifiers first, then the field
// schema in display order.
func csvHeader() []string {
	fields := domain.RecordFields()
	header := make([]string, 0, len(fields)+2)
	header = append(header, "id", "person_id")
	for _, f := range fields {
		header = append(header, string(f))
	}
	return header
}

// WriteRecords emits the records as CSV with a canonical header row.
func WriteRecords(w io.Writer, records []domain.PersonRecord) error {
	cw := csv.NewWriter(w)
	header := csvHeader()
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row, rec.ID, rec.PersonID)
		for _, f := range domain.RecordFields() {
			row = append(row, f.Value(rec))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRecords parses CSV content into person records. The header row selects
// columns; unknown column names are rejected, missing schema columns read as
// empty. The id and person_id columns are optional on import, since the
// registry assigns fresh identifiers.
func ReadRecords(r io.Reader) ([]domain.PersonRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, InvalidFormatError{Reason: "missing header row"}
	}
	if err != nil {
		return nil, err
	}

	type column struct {
		field domain.RecordField
		id    bool
		owner bool
	}
	columns := make([]column, len(header))
	for i, name := range header {
		switch name {
		case "id":
			columns[i] = column{id: true}
		case "person_id":
			columns[i] = column{owner: true}
		default:
			f, err := domain.ParseRecordField(name)
			if err != nil {
				return nil, InvalidFormatError{Line: 1, Reason: fmt.Sprintf("unknown column %q", name)}
			}
			columns[i] = column{field: f}
		}
	}

	var records []domain.PersonRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, InvalidFormatError{Line: line, Reason: err.Error()}
		}
		if len(row) != len(header) {
			return nil, InvalidFormatError{Line: line, Reason: fmt.Sprintf("expected %d columns, got %d", len(header), len(row))}
		}
		var rec domain.PersonRecord
		for i, value := range row {
			col := columns[i]
			switch {
			case col.id:
				rec.ID = value
			case col.owner:
				rec.PersonID = value
			default:
				col.field.Set(&rec, value)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
