package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet of a generated workbook: a header row of
// Columns followed by zero or more data rows.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// BuildWorkbook renders sheets into an xlsx file. The first sheet
// replaces the workbook's default sheet so sheet order matches the
// slice order.
func BuildWorkbook(sheets []Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook needs at least one sheet")
	}

	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	for i, sheet := range sheets {
		if i == 0 {
			if err := file.SetSheetName(file.GetSheetName(0), sheet.Name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := file.NewSheet(sheet.Name); err != nil {
				return nil, fmt.Errorf("add sheet %q: %w", sheet.Name, err)
			}
		}

		header := make([]any, len(sheet.Columns))
		for c, column := range sheet.Columns {
			header[c] = column
		}
		if err := file.SetSheetRow(sheet.Name, "A1", &header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, err
			}
			values := row
			if err := file.SetSheetRow(sheet.Name, cell, &values); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+2, err)
			}
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCSV renders a header row plus data rows as CSV bytes.
func WriteCSV(columns []string, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(columns); err != nil {
		return nil, err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i := range record {
			record[i] = ""
			if i < len(row) && row[i] != nil {
				record[i] = fmt.Sprint(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
