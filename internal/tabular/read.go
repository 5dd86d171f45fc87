package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const maxSheetRows = 100000

// ReadUpload parses an uploaded spreadsheet or CSV into header-keyed
// rows. The first sheet is used, the first row is the header, and every
// data row is blank-filled to the header width. Rows that are entirely
// empty are dropped.
func ReadUpload(data []byte, filename string) ([]Row, []string, error) {
	cells, err := readCells(data, filename)
	if err != nil {
		return nil, nil, err
	}
	if len(cells) == 0 {
		return nil, nil, errors.New("worksheet is empty")
	}

	header := make([]string, len(cells[0]))
	for i, h := range cells[0] {
		header[i] = strings.TrimSpace(h)
	}

	var rows []Row
	for _, raw := range cells[1:] {
		row := make(Row, len(header))
		empty := true
		for i, column := range header {
			if column == "" {
				continue
			}
			value := ""
			if i < len(raw) {
				value = strings.TrimSpace(raw[i])
			}
			row[column] = value
			if value != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, header, nil
}

func readCells(data []byte, filename string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return readCSVCells(data)
	case ".xls", ".xsl":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("open xls: %w", err)
		}
		if workbook.NumSheets() == 0 {
			return nil, errors.New("no worksheet found")
		}
		rows := workbook.ReadAllCells(maxSheetRows)
		if len(rows) == 0 {
			return nil, errors.New("worksheet is empty")
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, errors.New("no worksheet found")
		}
		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		return rows, nil
	}
}

// readCSVCells decodes a CSV file exported by spreadsheet tools.
// A BOM, when present, decides the encoding (UTF-8 or either UTF-16
// flavor); otherwise the bytes are taken as UTF-8. Ragged rows are
// tolerated and blank-filled by the caller.
func readCSVCells(data []byte) ([][]string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	reader := csv.NewReader(transform.NewReader(bytes.NewReader(data), decoder))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file: no header row found")
	}
	return rows, nil
}
