package tabular

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Row is one upload row keyed by header name. Absent cells read as "",
// so downstream payload builders never branch on missing columns.
type Row map[string]string

func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

func (r Row) IsBlank(column string) bool {
	return r.Get(column) == ""
}

// Int parses a cell as an integer. Spreadsheet tools routinely hand
// back "12.0" for what the user typed as 12, so parsing goes through
// float first.
func (r Row) Int(column string) (int, bool) {
	return ParseInt(r.Get(column))
}

// IntOr returns the parsed cell or fallback when the cell is blank or
// unparsable.
func (r Row) IntOr(column string, fallback int) int {
	if v, ok := r.Int(column); ok {
		return v
	}
	return fallback
}

// Bool accepts true/false, 1/0, yes/no and y/n in any case; anything
// else yields fallback.
func (r Row) Bool(column string, fallback bool) bool {
	switch strings.ToLower(r.Get(column)) {
	case "true", "1", "yes", "y":
		return true
	case "false", "0", "no", "n":
		return false
	default:
		return fallback
	}
}

func ParseInt(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1-2-2006",
	"01-02-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// NormalizeDate coerces a cell into YYYY-MM-DD. Numeric cells in the
// 10000..80000 range are treated as Excel date serials; the range check
// keeps plain years and ids from being misread as dates.
func NormalizeDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial >= 10000 && serial <= 80000 {
			if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return parsed.Format("2006-01-02"), true
			}
		}
	}
	if i := strings.IndexByte(value, ' '); i > 0 {
		if normalized, ok := normalizeDateLayouts(value[:i]); ok {
			return normalized, true
		}
	}
	return normalizeDateLayouts(value)
}

func normalizeDateLayouts(value string) (string, bool) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("2006-01-02"), true
		}
	}
	return "", false
}

// NormalizeClock coerces a cell into HH:MM (24h).
func NormalizeClock(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("15:04"), true
		}
	}
	return "", false
}
