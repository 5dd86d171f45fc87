package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/tabular"
)

const apiPrefix = "/resource-server/api/"

func col(prefix string, slot int) string {
	return prefix + strconv.Itoa(slot)
}

func cellInt(r tabular.Row, column string) (int, error) {
	v, ok := r.Int(column)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", column)
	}
	return v, nil
}

func idRef(r tabular.Row, column string) (map[string]any, error) {
	v, err := cellInt(r, column)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": v}, nil
}

// intOrNull mirrors backends that accept explicit nulls for optional
// numeric fields.
func intOrNull(r tabular.Row, column string) any {
	if v, ok := r.Int(column); ok {
		return v
	}
	return nil
}

func textOr(r tabular.Row, column, fallback string) string {
	if v := r.Get(column); v != "" {
		return v
	}
	return fallback
}

func dedupeByID(entry map[string]any) (string, bool) {
	id, ok := entry["id"].(int)
	if !ok {
		return "", false
	}
	return strconv.Itoa(id), true
}

// dedupeByRef keys an entry by the id of a nested reference object.
func dedupeByRef(field string) func(map[string]any) (string, bool) {
	return func(entry map[string]any) (string, bool) {
		ref, ok := entry[field].(map[string]any)
		if !ok {
			return "", false
		}
		id, ok := ref["id"].(int)
		if !ok {
			return "", false
		}
		return strconv.Itoa(id), true
	}
}

// fieldValue resolves an export column against a fetched record. A
// column named x_id with no direct match falls through to the id of
// the nested object x, which covers reference columns like paycode_id.
func fieldValue(rec beeforce.Record, column string) any {
	if v, ok := rec[column]; ok {
		return exportValue(v)
	}
	if name, found := strings.CutSuffix(column, "_id"); found {
		if nested, ok := rec[name].(map[string]any); ok {
			return exportValue(nested["id"])
		}
	}
	return nil
}

// exportValue flattens a record value into something a cell can hold.
func exportValue(v any) any {
	if nested, ok := v.(map[string]any); ok {
		return nested["id"]
	}
	if _, ok := v.([]any); ok {
		return nil
	}
	return v
}

func projectRecords(records []beeforce.Record, columns []string) [][]any {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, column := range columns {
			row[i] = fieldValue(rec, column)
		}
		rows = append(rows, row)
	}
	return rows
}

// dynamicColumns derives a column order from record keys: the common
// identity fields first, the rest alphabetical so downloads are stable
// run to run.
func dynamicColumns(records []beeforce.Record) []string {
	seen := map[string]bool{}
	for _, rec := range records {
		for key := range rec {
			seen[key] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for _, key := range []string{"id", "externalNumber", "code", "name", "description"} {
		if seen[key] {
			columns = append(columns, key)
			delete(seen, key)
		}
	}
	rest := make([]string, 0, len(seen))
	for key := range seen {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

func numOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func entryList(rec beeforce.Record, key string) []map[string]any {
	raw, _ := rec[key].([]any)
	entries := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if entry, ok := item.(map[string]any); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// entryIDExport flattens set records whose entries are bare id
// references into id/name/description plus entryId1..N columns.
func entryIDExport(records []beeforce.Record) ([]string, [][]any) {
	maxEntries := 0
	for _, rec := range records {
		if n := len(entryList(rec, "entries")); n > maxEntries {
			maxEntries = n
		}
	}
	columns := []string{"id", "name", "description"}
	for i := 1; i <= maxEntries; i++ {
		columns = append(columns, col("entryId", i))
	}
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := []any{rec["id"], rec["name"], rec["description"]}
		for _, entry := range entryList(rec, "entries") {
			row = append(row, entry["id"])
		}
		rows = append(rows, row)
	}
	return columns, rows
}
