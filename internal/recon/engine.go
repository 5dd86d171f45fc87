// Package recon turns parsed upload rows into create and update calls
// against the backend, one group at a time. A bad row becomes an error
// result and the batch continues; nothing aborts the run.
package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/schema"
	"github.com/beeforce/configportal/internal/tabular"
)

// Batch is the outcome of one upload or delete run.
type Batch struct {
	ID      string
	Module  string
	Results []schema.Result
}

func (b *Batch) count(status string) int {
	n := 0
	for _, r := range b.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (b *Batch) Succeeded() int { return b.count(schema.StatusSuccess) }
func (b *Batch) Failed() int    { return b.count(schema.StatusFailed) }

// Reconcile processes every row of an upload. Modules with a custom
// process function bypass the generic grouping flow entirely.
func Reconcile(ctx context.Context, api *beeforce.Client, sch *schema.EntitySchema, rows []tabular.Row) *Batch {
	batch := &Batch{ID: uuid.NewString(), Module: sch.Slug}
	if sch.Process != nil {
		batch.Results = sch.Process(ctx, api, rows)
		return batch
	}
	for _, g := range groupRows(sch, rows) {
		batch.Results = append(batch.Results, reconcileGroup(ctx, api, sch, g))
	}
	return batch
}

// group is a set of upload rows describing one backend entity.
type group struct {
	firstRow int
	id       int
	hasID    bool
	name     string
	rows     []tabular.Row
}

// groupRows merges rows id-first: a numeric id always wins over the
// natural key so an id'd row can rename an entity without forking a
// duplicate group. Rows with neither id nor name stay solitary so bad
// rows never merge with each other.
func groupRows(sch *schema.EntitySchema, rows []tabular.Row) []*group {
	var order []*group
	index := map[string]*group{}

	for i, row := range rows {
		name := row.Get(sch.NameColumn)
		id, hasID := row.Int(sch.IDColumnName())

		var key string
		switch {
		case !sch.GroupRows:
			key = "ROW_" + strconv.Itoa(i)
		case hasID:
			key = "ID_" + strconv.Itoa(id)
		case name != "":
			key = "NEW_" + name
		default:
			key = "ROW_" + strconv.Itoa(i)
		}

		g, ok := index[key]
		if !ok {
			g = &group{firstRow: i + 1, id: id, hasID: hasID, name: name}
			index[key] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, row)
	}
	return order
}

func reconcileGroup(ctx context.Context, api *beeforce.Client, sch *schema.EntitySchema, g *group) schema.Result {
	result := schema.Result{Row: g.firstRow, Name: g.name}
	errorResult := func(message string) schema.Result {
		result.Action = schema.ActionError
		result.Status = schema.StatusFailed
		result.Message = message
		return result
	}

	for _, row := range g.rows {
		for _, column := range sch.Mandatory {
			if row.IsBlank(column) {
				return errorResult(column + " is mandatory")
			}
		}
	}

	payload := map[string]any{}
	if sch.BaseFields != nil {
		base, err := sch.BaseFields(g.rows[0])
		if err != nil {
			return errorResult(err.Error())
		}
		// Rows of one group must agree on the entity-level fields;
		// silently taking the first row's values would hide typos.
		for _, row := range g.rows[1:] {
			other, err := sch.BaseFields(row)
			if err != nil {
				return errorResult(err.Error())
			}
			if !reflect.DeepEqual(base, other) {
				return errorResult("rows in this group disagree on entity fields")
			}
		}
		payload = base
	}

	entryCount := 0
	for _, fam := range sch.Families {
		entries, err := collectFamily(fam, g.rows)
		if err != nil {
			return errorResult(err.Error())
		}
		if fam.OpenEnded {
			markOpenEnded(entries)
		}
		payload[fam.Key] = entries
		entryCount += len(entries)
	}
	if sch.RowEntries != nil {
		entries, err := collectRowEntries(sch.RowEntries, g.rows)
		if err != nil {
			return errorResult(err.Error())
		}
		payload[sch.RowEntries.Key] = entries
		entryCount += len(entries)
	}
	result.Entries = entryCount

	for _, key := range sch.RequireEntries {
		if entries, _ := payload[key].([]map[string]any); len(entries) == 0 {
			return errorResult("at least one " + key + " entry is required")
		}
	}

	if g.hasID {
		if sch.MergeEntries != nil {
			if err := mergeExistingEntries(ctx, api, sch, g.id, payload); err != nil {
				return errorResult(err.Error())
			}
		}
		if sch.IncludeIDInPayload {
			payload["id"] = g.id
		}
		result.Action = schema.ActionUpdate
		resp, err := api.Put(ctx, sch.BasePath+"/"+strconv.Itoa(g.id), payload)
		return finish(result, resp, err)
	}

	result.Action = schema.ActionCreate
	resp, err := api.Post(ctx, sch.BasePath, payload)
	return finish(result, resp, err)
}

func collectFamily(fam schema.Family, rows []tabular.Row) ([]map[string]any, error) {
	entries := []map[string]any{}
	seen := map[string]bool{}
	for _, row := range rows {
		for slot := 1; slot <= fam.Slots; slot++ {
			if row.IsBlank(fam.Primary + strconv.Itoa(slot)) {
				continue
			}
			entry, err := fam.Build(row, slot)
			if err != nil {
				return nil, err
			}
			if entry == nil {
				continue
			}
			if fam.DedupeKey != nil {
				if key, ok := fam.DedupeKey(entry); ok {
					if seen[key] {
						continue
					}
					seen[key] = true
				}
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func collectRowEntries(spec *schema.RowEntry, rows []tabular.Row) ([]map[string]any, error) {
	entries := []map[string]any{}
	seen := map[string]bool{}
	for _, row := range rows {
		entry, err := spec.Build(row)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		if spec.DedupeKey != nil {
			if key, ok := spec.DedupeKey(entry); ok {
				if seen[key] {
					continue
				}
				seen[key] = true
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// markOpenEnded orders a range list by startMinute and flags the
// highest range as max with no endMinute, which is how the backend
// represents an open-ended final range.
func markOpenEnded(entries []map[string]any) {
	sort.SliceStable(entries, func(i, j int) bool {
		return startMinute(entries[i]) < startMinute(entries[j])
	})
	for i, entry := range entries {
		last := i == len(entries)-1
		entry["max"] = last
		if last {
			delete(entry, "endMinute")
		}
	}
}

func startMinute(entry map[string]any) int {
	v, _ := entry["startMinute"].(int)
	return v
}

// mergeExistingEntries keeps updates write-preserving: each uploaded
// entry that references the same object as an existing sub-entry
// inherits that sub-entry's id so the backend updates it in place
// instead of dropping and recreating it.
func mergeExistingEntries(ctx context.Context, api *beeforce.Client, sch *schema.EntitySchema, id int, payload map[string]any) error {
	existing, err := api.FetchRecord(ctx, sch.BasePath, id)
	if err != nil {
		return fmt.Errorf("unable to fetch existing record %d: %v", id, err)
	}

	spec := sch.MergeEntries
	existingIDs := map[string]any{}
	for _, entry := range recordEntries(existing, spec.EntriesKey) {
		ref, _ := entry[spec.MatchField].(map[string]any)
		if ref == nil {
			continue
		}
		if key, ok := refKey(ref["id"]); ok {
			existingIDs[key] = entry["id"]
		}
	}

	entries, _ := payload[spec.EntriesKey].([]map[string]any)
	for _, entry := range entries {
		ref, _ := entry[spec.MatchField].(map[string]any)
		if ref == nil {
			continue
		}
		if key, ok := refKey(ref["id"]); ok {
			if existingID, found := existingIDs[key]; found {
				entry["id"] = existingID
			}
		}
	}
	return nil
}

func recordEntries(rec beeforce.Record, key string) []map[string]any {
	raw, _ := rec[key].([]any)
	entries := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if entry, ok := item.(map[string]any); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// refKey folds the decoded-JSON float64 and the locally built int
// forms of an id into one comparable key.
func refKey(v any) (string, bool) {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n), true
	case float64:
		return strconv.Itoa(int(n)), true
	default:
		return "", false
	}
}

func finish(result schema.Result, resp *beeforce.Response, err error) schema.Result {
	if err != nil {
		result.Status = schema.StatusFailed
		result.Message = networkMessage(err)
		return result
	}
	result.HTTPStatus = resp.StatusCode
	if resp.OK() {
		result.Status = schema.StatusSuccess
	} else {
		result.Status = schema.StatusFailed
		result.Message = resp.Text()
	}
	return result
}

func networkMessage(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out: " + err.Error()
	}
	return "network error: " + err.Error()
}
