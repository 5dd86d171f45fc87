package recon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/schema"
	"github.com/beeforce/configportal/internal/tabular"
)

type call struct {
	method  string
	path    string
	payload map[string]any
}

// recorder is an httptest backend that records every mutating call and
// answers from a canned path -> body map.
func recorder(t *testing.T, calls *[]call, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			var payload map[string]any
			json.Unmarshal(body, &payload)
			*calls = append(*calls, call{method: r.Method, path: r.URL.Path, payload: payload})
		}
		if body, ok := responses[r.Method+" "+r.URL.Path]; ok {
			w.Write([]byte(body))
			return
		}
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
		}
		w.Write([]byte(`{}`))
	}))
}

func TestReconcileCreateUpdateError(t *testing.T) {
	var calls []call
	srv := recorder(t, &calls, nil)
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("paycodes")

	batch := Reconcile(context.Background(), api, sch, []tabular.Row{
		{"code": "OT", "description": "Overtime"},
		{"id": "7", "code": "NIGHT", "description": "Night shift"},
		{"code": "", "description": "no code"},
	})

	if batch.ID == "" {
		t.Fatalf("batch id missing")
	}
	if len(batch.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(batch.Results))
	}

	if r := batch.Results[0]; r.Action != schema.ActionCreate || r.Status != schema.StatusSuccess {
		t.Fatalf("unexpected create result %+v", r)
	}
	if r := batch.Results[1]; r.Action != schema.ActionUpdate || r.Status != schema.StatusSuccess {
		t.Fatalf("unexpected update result %+v", r)
	}
	if r := batch.Results[2]; r.Action != schema.ActionError || r.Message != "code is mandatory" {
		t.Fatalf("unexpected error result %+v", r)
	}

	if len(calls) != 2 {
		t.Fatalf("invalid row must not reach the backend, got %d calls", len(calls))
	}
	if calls[0].method != http.MethodPost || calls[0].path != "/resource-server/api/paycodes" {
		t.Fatalf("unexpected first call %+v", calls[0])
	}
	if calls[1].method != http.MethodPut || calls[1].path != "/resource-server/api/paycodes/7" {
		t.Fatalf("unexpected second call %+v", calls[1])
	}

	if batch.Succeeded() != 2 || batch.Failed() != 1 {
		t.Fatalf("unexpected tallies: %d ok, %d failed", batch.Succeeded(), batch.Failed())
	}
}

func TestReconcileBatchContinuesAfterBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"duplicate code"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("paycodes")

	batch := Reconcile(context.Background(), api, sch, []tabular.Row{
		{"code": "OT"},
		{"code": "NIGHT"},
	})

	if len(batch.Results) != 2 {
		t.Fatalf("rejection must not stop the batch, got %d results", len(batch.Results))
	}
	for _, r := range batch.Results {
		if r.Status != schema.StatusFailed || r.HTTPStatus != 400 {
			t.Fatalf("unexpected result %+v", r)
		}
		if r.Message != `{"error":"duplicate code"}` {
			t.Fatalf("backend body not surfaced: %q", r.Message)
		}
	}
}

func TestGroupRowsIDFirst(t *testing.T) {
	sch, _ := schema.Lookup("paycode_events")
	groups := groupRows(sch, []tabular.Row{
		{"id": "5", "Paycode Event Name": "Holidays", "holiday_name": "H1"},
		{"id": "5.0", "Paycode Event Name": "Holidays", "holiday_name": "H2"},
		{"Paycode Event Name": "Festivals", "holiday_name": "F1"},
		{"Paycode Event Name": "Festivals", "holiday_name": "F2"},
		{"holiday_name": "orphan 1"},
		{"holiday_name": "orphan 2"},
	})

	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(groups))
	}
	if !groups[0].hasID || groups[0].id != 5 || len(groups[0].rows) != 2 {
		t.Fatalf("id rows not merged: %+v", groups[0])
	}
	if groups[1].name != "Festivals" || len(groups[1].rows) != 2 {
		t.Fatalf("name rows not merged: %+v", groups[1])
	}
	if len(groups[2].rows) != 1 || len(groups[3].rows) != 1 {
		t.Fatalf("rows without id or name must stay solitary")
	}
}

func TestReconcileGroupedRowEntries(t *testing.T) {
	var calls []call
	srv := recorder(t, &calls, nil)
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("paycode_events")

	batch := Reconcile(context.Background(), api, sch, []tabular.Row{
		{"Paycode Event Name": "Holidays", "paycode_id": "3", "holiday_name": "New Year", "holiday_date(YYYY-MM-DD)": "2026-01-01"},
		{"Paycode Event Name": "Holidays", "paycode_id": "3", "holiday_name": "May Day", "holiday_date(YYYY-MM-DD)": "2026-05-01"},
	})

	if len(batch.Results) != 1 {
		t.Fatalf("expected one result for the merged group, got %d", len(batch.Results))
	}
	if r := batch.Results[0]; r.Entries != 2 || r.Action != schema.ActionCreate {
		t.Fatalf("unexpected result %+v", r)
	}
	schedules := calls[0].payload["schedules"].([]any)
	if len(schedules) != 2 {
		t.Fatalf("expected both schedules in one payload, got %v", schedules)
	}
}

func TestReconcileGroupDisagreement(t *testing.T) {
	var calls []call
	srv := recorder(t, &calls, nil)
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("paycode_events")

	batch := Reconcile(context.Background(), api, sch, []tabular.Row{
		{"Paycode Event Name": "Holidays", "paycode_id": "3", "holiday_name": "New Year", "holiday_date(YYYY-MM-DD)": "2026-01-01"},
		{"Paycode Event Name": "Holidays", "paycode_id": "4", "holiday_name": "May Day", "holiday_date(YYYY-MM-DD)": "2026-05-01"},
	})

	if len(calls) != 0 {
		t.Fatalf("disagreeing group must not reach the backend")
	}
	if r := batch.Results[0]; r.Action != schema.ActionError || r.Message != "rows in this group disagree on entity fields" {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestReconcileOpenEndedRanges(t *testing.T) {
	var calls []call
	srv := recorder(t, &calls, nil)
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("shift_templates")

	row := tabular.Row{
		"name": "Morning", "startTime": "06:00", "endTime": "14:00",
		"beforeStartToleranceMinute": "15", "afterStartToleranceMinute": "15",
		"lateInToleranceMinute": "10", "earlyOutToleranceMinute": "10",
		"paycode_id1": "4", "paycode_startMinute1": "480",
		"paycode_id2": "3", "paycode_startMinute2": "0", "paycode_endMinute2": "480",
	}
	batch := Reconcile(context.Background(), api, sch, []tabular.Row{row})

	if r := batch.Results[0]; r.Status != schema.StatusSuccess {
		t.Fatalf("unexpected result %+v", r)
	}
	paycodes := calls[0].payload["paycodes"].([]any)
	if len(paycodes) != 2 {
		t.Fatalf("expected 2 range entries, got %v", paycodes)
	}
	first := paycodes[0].(map[string]any)
	last := paycodes[1].(map[string]any)
	if first["startMinute"] != float64(0) || first["max"] != false || first["endMinute"] != float64(480) {
		t.Fatalf("ranges not ordered by startMinute: %v", first)
	}
	if last["startMinute"] != float64(480) || last["max"] != true {
		t.Fatalf("highest range must carry max: %v", last)
	}
	if _, present := last["endMinute"]; present {
		t.Fatalf("open-ended range must not carry endMinute: %v", last)
	}
	// families without cells still encode as empty lists
	if adjustments, ok := calls[0].payload["adjustments"].([]any); !ok || len(adjustments) != 0 {
		t.Fatalf("empty family should encode as []: %v", calls[0].payload["adjustments"])
	}
}

func TestReconcileDedupesRepeatedReferences(t *testing.T) {
	var calls []call
	srv := recorder(t, &calls, nil)
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("shift_template_sets")

	batch := Reconcile(context.Background(), api, sch, []tabular.Row{
		{"name": "Week A", "entryId1": "9", "entryId2": "9", "entryId3": "11"},
	})

	if r := batch.Results[0]; r.Entries != 2 {
		t.Fatalf("duplicate reference should collapse, got %+v", r)
	}
	entries := calls[0].payload["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("unexpected entries %v", entries)
	}
}

func TestReconcileRequiresEntries(t *testing.T) {
	var calls []call
	srv := recorder(t, &calls, nil)
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("shift_template_sets")

	batch := Reconcile(context.Background(), api, sch, []tabular.Row{{"name": "Empty Set"}})

	if len(calls) != 0 {
		t.Fatalf("entryless group must not reach the backend")
	}
	if r := batch.Results[0]; r.Message != "at least one entries entry is required" {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestReconcileMergePreservesEntryIDs(t *testing.T) {
	var calls []call
	srv := recorder(t, &calls, map[string]string{
		"GET /resource-server/api/paycode_event_sets/8": `{
			"id": 8, "name": "Holidays",
			"entries": [
				{"id": 301, "priority": 1, "paycodeEvent": {"id": 40}},
				{"id": 302, "priority": 2, "paycodeEvent": {"id": 41}}
			]
		}`,
	})
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("paycode_event_sets")

	batch := Reconcile(context.Background(), api, sch, []tabular.Row{
		{"id": "8", "name": "Holidays", "PaycodeEvent1": "40", "PaycodeEvent2": "55"},
	})

	if r := batch.Results[0]; r.Action != schema.ActionUpdate || r.Status != schema.StatusSuccess {
		t.Fatalf("unexpected result %+v", r)
	}
	entries := calls[0].payload["entries"].([]any)
	kept := entries[0].(map[string]any)
	if kept["id"] != float64(301) {
		t.Fatalf("existing entry id not carried onto the matching upload entry: %v", kept)
	}
	fresh := entries[1].(map[string]any)
	if _, present := fresh["id"]; present {
		t.Fatalf("new entry must not inherit an id: %v", fresh)
	}
}

func TestReconcileMergeFetchFailure(t *testing.T) {
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		calls = append(calls, call{method: r.Method})
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("paycode_event_sets")

	batch := Reconcile(context.Background(), api, sch, []tabular.Row{
		{"id": "8", "name": "Holidays", "PaycodeEvent1": "40"},
	})

	if len(calls) != 0 {
		t.Fatalf("failed prefetch must block the update")
	}
	if r := batch.Results[0]; r.Action != schema.ActionError || r.Status != schema.StatusFailed {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestReconcileIncludesIDInPayload(t *testing.T) {
	var calls []call
	srv := recorder(t, &calls, nil)
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	sch, _ := schema.Lookup("accruals")

	Reconcile(context.Background(), api, sch, []tabular.Row{
		{"id": "12", "name": "Annual Leave"},
	})

	if calls[0].method != http.MethodPut || calls[0].path != "/resource-server/api/accruals/12" {
		t.Fatalf("unexpected call %+v", calls[0])
	}
	if calls[0].payload["id"] != float64(12) {
		t.Fatalf("id must be repeated in the body: %v", calls[0].payload)
	}
}

func TestReconcileGroupedUpdatesIncludeID(t *testing.T) {
	var calls []call
	srv := recorder(t, &calls, nil)
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())

	uploads := map[string][]tabular.Row{
		"paycode_events": {{
			"id":                       "21",
			"Paycode Event Name":       "Holidays",
			"paycode_id":               "3",
			"holiday_name":             "New Year",
			"holiday_date(YYYY-MM-DD)": "2026-01-01",
		}},
		"timeoff_policy_sets": {{
			"id":         "34",
			"name":       "Leave Set",
			"policy_id":  "6",
			"paycode_id": "3",
		}},
	}

	for slug, rows := range uploads {
		calls = nil
		sch, _ := schema.Lookup(slug)
		batch := Reconcile(context.Background(), api, sch, rows)
		if r := batch.Results[0]; r.Action != schema.ActionUpdate || r.Status != schema.StatusSuccess {
			t.Fatalf("%s: unexpected result %+v", slug, r)
		}
		if calls[0].method != http.MethodPut {
			t.Fatalf("%s: expected PUT, got %s", slug, calls[0].method)
		}
		id, ok := calls[0].payload["id"]
		if !ok {
			t.Fatalf("%s: update body carries no id: %v", slug, calls[0].payload)
		}
		if _, numeric := id.(float64); !numeric {
			t.Fatalf("%s: id is not numeric: %v", slug, id)
		}
	}
}
