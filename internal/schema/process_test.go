package schema

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/tabular"
)

func TestProcessPunches(t *testing.T) {
	var payloads []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resource-server/api/punches/action/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)
		payloads = append(payloads, payload)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	results := processPunches(context.Background(), api, []tabular.Row{
		{"externalNumber": "E12", "date": "2026-02-01", "time": "9:30"},
		{"externalNumber": "", "date": "2026-02-01", "time": "09:30"},
		{"externalNumber": "E13", "date": "02/01/2026", "time": "18:00"},
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Status != StatusSuccess || results[0].Message != "2026-02-01 09:30:00" {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].Action != ActionError || results[1].Status != StatusFailed {
		t.Fatalf("blank externalNumber should fail without a request: %+v", results[1])
	}
	if results[2].Status != StatusSuccess {
		t.Fatalf("unexpected third result %+v", results[2])
	}

	if len(payloads) != 2 {
		t.Fatalf("invalid row must not reach the backend, got %d requests", len(payloads))
	}
	if payloads[0]["action"] != "ADD_NO_TYPE" {
		t.Fatalf("unexpected action %v", payloads[0]["action"])
	}
	punch := payloads[1]["punch"].(map[string]any)
	if punch["punchTime"] != "2026-02-01 18:00:00" {
		t.Fatalf("US date not normalized: %v", punch["punchTime"])
	}
}

func TestProcessPunchesRejectedByBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a created punch answering 201 still counts as a failure here
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`unexpected`))
	}))
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	results := processPunches(context.Background(), api, []tabular.Row{
		{"externalNumber": "E12", "date": "2026-02-01", "time": "09:30"},
	})
	if results[0].Status != StatusFailed || results[0].HTTPStatus != 201 {
		t.Fatalf("only 200 should count as punch success: %+v", results[0])
	}
}

func TestProcessTimecardUpdate(t *testing.T) {
	var posted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			q := r.URL.Query()
			if q.Get("externalNumber") != "E9" || q.Get("startDate") != "2026-03-02" {
				t.Errorf("unexpected query %v", q)
			}
			w.Write([]byte(`[{"attendancePaycodes":[
				{"attendanceDate":"2026-03-01","employee":{"id":4},"version":1},
				{"attendanceDate":"2026-03-02","employee":{"id":4},"version":7}
			]}]`))
		case r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &posted)
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	results := processTimecardUpdates(context.Background(), api, []tabular.Row{
		{"externalNumber": "E9", "attendanceDate": "2026-03-02", "paycode_id": "15"},
	})

	if results[0].Status != StatusSuccess || results[0].Action != ActionUpdate {
		t.Fatalf("unexpected result %+v", results[0])
	}
	entries := posted["entries"].([]any)
	entry := entries[0].(map[string]any)
	paycodeEntry := entry["attendancePaycode"].(map[string]any)
	if paycodeEntry["version"] != float64(7) {
		t.Fatalf("version of the matching day not carried: %v", paycodeEntry)
	}
	if paycodeEntry["paycode"].(map[string]any)["id"] != float64(15) {
		t.Fatalf("unexpected paycode %v", paycodeEntry["paycode"])
	}
	if entry["employee"].(map[string]any)["id"] != float64(4) {
		t.Fatalf("employee id not lifted from the timecard: %v", entry["employee"])
	}
}

func TestProcessTimecardUpdateNoTimecard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	results := processTimecardUpdates(context.Background(), api, []tabular.Row{
		{"externalNumber": "E9", "attendanceDate": "2026-03-02", "paycode_id": "15"},
	})
	if results[0].Status != StatusFailed || results[0].Message != "no timecard found" {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

const orgLookupBody = `{
	"headers": [
		{"data": "zone", "type": "INPUT", "sequence": 2},
		{"data": "location", "type": "LOOKUP", "sequence": 1}
	],
	"content": [
		{"location": "HQ", "zone": "north"}
	]
}`

func TestOrgLookupUpload(t *testing.T) {
	var saved map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(orgLookupBody))
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &saved)
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	results := processOrgLookupUpload(context.Background(), api, []tabular.Row{
		{"location": "HQ", "zone": "north"},
		{"location": "Plant", "zone": "south"},
	})

	if len(results) != 1 || results[0].Status != StatusSuccess || results[0].Entries != 2 {
		t.Fatalf("unexpected results %+v", results)
	}
	if saved["action"] != "SAVE" {
		t.Fatalf("unexpected action %v", saved["action"])
	}
	table := saved["table"].(map[string]any)
	if table["entityType"] != "ORGANIZATION_LOCATION" {
		t.Fatalf("unexpected table %v", table)
	}
	if len(table["headers"].([]any)) != 2 {
		t.Fatalf("header metadata not echoed back: %v", table["headers"])
	}
}

func TestOrgLookupUploadBlankInputAbortsSave(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(orgLookupBody))
		case http.MethodPost:
			posts++
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	results := processOrgLookupUpload(context.Background(), api, []tabular.Row{
		{"location": "HQ", "zone": "north"},
		{"location": "Plant", "zone": ""},
	})

	if posts != 0 {
		t.Fatalf("a blank INPUT cell must abort the save")
	}
	if len(results) != 1 || results[0].Row != 2 || results[0].Message != "zone: INPUT field cannot be empty" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestOrgLookupTableOrdersBySequence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(orgLookupBody))
	}))
	defer srv.Close()

	api := beeforce.New(srv.URL, "tok", srv.Client())
	columns, rows, err := orgLookupTable(context.Background(), api)
	if err != nil {
		t.Fatalf("orgLookupTable: %v", err)
	}
	if len(columns) != 2 || columns[0] != "location" || columns[1] != "zone" {
		t.Fatalf("columns not ordered by sequence: %v", columns)
	}
	if len(rows) != 1 || rows[0][0] != "HQ" {
		t.Fatalf("unexpected rows %v", rows)
	}
}
