package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/tabular"
)

const punchActionPath = apiPrefix + "punches/action/"

// processPunches posts one ADD_NO_TYPE punch action per row. Seconds
// are always forced to :00 because the backend rejects sub-minute
// punch times.
func processPunches(ctx context.Context, api *beeforce.Client, rows []tabular.Row) []Result {
	results := make([]Result, 0, len(rows))
	for i, row := range rows {
		rowNo := i + 1
		externalNumber := row.Get("externalNumber")
		date, dateOK := tabular.NormalizeDate(row.Get("date"))
		clock, clockOK := tabular.NormalizeClock(row.Get("time"))

		if externalNumber == "" || !dateOK || !clockOK {
			results = append(results, Result{
				Row:     rowNo,
				Name:    externalNumber,
				Action:  ActionError,
				Status:  StatusFailed,
				Message: "externalNumber, date (YYYY-MM-DD) and time (HH:MM) are mandatory",
			})
			continue
		}

		punchTime := date + " " + clock + ":00"
		payload := map[string]any{
			"action": "ADD_NO_TYPE",
			"punch": map[string]any{
				"employee":  map[string]any{"externalNumber": externalNumber},
				"punchTime": punchTime,
			},
		}

		resp, err := api.Post(ctx, punchActionPath, payload)
		if err != nil {
			results = append(results, Result{
				Row:     rowNo,
				Name:    externalNumber,
				Action:  ActionCreate,
				Status:  StatusFailed,
				Message: "network error: " + err.Error(),
			})
			continue
		}

		result := Result{
			Row:        rowNo,
			Name:       externalNumber,
			Action:     ActionCreate,
			HTTPStatus: resp.StatusCode,
			Status:     StatusSuccess,
			Message:    punchTime,
		}
		if resp.StatusCode != 200 {
			result.Status = StatusFailed
			result.Message = resp.Text()
		}
		results = append(results, result)
	}
	return results
}

const timecardAttributes = "attendancePunches(organizationLocation|shiftTemplate),schedule(shiftTemplate)"

// processTimecardUpdates replays the backend's own timecard edit flow:
// read the day's timecard through the proxy, lift the employee id and
// record version from the matching attendance paycode, then post the
// replacement entry.
func processTimecardUpdates(ctx context.Context, api *beeforce.Client, rows []tabular.Row) []Result {
	results := make([]Result, 0, len(rows))
	for i, row := range rows {
		result := processTimecardRow(ctx, api, row)
		result.Row = i + 1
		results = append(results, result)
	}
	return results
}

func processTimecardRow(ctx context.Context, api *beeforce.Client, row tabular.Row) Result {
	externalNumber := row.Get("externalNumber")
	fail := func(message string) Result {
		return Result{Name: externalNumber, Action: ActionError, Status: StatusFailed, Message: message}
	}

	if externalNumber == "" {
		return fail("externalNumber is mandatory")
	}
	paycodeID, err := cellInt(row, "paycode_id")
	if err != nil {
		return fail(err.Error())
	}
	attendanceDate, ok := tabular.NormalizeDate(row.Get("attendanceDate"))
	if !ok {
		return fail(fmt.Sprintf("invalid date %s", row.Get("attendanceDate")))
	}

	cards, err := api.FetchTimecards(ctx, attendanceDate, attendanceDate, externalNumber, timecardAttributes)
	if err != nil {
		return fail("network error: " + err.Error())
	}
	if len(cards) == 0 {
		return fail("no timecard found")
	}

	var match map[string]any
	for _, item := range entryList(cards[0], "attendancePaycodes") {
		if item["attendanceDate"] == attendanceDate {
			match = item
			break
		}
	}
	if match == nil {
		return fail("no matching attendancePaycode for given date")
	}

	employee, _ := match["employee"].(map[string]any)
	employeeID, ok := employee["id"]
	if !ok {
		return fail("attendancePaycode carries no employee id")
	}

	payload := map[string]any{
		"attendanceDate": attendanceDate,
		"entries": []map[string]any{{
			"index":    0,
			"employee": map[string]any{"id": employeeID},
			"attendancePaycode": map[string]any{
				"employee":       map[string]any{"id": employeeID},
				"attendanceDate": attendanceDate,
				"paycode":        map[string]any{"id": paycodeID},
				"version":        match["version"],
			},
		}},
	}

	resp, err := api.Post(ctx, apiPrefix+"timecards", payload)
	if err != nil {
		return fail("network error: " + err.Error())
	}
	result := Result{
		Name:       externalNumber,
		Action:     ActionUpdate,
		HTTPStatus: resp.StatusCode,
		Status:     StatusSuccess,
		Message:    attendanceDate,
	}
	if !resp.OK() {
		result.Status = StatusFailed
		result.Message = resp.Text()
	}
	return result
}

const (
	orgLookupPath       = apiPrefix + "organization_location_lookup_table"
	orgLookupActionPath = orgLookupPath + "/action/"
)

func organizationLocationLookupSchema() *EntitySchema {
	return &EntitySchema{
		Slug:           "organization_location_lookup_table",
		Title:          "Organization Location Lookup Table",
		Caption:        "Download and upload the Organization Location Lookup Table",
		BasePath:       orgLookupPath,
		TemplateSheet:  "Existing_Data",
		DeleteDisabled: true,
		TemplateSheets: orgLookupSheets,
		ExportTable:    orgLookupTable,
		Process:        processOrgLookupUpload,
	}
}

// fetchOrgLookup reads the lookup table resource, which is an object
// wrapping column metadata and row data rather than a record list.
// Header metadata is kept verbatim because the save action echoes it
// back to the backend.
func fetchOrgLookup(ctx context.Context, api *beeforce.Client) (headers []map[string]any, data []map[string]any, err error) {
	resp, err := api.Get(ctx, orgLookupPath)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != 200 {
		return nil, nil, fmt.Errorf("fetch lookup table: status %d", resp.StatusCode)
	}

	var raw struct {
		Headers []map[string]any `json:"headers"`
		Content []map[string]any `json:"content"`
		Data    []map[string]any `json:"data"`
	}
	if err := resp.JSON(&raw); err != nil {
		return nil, nil, fmt.Errorf("fetch lookup table: %w", err)
	}

	sort.SliceStable(raw.Headers, func(i, j int) bool {
		a, aOK := numOf(raw.Headers[i]["sequence"])
		b, bOK := numOf(raw.Headers[j]["sequence"])
		if !aOK {
			a = 999
		}
		if !bOK {
			b = 999
		}
		return a < b
	})

	data = raw.Content
	if data == nil {
		data = raw.Data
	}
	return raw.Headers, data, nil
}

func orgLookupColumns(headers []map[string]any) (all []string, input []string) {
	for _, h := range headers {
		name, _ := h["data"].(string)
		if name == "" {
			continue
		}
		all = append(all, name)
		if kind, _ := h["type"].(string); kind == "INPUT" {
			input = append(input, name)
		}
	}
	return all, input
}

func orgLookupTable(ctx context.Context, api *beeforce.Client) ([]string, [][]any, error) {
	headers, data, err := fetchOrgLookup(ctx, api)
	if err != nil {
		return nil, nil, err
	}
	columns, _ := orgLookupColumns(headers)
	rows := make([][]any, 0, len(data))
	for _, rec := range data {
		row := make([]any, len(columns))
		for i, column := range columns {
			row[i] = rec[column]
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}

func orgLookupSheets(ctx context.Context, api *beeforce.Client) ([]tabular.Sheet, error) {
	columns, rows, err := orgLookupTable(ctx, api)
	if err != nil {
		return nil, err
	}
	return []tabular.Sheet{{Name: "Existing_Data", Columns: columns, Rows: rows}}, nil
}

// processOrgLookupUpload validates that every INPUT column is filled,
// then replaces the whole table with a single SAVE action. Validation
// failures abort the save so a half-filled sheet cannot wipe data.
func processOrgLookupUpload(ctx context.Context, api *beeforce.Client, rows []tabular.Row) []Result {
	headers, _, err := fetchOrgLookup(ctx, api)
	if err != nil {
		return []Result{{Row: 1, Action: ActionError, Status: StatusFailed, Message: err.Error()}}
	}
	allColumns, inputColumns := orgLookupColumns(headers)

	var results []Result
	var records []map[string]any
	for i, row := range rows {
		rowNo := i + 1
		blank := ""
		for _, column := range inputColumns {
			if row.IsBlank(column) {
				blank = column
				break
			}
		}
		if blank != "" {
			results = append(results, Result{
				Row:     rowNo,
				Action:  ActionError,
				Status:  StatusFailed,
				Message: fmt.Sprintf("%s: INPUT field cannot be empty", blank),
			})
			continue
		}

		record := map[string]any{}
		for _, column := range allColumns {
			if v := row.Get(column); v != "" {
				record[column] = v
			}
		}
		if len(record) > 0 {
			records = append(records, record)
		}
	}

	if len(results) > 0 {
		return results
	}
	if len(records) == 0 {
		return []Result{{Row: 1, Action: ActionError, Status: StatusFailed, Message: "no valid rows found to upload"}}
	}

	payload := map[string]any{
		"action": "SAVE",
		"table": map[string]any{
			"entityType": "ORGANIZATION_LOCATION",
			"headers":    headers,
			"data":       records,
		},
	}

	resp, err := api.Post(ctx, orgLookupActionPath, payload)
	if err != nil {
		return []Result{{Row: 1, Action: ActionUpdate, Status: StatusFailed, Message: "network error: " + err.Error()}}
	}
	result := Result{
		Row:        1,
		Name:       "ORGANIZATION_LOCATION",
		Action:     ActionUpdate,
		HTTPStatus: resp.StatusCode,
		Status:     StatusSuccess,
		Message:    fmt.Sprintf("%d rows saved", len(records)),
		Entries:    len(records),
	}
	if !resp.OK() {
		result.Status = StatusFailed
		result.Message = resp.Text()
	}
	return []Result{result}
}
