package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/tabular"
)

// scheduleStartDate anchors recurring paycode event schedules; the
// backend repeats them yearly from this date.
const scheduleStartDate = "2026-01-01"

// Catalog returns every portal module in sidebar order.
func Catalog() []*EntitySchema {
	return catalog
}

// Lookup resolves a module by its URL slug.
func Lookup(slug string) (*EntitySchema, bool) {
	for _, sch := range catalog {
		if sch.Slug == slug {
			return sch, true
		}
	}
	return nil, false
}

var catalog = []*EntitySchema{
	paycodesSchema(),
	paycodeEventsSchema(),
	paycodeCombinationsSchema(),
	paycodeEventSetsSchema(),
	shiftTemplatesSchema(),
	shiftTemplateSetsSchema(),
	schedulePatternsSchema(),
	schedulePatternSetsSchema(),
	accrualsSchema(),
	accrualPoliciesSchema(),
	accrualPolicySetsSchema(),
	timeoffPoliciesSchema(),
	timeoffPolicySetsSchema(),
	regularizationPoliciesSchema(),
	regularizationPolicySetsSchema(),
	rolesSchema(),
	overtimePoliciesSchema(),
	employeeLookupSchema(),
	organizationLocationLookupSchema(),
	punchSchema(),
	timecardUpdationSchema(),
}

func paycodesRef() RefSheet {
	return RefSheet{
		Name:    "Paycodes",
		Path:    apiPrefix + "paycodes",
		Columns: []string{"id", "code", "description"},
	}
}

func namedRef(name, resource string) RefSheet {
	return RefSheet{
		Name:    name,
		Path:    apiPrefix + resource,
		Columns: []string{"id", "name", "description"},
	}
}

func paycodesSchema() *EntitySchema {
	return &EntitySchema{
		Slug:          "paycodes",
		Title:         "Paycodes",
		Caption:       "Create, update, delete and download Paycodes",
		BasePath:      apiPrefix + "paycodes",
		TemplateSheet: "Paycodes",
		Columns:       []string{"id", "code", "description"},
		NameColumn:    "code",
		Mandatory:     []string{"code"},
		BaseFields: func(r tabular.Row) (map[string]any, error) {
			return map[string]any{
				"code":        r.Get("code"),
				"description": r.Get("description"),
			}, nil
		},
	}
}

func paycodeEventsSchema() *EntitySchema {
	columns := []string{
		"id",
		"Paycode Event Name",
		"Description",
		"paycode_id",
		"holiday_name",
		"holiday_date(YYYY-MM-DD)",
		"repeatWeek",
		"repeatWeekday",
	}
	return &EntitySchema{
		Slug:               "paycode_events",
		Title:              "Paycode Events",
		Caption:            "Create, update, delete and download Paycode Events",
		BasePath:           apiPrefix + "paycode_events",
		TemplateSheet:      "Paycode Events",
		Columns:            columns,
		RefSheets:          []RefSheet{paycodesRef()},
		NameColumn:         "Paycode Event Name",
		Mandatory:          []string{"Paycode Event Name", "paycode_id", "holiday_name", "holiday_date(YYYY-MM-DD)"},
		GroupRows:          true,
		IncludeIDInPayload: true,
		BaseFields: func(r tabular.Row) (map[string]any, error) {
			paycode, err := idRef(r, "paycode_id")
			if err != nil {
				return nil, err
			}
			name := r.Get("Paycode Event Name")
			return map[string]any{
				"name":        name,
				"description": textOr(r, "Description", name),
				"paycode":     paycode,
			}, nil
		},
		RowEntries: &RowEntry{
			Key: "schedules",
			Build: func(r tabular.Row) (map[string]any, error) {
				raw := r.Get("holiday_date(YYYY-MM-DD)")
				normalized, ok := tabular.NormalizeDate(raw)
				if !ok {
					return nil, fmt.Errorf("invalid date %s", raw)
				}
				date, err := time.Parse("2006-01-02", normalized)
				if err != nil {
					return nil, fmt.Errorf("invalid date %s", raw)
				}
				return map[string]any{
					"name":          r.Get("holiday_name"),
					"startDate":     scheduleStartDate,
					"repeatYear":    date.Year(),
					"repeatMonth":   int(date.Month()),
					"repeatDay":     date.Day(),
					"repeatWeek":    textOr(r, "repeatWeek", "*"),
					"repeatWeekday": textOr(r, "repeatWeekday", "*"),
				}, nil
			},
		},
		ExportFormat: "csv",
		Export: func(records []beeforce.Record) ([]string, [][]any) {
			var rows [][]any
			for _, rec := range records {
				for _, s := range entryList(rec, "schedules") {
					holiday := ""
					if y, ok := numOf(s["repeatYear"]); ok {
						m, _ := numOf(s["repeatMonth"])
						d, _ := numOf(s["repeatDay"])
						holiday = fmt.Sprintf("%04d-%02d-%02d", int(y), int(m), int(d))
					}
					rows = append(rows, []any{
						rec["id"],
						rec["name"],
						rec["description"],
						fieldValue(rec, "paycode_id"),
						s["name"],
						holiday,
						starOr(s["repeatWeek"]),
						starOr(s["repeatWeekday"]),
					})
				}
			}
			return columns, rows
		},
	}
}

func starOr(v any) any {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	if v == nil {
		return "*"
	}
	return v
}

func paycodeCombinationsSchema() *EntitySchema {
	return &EntitySchema{
		Slug:          "paycode_combinations",
		Title:         "Paycode Combinations",
		Caption:       "Combine two paycodes into a third",
		BasePath:      apiPrefix + "paycode_combinations",
		TemplateSheet: "Combinations",
		Columns:       []string{"id", "first_paycode", "second_paycode", "combined_paycode"},
		RefSheets:     []RefSheet{paycodesRef()},
		Mandatory:     []string{"first_paycode", "second_paycode", "combined_paycode"},
		BaseFields: func(r tabular.Row) (map[string]any, error) {
			fields := map[string]any{}
			for column, key := range map[string]string{
				"first_paycode":    "firstPaycode",
				"second_paycode":   "secondPaycode",
				"combined_paycode": "combinedPaycode",
			} {
				ref, err := idRef(r, column)
				if err != nil {
					return nil, err
				}
				fields[key] = ref
			}
			return fields, nil
		},
		Export: func(records []beeforce.Record) ([]string, [][]any) {
			columns := []string{"id", "first_paycode", "second_paycode", "combined_paycode"}
			rows := make([][]any, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []any{
					rec["id"],
					exportValue(rec["firstPaycode"]),
					exportValue(rec["secondPaycode"]),
					exportValue(rec["combinedPaycode"]),
				})
			}
			return columns, rows
		},
	}
}

func paycodeEventSetsSchema() *EntitySchema {
	columns := []string{"id", "name", "description"}
	for i := 1; i <= 5; i++ {
		columns = append(columns, col("PaycodeEvent", i), col("Priority", i))
	}
	return &EntitySchema{
		Slug:          "paycode_event_sets",
		Title:         "Paycode Event Sets",
		Caption:       "Create, update, delete and download Paycode Event Sets",
		BasePath:      apiPrefix + "paycode_event_sets",
		TemplateSheet: "Paycode_Event_Sets",
		Columns:       columns,
		RefSheets:     []RefSheet{namedRef("Available_Paycode_Events", "paycode_events")},
		Mandatory:     []string{"name"},
		NameColumn:    "name",
		BaseFields:    namedBaseFields,
		Families: []Family{{
			Key:     "entries",
			Primary: "PaycodeEvent",
			Slots:   5,
			Build: func(r tabular.Row, slot int) (map[string]any, error) {
				eventID, err := cellInt(r, col("PaycodeEvent", slot))
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"paycodeEvent": map[string]any{"id": eventID},
					"priority":     r.IntOr(col("Priority", slot), slot),
					"overridable":  false,
				}, nil
			},
			DedupeKey: dedupeByRef("paycodeEvent"),
		}},
		RequireEntries: []string{"entries"},
		MergeEntries:   &MergeSpec{EntriesKey: "entries", MatchField: "paycodeEvent"},
		Export:         prioritizedEntryExport("PaycodeEvent", "paycodeEvent"),
	}
}

// namedBaseFields is the common name/description base where a blank
// description falls back to the name.
func namedBaseFields(r tabular.Row) (map[string]any, error) {
	name := r.Get("name")
	return map[string]any{
		"name":        name,
		"description": textOr(r, "description", name),
	}, nil
}

// prioritizedEntryExport flattens set entries ordered by priority into
// numbered reference/priority column pairs.
func prioritizedEntryExport(columnPrefix, refField string) func([]beeforce.Record) ([]string, [][]any) {
	return func(records []beeforce.Record) ([]string, [][]any) {
		maxEntries := 0
		for _, rec := range records {
			if n := len(entryList(rec, "entries")); n > maxEntries {
				maxEntries = n
			}
		}
		columns := []string{"id", "name", "description"}
		for i := 1; i <= maxEntries; i++ {
			columns = append(columns, col(columnPrefix, i), col("Priority", i))
		}
		rows := make([][]any, 0, len(records))
		for _, rec := range records {
			entries := entryList(rec, "entries")
			sort.SliceStable(entries, func(i, j int) bool {
				a, _ := numOf(entries[i]["priority"])
				b, _ := numOf(entries[j]["priority"])
				return a < b
			})
			row := []any{rec["id"], rec["name"], rec["description"]}
			for _, entry := range entries {
				row = append(row, exportValue(entry[refField]), entry["priority"])
			}
			rows = append(rows, row)
		}
		return columns, rows
	}
}

func shiftTemplatesSchema() *EntitySchema {
	columns := []string{
		"name", "description", "startTime", "endTime",
		"beforeStartToleranceMinute", "afterStartToleranceMinute",
		"lateInToleranceMinute", "earlyOutToleranceMinute",
		"report",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	}
	for i := 1; i <= 5; i++ {
		columns = append(columns, col("paycode_id", i), col("paycode_startMinute", i))
		if i < 5 {
			columns = append(columns, col("paycode_endMinute", i))
		}
	}
	for i := 1; i <= 2; i++ {
		columns = append(columns, col("exception_paycode_id", i), col("exception_type", i), col("exception_startMinute", i))
		if i < 2 {
			columns = append(columns, col("exception_endMinute", i))
		}
	}
	for i := 1; i <= 2; i++ {
		columns = append(columns, col("adjustment_type_id", i), col("adjustment_startMinute", i))
		if i < 2 {
			columns = append(columns, col("adjustment_endMinute", i))
		}
		columns = append(columns, col("adjustment_amountMinute", i))
	}
	for i := 1; i <= 2; i++ {
		columns = append(columns, col("rounding_startMinute", i))
		if i < 2 {
			columns = append(columns, col("rounding_endMinute", i))
		}
		columns = append(columns, col("rounding_roundMinute", i))
	}
	columns = append(columns, "optionalShiftTemplateId")

	return &EntitySchema{
		Slug:          "shift_templates",
		Title:         "Shift Templates",
		Caption:       "Create Shift Templates (create only, no update)",
		BasePath:      apiPrefix + "shift_templates",
		TemplateSheet: "Template",
		Columns:       columns,
		RefSheets: []RefSheet{{
			Name:    "Paycodes_Master",
			Path:    apiPrefix + "paycodes",
			Columns: []string{"id", "code", "description"},
		}},
		Mandatory:      []string{"name", "startTime", "endTime"},
		NameColumn:     "name",
		DeleteDisabled: true,
		ExportDisabled: true,
		BaseFields: func(r tabular.Row) (map[string]any, error) {
			fields := map[string]any{
				"name":        r.Get("name"),
				"description": r.Get("description"),
				"startTime":   r.Get("startTime"),
				"endTime":     r.Get("endTime"),
				"report":      r.Bool("report", false),
			}
			for _, column := range []string{
				"beforeStartToleranceMinute", "afterStartToleranceMinute",
				"lateInToleranceMinute", "earlyOutToleranceMinute",
			} {
				v, err := cellInt(r, column)
				if err != nil {
					return nil, err
				}
				fields[column] = v
			}
			for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
				fields[day] = r.Bool(day, false)
			}
			if !r.IsBlank("optionalShiftTemplateId") {
				ref, err := idRef(r, "optionalShiftTemplateId")
				if err != nil {
					return nil, err
				}
				fields["optionalShiftTemplate"] = ref
			}
			return fields, nil
		},
		Families: []Family{
			{
				Key:       "paycodes",
				Primary:   "paycode_id",
				Slots:     5,
				OpenEnded: true,
				Build: func(r tabular.Row, slot int) (map[string]any, error) {
					if r.IsBlank(col("paycode_startMinute", slot)) {
						return nil, nil
					}
					paycode, err := idRef(r, col("paycode_id", slot))
					if err != nil {
						return nil, err
					}
					start, err := cellInt(r, col("paycode_startMinute", slot))
					if err != nil {
						return nil, err
					}
					entry := map[string]any{"paycode": paycode, "startMinute": start}
					if end, ok := r.Int(col("paycode_endMinute", slot)); ok {
						entry["endMinute"] = end
					}
					return entry, nil
				},
				DedupeKey: dedupeByRef("paycode"),
			},
			{
				Key:       "exceptions",
				Primary:   "exception_paycode_id",
				Slots:     2,
				OpenEnded: true,
				Build: func(r tabular.Row, slot int) (map[string]any, error) {
					if r.IsBlank(col("exception_type", slot)) || r.IsBlank(col("exception_startMinute", slot)) {
						return nil, nil
					}
					paycode, err := idRef(r, col("exception_paycode_id", slot))
					if err != nil {
						return nil, err
					}
					start, err := cellInt(r, col("exception_startMinute", slot))
					if err != nil {
						return nil, err
					}
					entry := map[string]any{
						"paycode":     paycode,
						"type":        r.Get(col("exception_type", slot)),
						"startMinute": start,
					}
					if end, ok := r.Int(col("exception_endMinute", slot)); ok {
						entry["endMinute"] = end
					}
					return entry, nil
				},
			},
			{
				Key:       "adjustments",
				Primary:   "adjustment_type_id",
				Slots:     2,
				OpenEnded: true,
				Build: func(r tabular.Row, slot int) (map[string]any, error) {
					if r.IsBlank(col("adjustment_startMinute", slot)) || r.IsBlank(col("adjustment_amountMinute", slot)) {
						return nil, nil
					}
					adjustmentType, err := idRef(r, col("adjustment_type_id", slot))
					if err != nil {
						return nil, err
					}
					start, err := cellInt(r, col("adjustment_startMinute", slot))
					if err != nil {
						return nil, err
					}
					amount, err := cellInt(r, col("adjustment_amountMinute", slot))
					if err != nil {
						return nil, err
					}
					entry := map[string]any{
						"adjustmentType": adjustmentType,
						"startMinute":    start,
						"amountMinute":   amount,
					}
					if end, ok := r.Int(col("adjustment_endMinute", slot)); ok {
						entry["endMinute"] = end
					}
					return entry, nil
				},
			},
			{
				Key:       "exceptionRoundings",
				Primary:   "rounding_startMinute",
				Slots:     2,
				OpenEnded: true,
				Build: func(r tabular.Row, slot int) (map[string]any, error) {
					if r.IsBlank(col("rounding_roundMinute", slot)) {
						return nil, nil
					}
					start, err := cellInt(r, col("rounding_startMinute", slot))
					if err != nil {
						return nil, err
					}
					round, err := cellInt(r, col("rounding_roundMinute", slot))
					if err != nil {
						return nil, err
					}
					entry := map[string]any{"startMinute": start, "roundMinute": round}
					if end, ok := r.Int(col("rounding_endMinute", slot)); ok {
						entry["endMinute"] = end
					}
					return entry, nil
				},
			},
		},
	}
}

func shiftTemplateSetsSchema() *EntitySchema {
	columns := []string{"id", "name", "description"}
	for i := 1; i <= 4; i++ {
		columns = append(columns, col("entryId", i))
	}
	return &EntitySchema{
		Slug:          "shift_template_sets",
		Title:         "Shift Template Sets",
		Caption:       "Create, update, delete and download Shift Template Sets",
		BasePath:      apiPrefix + "shift_template_sets",
		TemplateSheet: "Template",
		Columns:       columns,
		RefSheets:     []RefSheet{namedRef("Existing_Shifts", "shift_templates")},
		Mandatory:     []string{"name"},
		NameColumn:    "name",
		BaseFields:    namedBaseFields,
		Families: []Family{{
			Key:     "entries",
			Primary: "entryId",
			// Extra entryId columns past the template's four are
			// accepted up to this bound.
			Slots: 50,
			Build: func(r tabular.Row, slot int) (map[string]any, error) {
				id, err := cellInt(r, col("entryId", slot))
				if err != nil {
					return nil, err
				}
				return map[string]any{"id": id}, nil
			},
			DedupeKey: dedupeByID,
		}},
		RequireEntries: []string{"entries"},
		ExportFormat:   "csv",
		Export:         entryIDExport,
	}
}

func schedulePatternsSchema() *EntitySchema {
	columns := []string{"id", "name", "description"}
	for i := 1; i <= 7; i++ {
		columns = append(columns, col("shiftTemplateId", i))
	}
	return &EntitySchema{
		Slug:          "schedule_patterns",
		Title:         "Schedule Patterns",
		Caption:       "Create, update, delete and download Schedule Patterns",
		BasePath:      apiPrefix + "schedule_patterns",
		TemplateSheet: "Schedule_Patterns",
		Columns:       columns,
		RefSheets:     []RefSheet{namedRef("Existing_Shifts", "shift_templates")},
		Mandatory:     []string{"name"},
		NameColumn:    "name",
		BaseFields:    namedBaseFields,
		Families: []Family{{
			Key:     "entries",
			Primary: "shiftTemplateId",
			Slots:   7,
			Build: func(r tabular.Row, slot int) (map[string]any, error) {
				shift, err := idRef(r, col("shiftTemplateId", slot))
				if err != nil {
					return nil, err
				}
				return map[string]any{"dayIndex": slot, "shiftTemplate": shift}, nil
			},
		}},
		RequireEntries: []string{"entries"},
		Export: func(records []beeforce.Record) ([]string, [][]any) {
			columns := []string{"id", "name", "description"}
			for i := 1; i <= 7; i++ {
				columns = append(columns, col("shiftTemplateId", i))
			}
			rows := make([][]any, 0, len(records))
			for _, rec := range records {
				row := make([]any, len(columns))
				row[0], row[1], row[2] = rec["id"], rec["name"], rec["description"]
				for _, entry := range entryList(rec, "entries") {
					if day, ok := numOf(entry["dayIndex"]); ok && day >= 1 && day <= 7 {
						row[2+int(day)] = exportValue(entry["shiftTemplate"])
					}
				}
				rows = append(rows, row)
			}
			return columns, rows
		},
	}
}

func schedulePatternSetsSchema() *EntitySchema {
	return entryIDSetSchema(
		"schedule_pattern_sets",
		"Schedule Pattern Sets",
		namedRef("Existing_Patterns", "schedule_patterns"),
	)
}

// entryIDSetSchema covers set resources whose entries are bare id
// references collected from entryId1..4 columns.
func entryIDSetSchema(slug, title string, ref RefSheet) *EntitySchema {
	columns := []string{"id", "name", "description"}
	for i := 1; i <= 4; i++ {
		columns = append(columns, col("entryId", i))
	}
	return &EntitySchema{
		Slug:          slug,
		Title:         title,
		Caption:       "Create, update, delete and download " + title,
		BasePath:      apiPrefix + slug,
		TemplateSheet: "Template",
		Columns:       columns,
		RefSheets:     []RefSheet{ref},
		Mandatory:     []string{"name"},
		NameColumn:    "name",
		BaseFields:    namedBaseFields,
		Families: []Family{{
			Key:     "entries",
			Primary: "entryId",
			Slots:   4,
			Build: func(r tabular.Row, slot int) (map[string]any, error) {
				id, err := cellInt(r, col("entryId", slot))
				if err != nil {
					return nil, err
				}
				return map[string]any{"id": id}, nil
			},
			DedupeKey: dedupeByID,
		}},
		RequireEntries: []string{"entries"},
		Export:         entryIDExport,
	}
}

func accrualsSchema() *EntitySchema {
	return &EntitySchema{
		Slug:               "accruals",
		Title:              "Accruals",
		Caption:            "Create, update, delete and download Accruals",
		BasePath:           apiPrefix + "accruals",
		TemplateSheet:      "Accruals_Upload",
		Columns:            []string{"id", "name", "description"},
		RefSheets:          []RefSheet{namedRef("Existing_Accruals", "accruals")},
		Mandatory:          []string{"name"},
		NameColumn:         "name",
		IncludeIDInPayload: true,
		BaseFields:         namedBaseFields,
	}
}

func accrualPoliciesSchema() *EntitySchema {
	return &EntitySchema{
		Slug:          "accrual_policies",
		Title:         "Accrual Policies",
		Caption:       "Create, update, delete and download Accrual Policies",
		BasePath:      apiPrefix + "accrual_policies",
		TemplateSheet: "Accrual_Policies",
		Columns:       []string{"id", "name", "description", "accrual_id", "limitMinute", "carryoverMinute"},
		RefSheets:     []RefSheet{namedRef("Existing_Accruals", "accruals")},
		Mandatory:     []string{"name", "accrual_id"},
		NameColumn:    "name",
		IncludeIDInPayload: true,
		BaseFields: func(r tabular.Row) (map[string]any, error) {
			accrual, err := idRef(r, "accrual_id")
			if err != nil {
				return nil, err
			}
			name := r.Get("name")
			return map[string]any{
				"name":            name,
				"description":     textOr(r, "description", name),
				"accrual":         accrual,
				"limitMinute":     intOrNull(r, "limitMinute"),
				"carryoverMinute": intOrNull(r, "carryoverMinute"),
			}, nil
		},
	}
}

func accrualPolicySetsSchema() *EntitySchema {
	return &EntitySchema{
		Slug:          "accrual_policy_sets",
		Title:         "Accrual Policy Sets",
		Caption:       "Create, update, delete and download Accrual Policy Sets",
		BasePath:      apiPrefix + "accrual_policy_sets",
		TemplateSheet: "Accrual Policy Sets",
		Columns:       []string{"id", "name", "description", "policy_id"},
		RefSheets:     []RefSheet{namedRef("Existing_Policies", "accrual_policies")},
		Mandatory:     []string{"name", "policy_id"},
		NameColumn:    "name",
		GroupRows:     true,
		BaseFields:    namedBaseFields,
		RowEntries: &RowEntry{
			Key: "entries",
			Build: func(r tabular.Row) (map[string]any, error) {
				id, err := cellInt(r, "policy_id")
				if err != nil {
					return nil, err
				}
				return map[string]any{"id": id}, nil
			},
			DedupeKey: dedupeByID,
		},
		ExportFormat: "csv",
		Export: func(records []beeforce.Record) ([]string, [][]any) {
			columns := []string{"id", "name", "description", "policy_id"}
			var rows [][]any
			for _, rec := range records {
				for _, entry := range entryList(rec, "entries") {
					rows = append(rows, []any{rec["id"], rec["name"], rec["description"], entry["id"]})
				}
			}
			return columns, rows
		},
	}
}

func timeoffPoliciesSchema() *EntitySchema {
	return &EntitySchema{
		Slug:          "timeoff_policies",
		Title:         "Time-off Policies",
		Caption:       "Create, update, delete and download Time-off Policies",
		BasePath:      apiPrefix + "timeoff_policies",
		TemplateSheet: "Timeoff_Policies",
		Columns:       []string{"id", "name", "description", "paycode_id", "maxDaysPerRequest", "minNoticeDay"},
		RefSheets:     []RefSheet{paycodesRef()},
		Mandatory:     []string{"name", "paycode_id"},
		NameColumn:    "name",
		BaseFields: func(r tabular.Row) (map[string]any, error) {
			paycode, err := idRef(r, "paycode_id")
			if err != nil {
				return nil, err
			}
			name := r.Get("name")
			return map[string]any{
				"name":              name,
				"description":       textOr(r, "description", name),
				"paycode":           paycode,
				"maxDaysPerRequest": intOrNull(r, "maxDaysPerRequest"),
				"minNoticeDay":      intOrNull(r, "minNoticeDay"),
			}, nil
		},
	}
}

func timeoffPolicySetsSchema() *EntitySchema {
	return &EntitySchema{
		Slug:               "timeoff_policy_sets",
		Title:              "Time-off Policy Sets",
		Caption:            "Create, update, delete and download Time-off Policy Sets",
		BasePath:           apiPrefix + "timeoff_policy_sets",
		TemplateSheet:      "Timeoff Policy Sets",
		Columns:            []string{"id", "name", "description", "policy_id", "paycode_id"},
		RefSheets:          []RefSheet{paycodesRef()},
		Mandatory:          []string{"name", "policy_id", "paycode_id"},
		NameColumn:         "name",
		GroupRows:          true,
		IncludeIDInPayload: true,
		BaseFields:         namedBaseFields,
		RowEntries: &RowEntry{
			Key: "entries",
			Build: func(r tabular.Row) (map[string]any, error) {
				policyID, err := cellInt(r, "policy_id")
				if err != nil {
					return nil, err
				}
				paycode, err := idRef(r, "paycode_id")
				if err != nil {
					return nil, err
				}
				return map[string]any{"id": policyID, "paycode": paycode}, nil
			},
			DedupeKey: dedupeByID,
		},
		ExportFormat: "csv",
		Export: func(records []beeforce.Record) ([]string, [][]any) {
			columns := []string{"id", "name", "description", "policy_id", "paycode_id"}
			var rows [][]any
			for _, rec := range records {
				for _, entry := range entryList(rec, "entries") {
					rows = append(rows, []any{
						rec["id"], rec["name"], rec["description"],
						entry["id"], exportValue(entry["paycode"]),
					})
				}
			}
			return columns, rows
		},
	}
}

func regularizationPoliciesSchema() *EntitySchema {
	return &EntitySchema{
		Slug:          "regularization_policies",
		Title:         "Regularization Policies",
		Caption:       "Create, update, delete and download Regularization Policies",
		BasePath:      apiPrefix + "regularization_policies",
		TemplateSheet: "Regularization_Policies",
		Columns:       []string{"id", "name", "description", "maxRequestsPerMonth", "backdatedLimitDay", "autoApprove"},
		Mandatory:     []string{"name"},
		NameColumn:    "name",
		BaseFields: func(r tabular.Row) (map[string]any, error) {
			name := r.Get("name")
			return map[string]any{
				"name":                name,
				"description":         textOr(r, "description", name),
				"maxRequestsPerMonth": intOrNull(r, "maxRequestsPerMonth"),
				"backdatedLimitDay":   intOrNull(r, "backdatedLimitDay"),
				"autoApprove":         r.Bool("autoApprove", false),
			}, nil
		},
	}
}

func regularizationPolicySetsSchema() *EntitySchema {
	return entryIDSetSchema(
		"regularization_policy_sets",
		"Regularization Policy Sets",
		namedRef("Existing_Policies", "regularization_policies"),
	)
}

func rolesSchema() *EntitySchema {
	return &EntitySchema{
		Slug:          "roles",
		Title:         "Roles",
		Caption:       "Create, update, delete and download Roles",
		BasePath:      apiPrefix + "roles",
		TemplateSheet: "Roles",
		Columns:       []string{"id", "name", "description"},
		RefSheets:     []RefSheet{namedRef("Existing_Roles", "roles")},
		Mandatory:     []string{"name"},
		NameColumn:    "name",
		BaseFields:    namedBaseFields,
	}
}

func overtimePoliciesSchema() *EntitySchema {
	columns := []string{
		"id", "name", "description", "mode",
		"minMinute", "maxDailyMinute", "maxWeeklyMinute",
		"maxMonthlyMinute", "maxQuarterlyMinute",
		"weekoffMinMinute", "weekoffMaxDailyMinute",
		"holidayMinMinute", "holidayMaxDailyMinute",
		"skipTotalizationRoundings",
	}
	for i := 1; i <= 10; i++ {
		columns = append(columns,
			col("rounding_startMinute", i),
			col("rounding_endMinute", i),
			col("rounding_roundMinute", i),
		)
	}
	for i := 1; i <= 10; i++ {
		columns = append(columns,
			col("holidayGroup", i),
			col("holidayGroup_minMinute", i),
			col("holidayGroup_maxDailyMinute", i),
		)
	}

	limitColumns := []string{
		"minMinute", "maxDailyMinute", "maxWeeklyMinute",
		"maxMonthlyMinute", "maxQuarterlyMinute",
		"weekoffMinMinute", "weekoffMaxDailyMinute",
		"holidayMinMinute", "holidayMaxDailyMinute",
	}

	return &EntitySchema{
		Slug:               "overtime_policies",
		Title:              "Overtime Policies",
		Caption:            "Create, update, delete and download Overtime Policies",
		BasePath:           apiPrefix + "overtime_policies",
		TemplateSheet:      "Overtime_Policies",
		Columns:            columns,
		Mandatory:          []string{"name"},
		NameColumn:         "name",
		IncludeIDInPayload: true,
		BaseFields: func(r tabular.Row) (map[string]any, error) {
			name := r.Get("name")
			fields := map[string]any{
				"name":                      name,
				"description":               textOr(r, "description", name),
				"mode":                      r.Get("mode"),
				"skipTotalizationRoundings": r.Bool("skipTotalizationRoundings", false),
			}
			for _, column := range limitColumns {
				fields[column] = intOrNull(r, column)
			}
			return fields, nil
		},
		Families: []Family{
			{
				Key:     "roundings",
				Primary: "rounding_startMinute",
				Slots:   10,
				Build: func(r tabular.Row, slot int) (map[string]any, error) {
					// A rounding band needs all three bounds; partial
					// slots are skipped rather than rejected.
					start, okStart := r.Int(col("rounding_startMinute", slot))
					end, okEnd := r.Int(col("rounding_endMinute", slot))
					round, okRound := r.Int(col("rounding_roundMinute", slot))
					if !okStart || !okEnd || !okRound {
						return nil, nil
					}
					return map[string]any{
						"startMinute": start,
						"endMinute":   end,
						"roundMinute": round,
					}, nil
				},
			},
			{
				Key:     "holidayGroupLimits",
				Primary: "holidayGroup",
				Slots:   10,
				Build: func(r tabular.Row, slot int) (map[string]any, error) {
					return map[string]any{
						"holidayGroup":   r.Get(col("holidayGroup", slot)),
						"minMinute":      intOrNull(r, col("holidayGroup_minMinute", slot)),
						"maxDailyMinute": intOrNull(r, col("holidayGroup_maxDailyMinute", slot)),
					}, nil
				},
			},
		},
		Export: overtimePoliciesExport,
	}
}

func overtimePoliciesExport(records []beeforce.Record) ([]string, [][]any) {
	base := []string{
		"id", "name", "description", "mode",
		"minMinute", "maxDailyMinute", "maxWeeklyMinute",
		"maxMonthlyMinute", "maxQuarterlyMinute",
		"weekoffMinMinute", "weekoffMaxDailyMinute",
		"holidayMinMinute", "holidayMaxDailyMinute",
		"skipTotalizationRoundings",
	}
	maxRoundings, maxGroups := 0, 0
	for _, rec := range records {
		if n := len(entryList(rec, "roundings")); n > maxRoundings {
			maxRoundings = n
		}
		if n := len(entryList(rec, "holidayGroupLimits")); n > maxGroups {
			maxGroups = n
		}
	}
	columns := append([]string{}, base...)
	for i := 1; i <= maxRoundings; i++ {
		columns = append(columns, col("rounding_startMinute", i), col("rounding_endMinute", i), col("rounding_roundMinute", i))
	}
	for i := 1; i <= maxGroups; i++ {
		columns = append(columns, col("holidayGroup", i), col("holidayGroup_minMinute", i), col("holidayGroup_maxDailyMinute", i))
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, 0, len(columns))
		for _, column := range base {
			row = append(row, rec[column])
		}
		roundings := entryList(rec, "roundings")
		for i := 0; i < maxRoundings; i++ {
			if i < len(roundings) {
				row = append(row, roundings[i]["startMinute"], roundings[i]["endMinute"], roundings[i]["roundMinute"])
			} else {
				row = append(row, nil, nil, nil)
			}
		}
		groups := entryList(rec, "holidayGroupLimits")
		for i := 0; i < maxGroups; i++ {
			if i < len(groups) {
				row = append(row, groups[i]["holidayGroup"], groups[i]["minMinute"], groups[i]["maxDailyMinute"])
			} else {
				row = append(row, nil, nil, nil)
			}
		}
		rows = append(rows, row)
	}
	return columns, rows
}

func employeeLookupSchema() *EntitySchema {
	return &EntitySchema{
		Slug:           "employee_lookup_table",
		Title:          "Employee Lookup Table",
		Caption:        "Download template and existing employee lookup data",
		BasePath:       apiPrefix + "employee_lookup_table",
		TemplateSheet:  "Template",
		DynamicColumns: true,
		UploadDisabled: true,
		DeleteDisabled: true,
		ExportFormat:   "csv",
	}
}

func punchSchema() *EntitySchema {
	return &EntitySchema{
		Slug:           "punch",
		Title:          "Punch Update",
		Caption:        "Bulk upload employee punches",
		BasePath:       apiPrefix + "punches",
		TemplateSheet:  "Punches",
		Columns:        []string{"externalNumber", "date", "time"},
		DeleteDisabled: true,
		ExportDisabled: true,
		Process:        processPunches,
	}
}

func timecardUpdationSchema() *EntitySchema {
	return &EntitySchema{
		Slug:           "timecard_updation",
		Title:          "Timecard Updation",
		Caption:        "Update timecard paycodes from a spreadsheet",
		BasePath:       apiPrefix + "timecards",
		TemplateSheet:  "Timecards",
		Columns:        []string{"externalNumber", "attendanceDate", "paycode_id"},
		RefSheets:      []RefSheet{paycodesRef()},
		DeleteDisabled: true,
		ExportDisabled: true,
		Process:        processTimecardUpdates,
	}
}

// checkColumns is a catalog self-check used by tests: mandatory and
// name columns must exist in the declared layout.
func (s *EntitySchema) checkColumns() error {
	declared := map[string]bool{}
	for _, column := range s.Columns {
		declared[column] = true
	}
	for _, column := range s.Mandatory {
		if !declared[column] {
			return fmt.Errorf("%s: mandatory column %q not declared", s.Slug, column)
		}
	}
	if s.NameColumn != "" && !declared[s.NameColumn] {
		return fmt.Errorf("%s: name column %q not declared", s.Slug, s.NameColumn)
	}
	if strings.TrimSpace(s.Slug) == "" || strings.TrimSpace(s.BasePath) == "" {
		return fmt.Errorf("schema %q missing slug or base path", s.Title)
	}
	return nil
}
