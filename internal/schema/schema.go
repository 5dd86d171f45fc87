// Package schema declares the portal's configuration modules. Each
// module is one EntitySchema value binding a REST resource path to an
// upload column layout, numbered column families, reference sheets and
// export shape; the engines in recon and tabular consume these
// declarations so the modules themselves stay data, not code.
package schema

import (
	"context"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/tabular"
)

// RefSheet is a read-only reference worksheet added to a downloadable
// template, populated live from the backend. A failed fetch degrades
// to a headers-only sheet; template downloads never hard-fail on it.
type RefSheet struct {
	Name    string
	Path    string
	Columns []string
	Fields  []string
}

// Family is a numbered column family: Primary1..PrimaryN gate the
// slots, Build turns one populated slot into a sub-entry object.
// OpenEnded families are ordered range lists where the element with
// the highest startMinute is marked max and loses its endMinute, per
// the backend's convention for open-ended ranges.
type Family struct {
	Key       string
	Primary   string
	Slots     int
	Build     func(r tabular.Row, slot int) (map[string]any, error)
	OpenEnded bool
	DedupeKey func(entry map[string]any) (string, bool)
}

// RowEntry accumulates one sub-entry per upload row into the group's
// payload; used by modules whose entries do not fit numbered slots
// (one logical entity spanning several rows).
type RowEntry struct {
	Key       string
	Build     func(r tabular.Row) (map[string]any, error)
	DedupeKey func(entry map[string]any) (string, bool)
}

// MergeSpec makes updates write-preserving: before a PUT the engine
// fetches the existing record and carries each existing sub-entry id
// onto the uploaded entry that references the same MatchField id.
type MergeSpec struct {
	EntriesKey string
	MatchField string
}

// Result is one row of an upload (or delete) outcome table.
type Result struct {
	Row        int
	Name       string
	Action     string
	Entries    int
	HTTPStatus int
	Status     string
	Message    string
}

const (
	ActionCreate = "Create"
	ActionUpdate = "Update"
	ActionDelete = "Delete"
	ActionError  = "Error"

	StatusSuccess = "Success"
	StatusFailed  = "Failed"
)

// ProcessFunc replaces the generic reconciliation flow for modules
// with bespoke backend choreography (punches, timecards).
type ProcessFunc func(ctx context.Context, api *beeforce.Client, rows []tabular.Row) []Result

type EntitySchema struct {
	Slug    string
	Title   string
	Caption string

	BasePath      string
	TemplateSheet string
	Columns       []string
	RefSheets     []RefSheet

	IDColumn   string
	NameColumn string
	Mandatory  []string

	// GroupRows merges rows sharing a group key (numeric id first,
	// else the natural key) into one create/update call.
	GroupRows bool

	BaseFields func(r tabular.Row) (map[string]any, error)
	Families   []Family
	RowEntries *RowEntry

	// RequireEntries lists payload keys that must hold at least one
	// sub-entry for the group to be submitted.
	RequireEntries []string

	// IncludeIDInPayload mirrors backends that want the id repeated in
	// the PUT body, not only in the URL.
	IncludeIDInPayload bool

	MergeEntries *MergeSpec

	// Export renders fetched records into a download table. Nil means
	// the generic projection of Columns.
	Export       func(records []beeforce.Record) ([]string, [][]any)
	ExportFormat string

	// DynamicColumns derives template and export columns from the
	// records the backend returns instead of a declared layout.
	DynamicColumns bool

	// TemplateSheets and ExportTable override generic download
	// generation for resources whose wire shape is not a flat record
	// list.
	TemplateSheets func(ctx context.Context, api *beeforce.Client) ([]tabular.Sheet, error)
	ExportTable    func(ctx context.Context, api *beeforce.Client) ([]string, [][]any, error)

	UploadDisabled bool
	DeleteDisabled bool
	ExportDisabled bool

	Process ProcessFunc
}

func (s *EntitySchema) IDColumnName() string {
	if s.IDColumn == "" {
		return "id"
	}
	return s.IDColumn
}

func (s *EntitySchema) TemplateSheetName() string {
	if s.TemplateSheet == "" {
		return "Template"
	}
	return s.TemplateSheet
}

func (s *EntitySchema) TemplateFilename() string {
	return s.Slug + "_template.xlsx"
}

func (s *EntitySchema) ExportFilename() string {
	if s.ExportFormat == "csv" {
		return s.Slug + "_export.csv"
	}
	return s.Slug + "_export.xlsx"
}
