package schema

import (
	"context"
	"fmt"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/tabular"
)

// BuildTemplate renders a module's upload template workbook. Reference
// sheets that fail to fetch degrade to headers only so a flaky lookup
// endpoint never blocks the download.
func BuildTemplate(ctx context.Context, api *beeforce.Client, sch *EntitySchema) (string, []byte, error) {
	var sheets []tabular.Sheet

	switch {
	case sch.TemplateSheets != nil:
		custom, err := sch.TemplateSheets(ctx, api)
		if err != nil {
			return "", nil, err
		}
		sheets = custom

	case sch.DynamicColumns:
		records, err := api.ListRecords(ctx, sch.BasePath)
		if err != nil {
			return "", nil, err
		}
		columns := dynamicColumns(records)
		if len(columns) == 0 {
			return "", nil, fmt.Errorf("%s: no data available to derive columns", sch.Slug)
		}
		sheets = []tabular.Sheet{
			{Name: sch.TemplateSheetName(), Columns: columns},
			{Name: "Existing_Data", Columns: columns, Rows: projectRecords(records, columns)},
		}

	default:
		sheets = []tabular.Sheet{{Name: sch.TemplateSheetName(), Columns: sch.Columns}}
		for _, ref := range sch.RefSheets {
			sheet := tabular.Sheet{Name: ref.Name, Columns: ref.Columns}
			if records, err := api.ListRecords(ctx, ref.Path); err == nil {
				fields := ref.Fields
				if len(fields) == 0 {
					fields = ref.Columns
				}
				sheet.Rows = projectRecords(records, fields)
			}
			sheets = append(sheets, sheet)
		}
	}

	content, err := tabular.BuildWorkbook(sheets)
	if err != nil {
		return "", nil, err
	}
	return sch.TemplateFilename(), content, nil
}

// BuildExport renders a module's current backend data as a download.
func BuildExport(ctx context.Context, api *beeforce.Client, sch *EntitySchema) (string, []byte, error) {
	var columns []string
	var rows [][]any

	if sch.ExportTable != nil {
		var err error
		columns, rows, err = sch.ExportTable(ctx, api)
		if err != nil {
			return "", nil, err
		}
	} else {
		records, err := api.ListRecords(ctx, sch.BasePath)
		if err != nil {
			return "", nil, err
		}
		switch {
		case sch.Export != nil:
			columns, rows = sch.Export(records)
		case sch.DynamicColumns:
			columns = dynamicColumns(records)
			rows = projectRecords(records, columns)
		default:
			columns = sch.Columns
			rows = projectRecords(records, columns)
		}
	}

	var content []byte
	var err error
	if sch.ExportFormat == "csv" {
		content, err = tabular.WriteCSV(columns, rows)
	} else {
		content, err = tabular.BuildWorkbook([]tabular.Sheet{{
			Name:    sch.TemplateSheetName(),
			Columns: columns,
			Rows:    rows,
		}})
	}
	if err != nil {
		return "", nil, err
	}
	return sch.ExportFilename(), content, nil
}
