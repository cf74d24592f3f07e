package sheets

import (
	"context"
	"fmt"

	"guild_stats/internal/workbook"

	"github.com/rs/zerolog/log"
)

// WorkbookReader turns a whole spreadsheet into a workbook so it can go through
// the same ingestion as an uploaded file
type WorkbookReader struct {
	api SheetsAPI
}

// NewWorkbookReader creates a reader over the given API client
func NewWorkbookReader(api SheetsAPI) *WorkbookReader {
	return &WorkbookReader{
		api: api,
	}
}

// ReadWorkbook reads every tab. Empty tabs are kept so the ingestor can
// report them as skipped.
func (r *WorkbookReader) ReadWorkbook(ctx context.Context, spreadsheetID string) (*workbook.Workbook, error) {
	titles, err := r.api.ListSheets(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", spreadsheetID)
	}

	wb := &workbook.Workbook{Sheets: make([]workbook.Sheet, 0, len(titles))}
	for _, title := range titles {
		values, err := r.api.ReadSheet(ctx, spreadsheetID, sheetRange(title, ""))
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", title, err)
		}

		// cleared cells below the data come back as empty strings
		for len(values) > 0 && isBlankRow(values[len(values)-1]) {
			values = values[:len(values)-1]
		}

		rows := make([][]string, 0, len(values))
		for _, row := range values {
			rows = append(rows, RowStrings(row))
		}
		wb.Sheets = append(wb.Sheets, workbook.Sheet{Name: title, Rows: rows})

		log.Debug().
			Str("spreadsheet_id", spreadsheetID).
			Str("sheet", title).
			Int("rows", len(rows)).
			Msg("Read sheet for import")
	}

	return wb, nil
}
