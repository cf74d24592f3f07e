package sheets

import (
	"context"
)

// SheetsAPI is the slice of Google Sheets the importer and the leaderboard
// publisher need. Cell values travel as [][]interface{} because that is what
// the v4 API returns; wrap them with NewCell or RowStrings before use.
type SheetsAPI interface {
	// ListSheets returns tab titles in display order
	ListSheets(ctx context.Context, spreadsheetID string) ([]string, error)

	ReadSheet(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error)
	UpdateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error
	ClearRange(ctx context.Context, spreadsheetID, range_ string) error

	CreateSheet(ctx context.Context, spreadsheetID, sheetName string) error
	SheetExists(ctx context.Context, spreadsheetID, sheetName string) (bool, error)

	// EnsureSheetCapacity grows a tab to at least the given grid size
	EnsureSheetCapacity(ctx context.Context, spreadsheetID, sheetName string, requiredRows, requiredCols int) error
}
