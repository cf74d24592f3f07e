package sheets

import (
	"context"
	"fmt"

	"guild_stats/internal/config"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Rows and columns added on top of what a leaderboard needs when a tab grows
const (
	capacityRowPadding = 50
	capacityColPadding = 2
)

// Client implements SheetsAPI on top of the Google Sheets v4 service.
//
// This is the only layer that sees [][]interface{} cell values. Everything
// above it converts them with the Cell wrapper.
type Client struct {
	service *sheets.Service
	retry   config.RetryConfig
}

// NewClient creates a Sheets client. An empty credentials file falls back to
// application default credentials.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service: service,
		retry:   config.DefaultResilienceConfig.SheetsAPI,
	}, nil
}

func (c *Client) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return config.WithRetry(ctx, c.retry, "sheets "+operation, fn)
}

// tabs fetches the properties of every tab, in display order
func (c *Client) tabs(ctx context.Context, spreadsheetID string) ([]*sheets.SheetProperties, error) {
	var props []*sheets.SheetProperties
	err := c.withRetry(ctx, "get spreadsheet", func(ctx context.Context) error {
		spreadsheet, err := c.service.Spreadsheets.Get(spreadsheetID).
			Fields("sheets.properties(sheetId,title,gridProperties)").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		props = make([]*sheets.SheetProperties, 0, len(spreadsheet.Sheets))
		for _, sheet := range spreadsheet.Sheets {
			if sheet.Properties != nil {
				props = append(props, sheet.Properties)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet %s: %w", spreadsheetID, err)
	}
	return props, nil
}

// findTab returns nil without error when no tab has the given title
func (c *Client) findTab(ctx context.Context, spreadsheetID, title string) (*sheets.SheetProperties, error) {
	props, err := c.tabs(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	for _, p := range props {
		if p.Title == title {
			return p, nil
		}
	}
	return nil, nil
}

func (c *Client) ListSheets(ctx context.Context, spreadsheetID string) ([]string, error) {
	props, err := c.tabs(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(props))
	for _, p := range props {
		titles = append(titles, p.Title)
	}
	return titles, nil
}

// ReadSheet requests unformatted values so numbers arrive without thousands
// separators or currency formatting.
func (c *Client) ReadSheet(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error) {
	var values [][]interface{}
	err := c.withRetry(ctx, "read range", func(ctx context.Context) error {
		resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, range_).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		values = resp.Values
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", range_, err)
	}
	return values, nil
}

// UpdateRange writes values as raw input. Player names starting with '=' or
// '+' must not be evaluated as formulas.
func (c *Client) UpdateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error {
	body := &sheets.ValueRange{Values: values}
	err := c.withRetry(ctx, "update range", func(ctx context.Context) error {
		_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, range_, body).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", range_, err)
	}
	return nil
}

func (c *Client) ClearRange(ctx context.Context, spreadsheetID, range_ string) error {
	err := c.withRetry(ctx, "clear range", func(ctx context.Context) error {
		_, err := c.service.Spreadsheets.Values.Clear(spreadsheetID, range_, &sheets.ClearValuesRequest{}).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", range_, err)
	}
	return nil
}

// CreateSheet adds a tab. It is not retried: a retry after a lost response
// would fail with a duplicate title.
func (c *Client) CreateSheet(ctx context.Context, spreadsheetID, sheetName string) error {
	_, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheetName},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheetName, err)
	}

	log.Info().Str("spreadsheet_id", spreadsheetID).Str("sheet_name", sheetName).Msg("Created sheet")
	return nil
}

func (c *Client) SheetExists(ctx context.Context, spreadsheetID, sheetName string) (bool, error) {
	tab, err := c.findTab(ctx, spreadsheetID, sheetName)
	if err != nil {
		return false, err
	}
	return tab != nil, nil
}

// EnsureSheetCapacity grows the tab grid when a leaderboard would not fit.
// Tabs are never shrunk.
func (c *Client) EnsureSheetCapacity(ctx context.Context, spreadsheetID, sheetName string, requiredRows, requiredCols int) error {
	tab, err := c.findTab(ctx, spreadsheetID, sheetName)
	if err != nil {
		return err
	}
	if tab == nil {
		return fmt.Errorf("sheet %s not found", sheetName)
	}

	var currentRows, currentCols int
	if tab.GridProperties != nil {
		currentRows = int(tab.GridProperties.RowCount)
		currentCols = int(tab.GridProperties.ColumnCount)
	}

	newRows, newCols := currentRows, currentCols
	if requiredRows > currentRows {
		newRows = requiredRows + capacityRowPadding
	}
	if requiredCols > currentCols {
		newCols = requiredCols + capacityColPadding
	}
	if newRows == currentRows && newCols == currentCols {
		return nil
	}

	err = c.withRetry(ctx, "resize sheet", func(ctx context.Context) error {
		_, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId: tab.SheetId,
						GridProperties: &sheets.GridProperties{
							RowCount:    int64(newRows),
							ColumnCount: int64(newCols),
						},
					},
					Fields: "gridProperties.rowCount,gridProperties.columnCount",
				},
			}},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to resize sheet %s: %w", sheetName, err)
	}

	log.Debug().
		Str("sheet_name", sheetName).
		Int("old_rows", currentRows).
		Int("old_cols", currentCols).
		Int("new_rows", newRows).
		Int("new_cols", newCols).
		Msg("Expanded sheet capacity")
	return nil
}
