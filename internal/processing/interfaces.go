package processing

import (
	"context"

	"guild_stats/internal/app"
	"guild_stats/internal/domain/metrics"
	"guild_stats/internal/workbook"
)

// WarehouseExporterInterface defines the analytics export used after a successful upload
type WarehouseExporterInterface interface {
	ExportSnapshots(ctx context.Context, season, title string, records map[string]app.PlayerSnapshot) error
}

// WorkbookReaderInterface defines how a spreadsheet is read for import
type WorkbookReaderInterface interface {
	ReadWorkbook(ctx context.Context, spreadsheetID string) (*workbook.Workbook, error)
}

// LeaderboardPublisherInterface defines how rankings are written to a spreadsheet
type LeaderboardPublisherInterface interface {
	PublishLeaderboard(ctx context.Context, spreadsheetID, season, metric, start, end string, entries []metrics.RankEntry) (string, error)
}
