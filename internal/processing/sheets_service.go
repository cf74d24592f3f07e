package processing

import (
	"context"
	"fmt"

	"guild_stats/internal/domain/metrics"

	"github.com/rs/zerolog/log"
)

// ImportRequest imports a Google spreadsheet as an upload
type ImportRequest struct {
	Season        string `json:"-"`
	Title         string `json:"title"`
	SpreadsheetID string `json:"spreadsheetId"`
	Servers       []int  `json:"servers"`
}

// PublishRequest writes a leaderboard tab for one metric and window
type PublishRequest struct {
	Season        string `json:"-"`
	Start         string `json:"start"`
	End           string `json:"end"`
	SpreadsheetID string `json:"spreadsheetId"`
	Metric        string `json:"metric"`
	Limit         int    `json:"limit"`
}

// PublishResult names the tab that was written
type PublishResult struct {
	SpreadsheetID string `json:"spreadsheetId"`
	Tab           string `json:"tab"`
	Entries       int    `json:"entries"`
}

// SheetsService bridges uploads and leaderboards with Google Sheets
type SheetsService struct {
	reader      WorkbookReaderInterface
	publisher   LeaderboardPublisherInterface
	coordinator *Coordinator
	metrics     *MetricsService
}

// NewSheetsService creates a new sheets service
func NewSheetsService(reader WorkbookReaderInterface, publisher LeaderboardPublisherInterface, coordinator *Coordinator, metricsService *MetricsService) *SheetsService {
	return &SheetsService{
		reader:      reader,
		publisher:   publisher,
		coordinator: coordinator,
		metrics:     metricsService,
	}
}

// Import reads every tab of a spreadsheet and stores it like a file upload
func (s *SheetsService) Import(ctx context.Context, req ImportRequest) (*UploadResult, error) {
	if req.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: spreadsheetId is required", ErrValidation)
	}
	if err := validateTarget(req.Season, req.Title); err != nil {
		return nil, err
	}

	wb, err := s.reader.ReadWorkbook(ctx, req.SpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("%w: spreadsheet %s: %v", ErrFileDecode, req.SpreadsheetID, err)
	}

	log.Info().
		Str("spreadsheet_id", req.SpreadsheetID).
		Int("sheets", len(wb.Sheets)).
		Msg("Read spreadsheet for import")

	return s.coordinator.UploadWorkbook(ctx, req.Season, req.Title, req.SpreadsheetID, wb, req.Servers)
}

// Publish ranks the window by one metric and writes it to a spreadsheet tab
func (s *SheetsService) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if req.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: spreadsheetId is required", ErrValidation)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = SummaryTopN
	}
	metric := req.Metric
	if metric == "" {
		metric = metrics.MetricMerits
	}

	entries, err := s.metrics.TopN(ctx, req.Season, req.Start, req.End, metric, limit)
	if err != nil {
		return nil, err
	}

	tab, err := s.publisher.PublishLeaderboard(ctx, req.SpreadsheetID, req.Season, metric, req.Start, req.End, entries)
	if err != nil {
		return nil, fmt.Errorf("publish leaderboard: %w", err)
	}

	log.Info().
		Str("spreadsheet_id", req.SpreadsheetID).
		Str("tab", tab).
		Int("entries", len(entries)).
		Msg("Published leaderboard")

	return &PublishResult{SpreadsheetID: req.SpreadsheetID, Tab: tab, Entries: len(entries)}, nil
}
