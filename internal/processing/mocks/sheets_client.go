package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"guild_stats/internal/app"
	"guild_stats/internal/domain/metrics"
	"guild_stats/internal/workbook"
)

// MockSheetsClient is a test double for the spreadsheet reader and leaderboard publisher
type MockSheetsClient struct {
	// Responses to return
	ReadWorkbookResponse       *workbook.Workbook
	PublishLeaderboardResponse string

	// Errors to return
	ReadWorkbookError       error
	PublishLeaderboardError error

	// Call tracking
	ReadWorkbookCalled       bool
	PublishLeaderboardCalled bool

	// Call parameters tracking
	ReadWorkbookCalledWith struct {
		SpreadsheetID string
	}
	PublishLeaderboardCalledWith struct {
		SpreadsheetID string
		Season        string
		Metric        string
		Start         string
		End           string
		Entries       []metrics.RankEntry
	}
}

// NewMockSheetsClient creates a new mock sheets client
func NewMockSheetsClient() *MockSheetsClient {
	return &MockSheetsClient{}
}

func (m *MockSheetsClient) ReadWorkbook(ctx context.Context, spreadsheetID string) (*workbook.Workbook, error) {
	m.ReadWorkbookCalled = true
	m.ReadWorkbookCalledWith.SpreadsheetID = spreadsheetID
	return m.ReadWorkbookResponse, m.ReadWorkbookError
}

func (m *MockSheetsClient) PublishLeaderboard(ctx context.Context, spreadsheetID, season, metric, start, end string, entries []metrics.RankEntry) (string, error) {
	m.PublishLeaderboardCalled = true
	m.PublishLeaderboardCalledWith.SpreadsheetID = spreadsheetID
	m.PublishLeaderboardCalledWith.Season = season
	m.PublishLeaderboardCalledWith.Metric = metric
	m.PublishLeaderboardCalledWith.Start = start
	m.PublishLeaderboardCalledWith.End = end
	m.PublishLeaderboardCalledWith.Entries = entries
	return m.PublishLeaderboardResponse, m.PublishLeaderboardError
}

// Reset clears all call tracking and responses
func (m *MockSheetsClient) Reset() {
	m.ReadWorkbookResponse = nil
	m.PublishLeaderboardResponse = ""

	m.ReadWorkbookError = nil
	m.PublishLeaderboardError = nil

	m.ReadWorkbookCalled = false
	m.PublishLeaderboardCalled = false

	m.ReadWorkbookCalledWith = struct {
		SpreadsheetID string
	}{}
	m.PublishLeaderboardCalledWith = struct {
		SpreadsheetID string
		Season        string
		Metric        string
		Start         string
		End           string
		Entries       []metrics.RankEntry
	}{}
}

// MockWarehouseExporter records exports
type MockWarehouseExporter struct {
	mu sync.Mutex

	ExportError error
	Exports     []WarehouseExport
}

// WarehouseExport is one recorded ExportSnapshots call
type WarehouseExport struct {
	Season  string
	Title   string
	Records int
}

func (m *MockWarehouseExporter) ExportSnapshots(ctx context.Context, season, title string, records map[string]app.PlayerSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Exports = append(m.Exports, WarehouseExport{Season: season, Title: title, Records: len(records)})
	return m.ExportError
}

// ErrCacheUnavailable is returned by FailingCache for every operation
var ErrCacheUnavailable = errors.New("cache unavailable")

// FailingCache is a cache whose backend is always down
type FailingCache struct {
	mu            sync.Mutex
	Invalidations int
}

func (c *FailingCache) Init(ctx context.Context) error {
	return ErrCacheUnavailable
}

func (c *FailingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, ErrCacheUnavailable
}

func (c *FailingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return ErrCacheUnavailable
}

func (c *FailingCache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	c.mu.Lock()
	c.Invalidations++
	c.mu.Unlock()
	return 0, ErrCacheUnavailable
}

func (c *FailingCache) Close() error {
	return nil
}
