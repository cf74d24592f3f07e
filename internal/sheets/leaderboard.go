package sheets

import (
	"context"
	"fmt"

	"guild_stats/internal/domain/metrics"

	"github.com/rs/zerolog/log"
)

const leaderboardColumns = 5

// LeaderboardManager writes Top-N rankings into spreadsheet tabs
type LeaderboardManager struct {
	api SheetsAPI
}

// NewLeaderboardManager creates a new leaderboard manager with the given API client
func NewLeaderboardManager(api SheetsAPI) *LeaderboardManager {
	return &LeaderboardManager{
		api: api,
	}
}

// GenerateLeaderboardTabName returns the tab title for one ranking window
func (m *LeaderboardManager) GenerateLeaderboardTabName(season, metric, start, end string) string {
	return fmt.Sprintf("%s %s %s-%s", season, metric, start, end)
}

// GenerateLeaderboardHeaders returns the header row
func (m *LeaderboardManager) GenerateLeaderboardHeaders(metric string) []interface{} {
	return []interface{}{"Rank", "Lord ID", "Name", "Server", metric}
}

// ConvertEntriesToRows converts ranked entries into sheet rows, header first
func (m *LeaderboardManager) ConvertEntriesToRows(metric string, entries []metrics.RankEntry) [][]interface{} {
	rows := make([][]interface{}, 0, len(entries)+1)
	rows = append(rows, m.GenerateLeaderboardHeaders(metric))
	for i, e := range entries {
		name := NewCell(e.Name).String()
		rows = append(rows, []interface{}{i + 1, e.UserID, name, e.Server, e.Value})
	}
	return rows
}

// PublishLeaderboard replaces the contents of the ranking tab, creating it if
// needed, and returns the tab title
func (m *LeaderboardManager) PublishLeaderboard(ctx context.Context, spreadsheetID, season, metric, start, end string, entries []metrics.RankEntry) (string, error) {
	tabName := m.GenerateLeaderboardTabName(season, metric, start, end)

	exists, err := m.api.SheetExists(ctx, spreadsheetID, tabName)
	if err != nil {
		return "", fmt.Errorf("failed to check if leaderboard sheet exists: %w", err)
	}

	if !exists {
		log.Info().
			Str("sheet_name", tabName).
			Msg("Creating leaderboard sheet")

		if err := m.api.CreateSheet(ctx, spreadsheetID, tabName); err != nil {
			return "", fmt.Errorf("failed to create leaderboard sheet: %w", err)
		}
	} else if err := m.api.ClearRange(ctx, spreadsheetID, sheetRange(tabName, "")); err != nil {
		return "", fmt.Errorf("failed to clear leaderboard sheet: %w", err)
	}

	rows := m.ConvertEntriesToRows(metric, entries)
	if err := m.api.EnsureSheetCapacity(ctx, spreadsheetID, tabName, len(rows), leaderboardColumns); err != nil {
		return "", fmt.Errorf("failed to size leaderboard sheet: %w", err)
	}

	a1 := fmt.Sprintf("A1:%s%d", columnLetter(leaderboardColumns), len(rows))
	if err := m.api.UpdateRange(ctx, spreadsheetID, sheetRange(tabName, a1), rows); err != nil {
		return "", fmt.Errorf("failed to write leaderboard: %w", err)
	}

	log.Info().
		Str("sheet_name", tabName).
		Int("entries", len(entries)).
		Msg("Published leaderboard")

	return tabName, nil
}
