package processing

import (
	"context"
	"fmt"
	"time"

	"guild_stats/internal/app"
	"guild_stats/internal/domain/ingest"
	"guild_stats/internal/workbook"

	"github.com/rs/zerolog/log"
)

// SheetSkip records a sheet that contributed no rows: unreadable, or with a
// header matching no known export format
type SheetSkip struct {
	Source string `json:"source"`
	Sheet  string `json:"sheet"`
	Reason string `json:"reason"`
}

const (
	sheetSkipUnrecognized = "unrecognized format"
	sheetSkipUnreadable   = "unreadable"
)

// IngestResult is everything one workbook contributes to an upload
type IngestResult struct {
	PlayerRecords   map[string]app.PlayerSnapshot
	ServerTotals    map[int]app.ServerTotals
	RosterUpdates   map[string]app.RosterUpdate
	RecordCount     int
	Skips           map[ingest.SkipReason]int
	SheetSkips      []SheetSkip
	SheetsProcessed int

	countTotals bool
}

func newIngestResult() *IngestResult {
	return &IngestResult{
		PlayerRecords: make(map[string]app.PlayerSnapshot),
		ServerTotals:  make(map[int]app.ServerTotals),
		RosterUpdates: make(map[string]app.RosterUpdate),
		Skips:         make(map[ingest.SkipReason]int),
	}
}

// Ingestor turns workbooks into player records, server totals and staged
// roster updates
type Ingestor struct {
	decoders     *workbook.Factory
	homeServer   int
	parseTimeout time.Duration
}

// NewIngestor creates an ingestor for the deployment's home server
func NewIngestor(homeServer int, parseTimeout time.Duration) *Ingestor {
	return &Ingestor{
		decoders:     workbook.NewFactory(),
		homeServer:   homeServer,
		parseTimeout: parseTimeout,
	}
}

// Decode parses file bytes into a workbook. Parsing untrusted files is bounded
// by the configured timeout.
func (i *Ingestor) Decode(ctx context.Context, filename string, data []byte) (*workbook.Workbook, error) {
	if i.parseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.parseTimeout)
		defer cancel()
	}

	type decoded struct {
		wb  *workbook.Workbook
		err error
	}
	done := make(chan decoded, 1)
	go func() {
		wb, err := i.decoders.Decode(filename, data)
		done <- decoded{wb: wb, err: err}
	}()

	select {
	case d := <-done:
		return d.wb, d.err
	case <-ctx.Done():
		return nil, fmt.Errorf("parsing %s: %w", filename, ctx.Err())
	}
}

// Ingest decodes a file and ingests every sheet
func (i *Ingestor) Ingest(ctx context.Context, data []byte, filename, title string, validServers map[int]bool, roster map[string]app.RosterUser) (*IngestResult, error) {
	wb, err := i.Decode(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	return i.IngestWorkbook(wb, filename, title, validServers, roster), nil
}

// IngestWorkbook applies format detection, row extraction, server and power
// filters, totals and roster reconciliation to an already decoded workbook.
// It never fails: unusable sheets and rows are counted and skipped.
func (i *Ingestor) IngestWorkbook(wb *workbook.Workbook, source, title string, validServers map[int]bool, roster map[string]app.RosterUser) *IngestResult {
	result := newIngestResult()
	result.countTotals = title != app.TitlePreseason

	for _, sheet := range wb.Sheets {
		if sheet.ReadError != "" {
			result.SheetSkips = append(result.SheetSkips, SheetSkip{Source: source, Sheet: sheet.Name, Reason: sheetSkipUnreadable + ": " + sheet.ReadError})
			continue
		}
		if len(sheet.Rows) == 0 {
			result.SheetSkips = append(result.SheetSkips, SheetSkip{Source: source, Sheet: sheet.Name, Reason: sheetSkipUnrecognized})
			continue
		}

		layout, ok := ingest.Detect(sheet.Rows[0])
		if !ok {
			log.Debug().
				Str("source", source).
				Str("sheet", sheet.Name).
				Msg("Sheet header matches no known format, skipping")
			result.SheetSkips = append(result.SheetSkips, SheetSkip{Source: source, Sheet: sheet.Name, Reason: sheetSkipUnrecognized})
			continue
		}
		result.SheetsProcessed++

		for _, row := range sheet.Rows[1:] {
			player, reason := ingest.Extract(row, layout, title)
			if reason == ingest.SkipNone && !validServers[player.HomeServer] {
				reason = ingest.SkipInvalidServer
			}
			if reason == ingest.SkipNone {
				reason = i.applyRow(result, player, roster)
			}
			if reason != ingest.SkipNone {
				result.Skips[reason]++
			}
		}

		log.Debug().
			Str("source", source).
			Str("sheet", sheet.Name).
			Str("format", layout.Format.String()).
			Int("rows", len(sheet.Rows)-1).
			Msg("Ingested sheet")
	}

	result.finish()
	return result
}

func (i *Ingestor) applyRow(result *IngestResult, player app.PlayerSnapshot, roster map[string]app.RosterUser) ingest.SkipReason {
	if player.HomeServer != i.homeServer && player.HighestPower <= app.PowerThreshold {
		return ingest.SkipLowPowerForeign
	}

	result.PlayerRecords[player.LordID] = player

	if player.HomeServer == i.homeServer {
		if user, known := roster[player.LordID]; known {
			if fields := ingest.RatchetRoster(user, player); fields != nil {
				stageRosterUpdate(result.RosterUpdates, player.LordID, fields)
			}
		}
	}
	return ingest.SkipNone
}

func stageRosterUpdate(staged map[string]app.RosterUpdate, lordID string, fields map[string]interface{}) {
	if prev, ok := staged[lordID]; ok {
		fields = ingest.MergeRosterFields(prev.Fields, fields)
	}
	staged[lordID] = app.RosterUpdate{LordID: lordID, Fields: fields}
}

// Merge folds next into r. Records are last-write-wins per player, totals are
// recomputed from the merged records and roster updates keep the larger stats.
func (r *IngestResult) Merge(next *IngestResult) {
	for id, p := range next.PlayerRecords {
		r.PlayerRecords[id] = p
	}
	r.countTotals = next.countTotals
	for id, u := range next.RosterUpdates {
		stageRosterUpdate(r.RosterUpdates, id, u.Fields)
	}
	for reason, n := range next.Skips {
		r.Skips[reason] += n
	}
	r.SheetSkips = append(r.SheetSkips, next.SheetSkips...)
	r.SheetsProcessed += next.SheetsProcessed
	r.finish()
}

// finish derives the record count and server totals from the player records,
// so a player seen twice counts once with their last values
func (r *IngestResult) finish() {
	r.RecordCount = len(r.PlayerRecords)
	r.ServerTotals = SumServerTotals(r.PlayerRecords, r.countTotals)
}

// SumServerTotals adds up players above the power threshold per home server.
// Pure function: returns an empty map when countTotals is false.
func SumServerTotals(records map[string]app.PlayerSnapshot, countTotals bool) map[int]app.ServerTotals {
	totals := make(map[int]app.ServerTotals)
	if !countTotals {
		return totals
	}
	for _, p := range records {
		if p.HighestPower > app.PowerThreshold {
			totals[p.HomeServer] = totals[p.HomeServer].Add(p)
		}
	}
	return totals
}
