package warehouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"guild_stats/internal/app"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// insertChunk bounds the rows sent per streaming insert request
const insertChunk = 500

// SnapshotRow is one player snapshot as stored in the warehouse table
type SnapshotRow struct {
	Season       string    `bigquery:"season"`
	Title        string    `bigquery:"title"`
	LordID       string    `bigquery:"lord_id"`
	Name         string    `bigquery:"name"`
	HomeServer   int64     `bigquery:"home_server"`
	CurrentPower float64   `bigquery:"current_power"`
	HighestPower float64   `bigquery:"highest_power"`
	Merits       float64   `bigquery:"merits"`
	UnitsKilled  float64   `bigquery:"units_killed"`
	UnitsDead    float64   `bigquery:"units_dead"`
	UnitsHealed  float64   `bigquery:"units_healed"`
	T5KillCount  float64   `bigquery:"t5_kill_count"`
	ManaSpent    float64   `bigquery:"mana_spent"`
	GemsSpent    float64   `bigquery:"gems_spent"`
	IngestedAt   time.Time `bigquery:"ingested_at"`
}

// BuildRows converts an upload's records into warehouse rows ordered by lord id
func BuildRows(season, title string, records map[string]app.PlayerSnapshot, ingestedAt time.Time) []SnapshotRow {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]SnapshotRow, 0, len(ids))
	for _, id := range ids {
		p := records[id]
		rows = append(rows, SnapshotRow{
			Season:       season,
			Title:        title,
			LordID:       p.LordID,
			Name:         p.Name,
			HomeServer:   int64(p.HomeServer),
			CurrentPower: p.CurrentPower,
			HighestPower: p.HighestPower,
			Merits:       p.Merits,
			UnitsKilled:  p.UnitsKilled,
			UnitsDead:    p.UnitsDead,
			UnitsHealed:  p.UnitsHealed,
			T5KillCount:  p.T5KillCount,
			ManaSpent:    p.ManaSpent,
			GemsSpent:    p.GemsSpent,
			IngestedAt:   ingestedAt,
		})
	}
	return rows
}

// BigQueryExporter streams player snapshots into a BigQuery table
type BigQueryExporter struct {
	client  *bigquery.Client
	dataset string
	table   string
	now     func() time.Time
}

// NewBigQueryExporter creates the client for projectID
func NewBigQueryExporter(ctx context.Context, projectID, credentialsFile, dataset, table string) (*BigQueryExporter, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}

	log.Info().
		Str("dataset", dataset).
		Str("table", table).
		Msg("Warehouse export enabled")

	return &BigQueryExporter{
		client:  client,
		dataset: dataset,
		table:   table,
		now:     time.Now,
	}, nil
}

// ExportSnapshots inserts one row per player
func (e *BigQueryExporter) ExportSnapshots(ctx context.Context, season, title string, records map[string]app.PlayerSnapshot) error {
	rows := BuildRows(season, title, records, e.now().UTC())
	inserter := e.client.Dataset(e.dataset).Table(e.table).Inserter()

	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("failed to insert rows %d-%d into %s.%s: %w", start, end, e.dataset, e.table, err)
		}
	}

	log.Debug().
		Str("season", season).
		Str("title", title).
		Int("rows", len(rows)).
		Msg("Exported snapshots to warehouse")
	return nil
}

// Close releases the client
func (e *BigQueryExporter) Close() error {
	return e.client.Close()
}
