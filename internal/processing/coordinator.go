package processing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"guild_stats/internal/app"
	"guild_stats/internal/cache"
	"guild_stats/internal/config"
	"guild_stats/internal/domain/ingest"
	"guild_stats/internal/store"
	"guild_stats/internal/workbook"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog/log"
)

// SeasonsCollection holds one document per season; each upload title is a
// subcollection of it
const SeasonsCollection = "seasons"

// commitConcurrency bounds concurrent batch commits across all uploads
const commitConcurrency = 8

// UploadRequest is one admin upload of one or more workbooks for a title
type UploadRequest struct {
	Season       string
	Title        string
	Files        []app.UploadFile
	ValidServers []int
}

// UploadResult is returned once everything has been written
type UploadResult struct {
	SeasonName    string         `json:"seasonName"`
	Title         string         `json:"title"`
	RecordCount   int            `json:"recordCount"`
	RosterUpdates int            `json:"rosterUpdates"`
	Skips         map[string]int `json:"skips,omitempty"`
	SheetSkips    []SheetSkip    `json:"sheetSkips,omitempty"`
}

// Coordinator runs the ingestor over every file of an upload and persists the
// merged result for a season and title
type Coordinator struct {
	store          store.DocumentStore
	cache          cache.Cache
	ingestor       *Ingestor
	exporter       WarehouseExporterInterface
	tracker        *IngestTracker
	resilience     config.ResilienceConfig
	defaultServers []int
	pool           pond.Pool
	now            func() time.Time
}

// NewCoordinator creates a coordinator. defaultServers applies when a request
// names no valid servers.
func NewCoordinator(st store.DocumentStore, c cache.Cache, ingestor *Ingestor, tracker *IngestTracker, defaultServers []int) *Coordinator {
	if tracker == nil {
		tracker = NewIngestTracker(nil)
	}
	return &Coordinator{
		store:          st,
		cache:          c,
		ingestor:       ingestor,
		tracker:        tracker,
		resilience:     config.DefaultResilienceConfig,
		defaultServers: defaultServers,
		pool:           pond.NewPool(commitConcurrency),
		now:            time.Now,
	}
}

// SetExporter enables the best-effort warehouse export
func (c *Coordinator) SetExporter(exporter WarehouseExporterInterface) {
	c.exporter = exporter
}

// Tracker returns the ingestion tracker
func (c *Coordinator) Tracker() *IngestTracker {
	return c.tracker
}

// Close waits for in-flight commits and stops the worker pool
func (c *Coordinator) Close() {
	c.pool.StopAndWait()
}

// Upload validates, ingests and persists an upload
func (c *Coordinator) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := validateUpload(req); err != nil {
		c.tracker.RecordUpload(nil, err)
		return nil, err
	}

	roster, err := c.loadRoster(ctx)
	if err != nil {
		c.tracker.RecordUpload(nil, err)
		return nil, err
	}

	merged := newIngestResult()
	validServers := app.ServerSet(c.serversFor(req.ValidServers))
	for _, file := range req.Files {
		result, err := c.ingestor.Ingest(ctx, file.Data, file.Name, req.Title, validServers, roster)
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", ErrFileDecode, file.Name, err)
			c.tracker.RecordUpload(nil, err)
			return nil, err
		}
		merged.Merge(result)

		log.Info().
			Str("season", req.Season).
			Str("title", req.Title).
			Str("file", file.Name).
			Int("record_count", result.RecordCount).
			Int("sheets_processed", result.SheetsProcessed).
			Int("sheets_skipped", len(result.SheetSkips)).
			Msg("Ingested file")
	}

	return c.persist(ctx, req.Season, req.Title, merged)
}

// UploadWorkbook persists an already decoded workbook, such as one read from
// Google Sheets
func (c *Coordinator) UploadWorkbook(ctx context.Context, season, title, source string, wb *workbook.Workbook, servers []int) (*UploadResult, error) {
	if err := validateTarget(season, title); err != nil {
		c.tracker.RecordUpload(nil, err)
		return nil, err
	}

	roster, err := c.loadRoster(ctx)
	if err != nil {
		c.tracker.RecordUpload(nil, err)
		return nil, err
	}

	result := c.ingestor.IngestWorkbook(wb, source, title, app.ServerSet(c.serversFor(servers)), roster)
	return c.persist(ctx, season, title, result)
}

func (c *Coordinator) persist(ctx context.Context, season, title string, merged *IngestResult) (*UploadResult, error) {
	if merged.RecordCount == 0 {
		err := fmt.Errorf("%w in %s/%s", ErrNoRecords, season, title)
		c.tracker.RecordUpload(merged, err)
		return nil, err
	}

	if err := c.write(ctx, season, title, merged); err != nil {
		err = fmt.Errorf("%w: %v", ErrStorage, err)
		c.tracker.RecordUpload(merged, err)
		return nil, err
	}
	c.tracker.RecordUpload(merged, nil)

	c.invalidate(ctx, season)
	c.export(ctx, season, title, merged)

	skips := make(map[string]int, len(merged.Skips))
	for reason, n := range merged.Skips {
		skips[string(reason)] = n
	}

	log.Info().
		Str("season", season).
		Str("title", title).
		Int("record_count", merged.RecordCount).
		Int("roster_updates", len(merged.RosterUpdates)).
		Int("servers", len(merged.ServerTotals)).
		Msg("Upload stored")

	return &UploadResult{
		SeasonName:    season,
		Title:         title,
		RecordCount:   merged.RecordCount,
		RosterUpdates: len(merged.RosterUpdates),
		Skips:         skips,
		SheetSkips:    merged.SheetSkips,
	}, nil
}

func (c *Coordinator) serversFor(servers []int) []int {
	if len(servers) > 0 {
		return servers
	}
	return c.defaultServers
}

func (c *Coordinator) loadRoster(ctx context.Context) (map[string]app.RosterUser, error) {
	var roster map[string]app.RosterUser
	err := config.WithRetry(ctx, c.resilience.StoreRead, "load roster", func(ctx context.Context) error {
		var err error
		roster, err = store.LoadRoster(ctx, c.store)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return roster, nil
}

type pendingWrite struct {
	path  string
	data  map[string]interface{}
	merge bool
}

// write commits the totals document (none for preseason), every player
// document and the roster updates in batches of at most store.MaxBatchOps,
// concurrently. Batches do not depend on each other: player documents are full
// overwrites and roster updates are merges of values computed before any write.
func (c *Coordinator) write(ctx context.Context, season, title string, merged *IngestResult) error {
	now := c.now().UTC()
	dateCollection := store.Join(SeasonsCollection, season, title)

	writes := make([]pendingWrite, 0, len(merged.PlayerRecords)+1)
	if title != app.TitlePreseason {
		writes = append(writes, pendingWrite{
			path: store.Join(dateCollection, app.TotalDocID),
			data: totalsDocument(merged.ServerTotals, now),
		})
	}

	ids := make([]string, 0, len(merged.PlayerRecords))
	for id := range merged.PlayerRecords {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		writes = append(writes, pendingWrite{
			path: store.Join(dateCollection, id),
			data: merged.PlayerRecords[id].Document(),
		})
	}

	rosterWrites := make([]pendingWrite, 0, len(merged.RosterUpdates))
	for _, id := range sortedKeys(merged.RosterUpdates) {
		rosterWrites = append(rosterWrites, pendingWrite{
			path:  store.Join(store.UsersCollection, id),
			data:  merged.RosterUpdates[id].Fields,
			merge: true,
		})
	}

	batches := c.buildBatches(writes)
	batches = append(batches, c.buildBatches(rosterWrites)...)

	group := c.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, batch := range batches {
		group.SubmitErr(func() error {
			op := fmt.Sprintf("commit batch %d/%d for %s/%s", i+1, len(batches), season, title)
			return config.WithRetry(groupCtx, c.resilience.StoreWrite, op, batch.Commit)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	log.Debug().
		Str("season", season).
		Str("title", title).
		Int("batches", len(batches)).
		Msg("Committed upload batches")

	seasonDoc := map[string]interface{}{
		"name":      season,
		"lastTitle": title,
		"updatedAt": now,
	}
	return config.WithRetry(ctx, c.resilience.StoreWrite, "update season "+season, func(ctx context.Context) error {
		return c.store.Set(ctx, store.Join(SeasonsCollection, season), seasonDoc, true)
	})
}

func (c *Coordinator) buildBatches(writes []pendingWrite) []store.WriteBatch {
	var batches []store.WriteBatch
	for start := 0; start < len(writes); start += store.MaxBatchOps {
		end := min(start+store.MaxBatchOps, len(writes))
		batch := c.store.NewBatch()
		for _, w := range writes[start:end] {
			batch.Set(w.path, w.data, w.merge)
		}
		batches = append(batches, batch)
	}
	return batches
}

// invalidate drops cached metrics for the season. The upload has already
// succeeded, so a failure here is only logged.
func (c *Coordinator) invalidate(ctx context.Context, season string) {
	if c.cache == nil {
		return
	}
	err := config.WithRetry(ctx, c.resilience.CacheOp, "invalidate cache", func(ctx context.Context) error {
		removed, err := c.cache.InvalidatePattern(ctx, cache.SeasonPattern(season))
		if err == nil {
			log.Debug().Str("season", season).Int("removed", removed).Msg("Invalidated cached metrics")
		}
		return err
	})
	if err != nil {
		c.tracker.CacheInvalidationFailed()
		log.Error().
			Err(err).
			Str("season", season).
			Msg("Failed to invalidate cached metrics after upload")
	}
}

func (c *Coordinator) export(ctx context.Context, season, title string, merged *IngestResult) {
	if c.exporter == nil {
		return
	}
	if err := c.exporter.ExportSnapshots(ctx, season, title, merged.PlayerRecords); err != nil {
		log.Warn().
			Err(err).
			Str("season", season).
			Str("title", title).
			Msg("Warehouse export failed")
	}
}

func totalsDocument(totals map[int]app.ServerTotals, updatedAt time.Time) map[string]interface{} {
	servers := make(map[string]interface{}, len(totals))
	for server, t := range totals {
		servers[ingest.FormatServer(server)] = map[string]interface{}{
			"merits":    t.Merits,
			"manaSpent": t.ManaSpent,
			"unitsDead": t.UnitsDead,
		}
	}
	return map[string]interface{}{
		"servers":   servers,
		"updatedAt": updatedAt,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateTarget(season, title string) error {
	if strings.TrimSpace(season) == "" || strings.Contains(season, "/") {
		return fmt.Errorf("%w: season name is required and may not contain '/'", ErrValidation)
	}
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !app.IsValidTitle(title) {
		return fmt.Errorf("%w: title must be start, final, preseason or a YYYY-MM-DD date, got %q", ErrValidation, title)
	}
	return nil
}

func validateUpload(req UploadRequest) error {
	if err := validateTarget(req.Season, req.Title); err != nil {
		return err
	}
	if len(req.Files) == 0 {
		return fmt.Errorf("%w: at least one file is required", ErrValidation)
	}
	for _, f := range req.Files {
		if !workbook.IsSupported(f.Name) {
			return fmt.Errorf("%w: %s (accepted: .xlsx, .xls, .csv)", ErrUnsupportedFormat, f.Name)
		}
	}
	return nil
}
