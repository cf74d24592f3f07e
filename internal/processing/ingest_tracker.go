package processing

import (
	"sync"
	"time"

	"guild_stats/internal/domain/ingest"
	"guild_stats/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// IngestTracker accumulates ingestion activity since process start and
// forwards it to the Prometheus recorder
type IngestTracker struct {
	sessionStart  time.Time
	uploads       int64
	failedUploads int64
	rowsIngested  int64
	sheetsSkipped int64
	skipsByReason map[ingest.SkipReason]int64
	recorder      *telemetry.Recorder
	mutex         sync.RWMutex
}

// NewIngestTracker creates a tracker. recorder may be nil.
func NewIngestTracker(recorder *telemetry.Recorder) *IngestTracker {
	return &IngestTracker{
		sessionStart:  time.Now(),
		skipsByReason: make(map[ingest.SkipReason]int64),
		recorder:      recorder,
	}
}

// RecordUpload records the outcome of one upload. result is nil when the
// upload failed before ingestion finished.
func (t *IngestTracker) RecordUpload(result *IngestResult, err error) {
	t.recorder.Upload(ErrorClass(err))

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.uploads++
	if err != nil {
		t.failedUploads++
	}
	if result == nil {
		return
	}

	t.rowsIngested += int64(result.RecordCount)
	t.sheetsSkipped += int64(len(result.SheetSkips))
	for reason, n := range result.Skips {
		t.skipsByReason[reason] += int64(n)
	}

	if err == nil {
		t.recorder.RowsIngested(result.RecordCount)
		t.recorder.SheetsSkipped(len(result.SheetSkips))
		for reason, n := range result.Skips {
			t.recorder.RowsSkipped(string(reason), n)
		}
	}
}

// CacheInvalidationFailed counts a failed post-upload invalidation
func (t *IngestTracker) CacheInvalidationFailed() {
	t.recorder.CacheInvalidationFailed()
}

// GetStats returns ingestion statistics since process start
func (t *IngestTracker) GetStats() IngestStats {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	skipsCopy := make(map[string]int64, len(t.skipsByReason))
	for k, v := range t.skipsByReason {
		skipsCopy[string(k)] = v
	}

	return IngestStats{
		Uploads:       t.uploads,
		FailedUploads: t.failedUploads,
		RowsIngested:  t.rowsIngested,
		SheetsSkipped: t.sheetsSkipped,
		SkipsByReason: skipsCopy,
		Uptime:        time.Since(t.sessionStart).Round(time.Second).String(),
	}
}

// LogSummary logs a summary of ingestion since process start
func (t *IngestTracker) LogSummary() {
	stats := t.GetStats()

	logEvent := log.Info().
		Int64("uploads", stats.Uploads).
		Int64("failed_uploads", stats.FailedUploads).
		Int64("rows_ingested", stats.RowsIngested).
		Int64("sheets_skipped", stats.SheetsSkipped).
		Str("uptime", stats.Uptime)

	// Add breakdown by skip reason
	for reason, count := range stats.SkipsByReason {
		logEvent = logEvent.Int64("skipped_"+reason, count)
	}

	logEvent.Msg("Ingestion summary")
}

// IngestStats represents ingestion statistics
type IngestStats struct {
	Uploads       int64            `json:"uploads"`
	FailedUploads int64            `json:"failedUploads"`
	RowsIngested  int64            `json:"rowsIngested"`
	SheetsSkipped int64            `json:"sheetsSkipped"`
	SkipsByReason map[string]int64 `json:"skipsByReason"`
	Uptime        string           `json:"uptime"`
}
