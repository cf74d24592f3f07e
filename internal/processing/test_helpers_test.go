package processing

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"guild_stats/internal/app"
	"guild_stats/internal/cache"
	"guild_stats/internal/config"
	"guild_stats/internal/domain/ingest"
	"guild_stats/internal/store"
	"guild_stats/internal/workbook"
)

const (
	testHomeServer  = 101
	testEnemyServer = 102
)

var testServers = []int{testHomeServer, testEnemyServer}

// fastResilience runs every operation once so failure tests stay quick
var fastResilience = config.ResilienceConfig{
	StoreWrite: config.RetryConfig{MaxAttempts: 1, Multiplier: 1, Timeout: 5 * time.Second},
	StoreRead:  config.RetryConfig{MaxAttempts: 1, Multiplier: 1, Timeout: 5 * time.Second},
	CacheOp:    config.RetryConfig{MaxAttempts: 1, Multiplier: 1, Timeout: time.Second},
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestCoordinator creates a Coordinator over the given store and cache with
// single-attempt retries and a fixed clock
func newTestCoordinator(st store.DocumentStore, c cache.Cache) *Coordinator {
	coordinator := NewCoordinator(st, c, NewIngestor(testHomeServer, 5*time.Second), NewIngestTracker(nil), testServers)
	coordinator.resilience = fastResilience
	coordinator.now = func() time.Time { return testNow }
	return coordinator
}

// newTestMetricsService creates a MetricsService with single-attempt retries
func newTestMetricsService(st store.DocumentStore, c cache.Cache) *MetricsService {
	service := NewMetricsService(st, c, time.Minute, testHomeServer)
	service.resilience = fastResilience
	return service
}

// testPlayer is one fixture row in F1 column order
type testPlayer struct {
	id           string
	name         string
	server       int
	highestPower float64
	merits       float64
	unitsKilled  float64
	unitsDead    float64
	manaSpent    float64
}

func (p testPlayer) f1Row() []string {
	return []string{
		p.id,
		p.name,
		fmt.Sprint(p.server),
		formatNumber(p.highestPower),
		formatNumber(p.highestPower),
		formatNumber(p.merits),
		formatNumber(p.unitsKilled),
		formatNumber(p.unitsDead),
		"0",
		"0",
		formatNumber(p.manaSpent),
		"0",
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func f1Rows(players ...testPlayer) [][]string {
	rows := [][]string{append(ingest.ExpectedHeader(ingest.FormatF1), "Gems Spent")}
	for _, p := range players {
		rows = append(rows, p.f1Row())
	}
	return rows
}

func csvBytes(rows [][]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.WriteAll(rows)
	return buf.Bytes()
}

func xlsxBytes(sheets ...workbook.Sheet) []byte {
	data, err := workbook.EncodeXLSX(&workbook.Workbook{Sheets: sheets})
	if err != nil {
		panic(err)
	}
	return data
}

func csvUpload(name string, players ...testPlayer) app.UploadFile {
	return app.UploadFile{Name: name, Data: csvBytes(f1Rows(players...))}
}

// seedSnapshot stores player documents for a date the way an upload would
func seedSnapshot(st *store.MemoryStore, season, title string, players ...testPlayer) {
	for _, p := range players {
		snap := app.PlayerSnapshot{
			LordID:       p.id,
			Name:         p.name,
			HomeServer:   p.server,
			CurrentPower: p.highestPower,
			HighestPower: p.highestPower,
			Merits:       p.merits,
			UnitsKilled:  p.unitsKilled,
			UnitsDead:    p.unitsDead,
			ManaSpent:    p.manaSpent,
		}
		path := store.Join(SeasonsCollection, season, title, p.id)
		if err := st.Set(context.Background(), path, snap.Document(), false); err != nil {
			panic(err)
		}
	}
}
