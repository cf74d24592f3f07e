package processing

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"guild_stats/internal/app"
	"guild_stats/internal/cache"
	"guild_stats/internal/domain/metrics"
	"guild_stats/internal/processing/mocks"
	"guild_stats/internal/store"
)

// uploadSnapshot stores players for a date through the coordinator so the
// totals document is written too
func uploadSnapshot(t *testing.T, st *store.MemoryStore, season, title string, players ...testPlayer) {
	t.Helper()
	coordinator := newTestCoordinator(st, nil)
	defer coordinator.Close()

	_, err := coordinator.Upload(context.Background(), UploadRequest{
		Season:       season,
		Title:        title,
		Files:        []app.UploadFile{csvUpload(title+".csv", players...)},
		ValidServers: []int{101, 102, 103},
	})
	if err != nil {
		t.Fatalf("Failed to upload %s: %v", title, err)
	}
}

func TestMetricsService_ListDates(t *testing.T) {
	st := store.NewMemoryStore()
	seedSnapshot(st, "s1", "2025-01-17", testPlayer{id: "1", server: testHomeServer})
	seedSnapshot(st, "s1", "2025-01-10", testPlayer{id: "1", server: testHomeServer})
	seedSnapshot(st, "s2", "final", testPlayer{id: "1", server: testHomeServer})
	service := newTestMetricsService(st, nil)

	dates, err := service.ListDates(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := []string{"2025-01-10", "2025-01-17"}
	if !reflect.DeepEqual(dates, expected) {
		t.Errorf("Expected %v, got %v", expected, dates)
	}

	if _, err := service.ListDates(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := service.ListDates(context.Background(), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

func TestMetricsService_IndividualSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	uploadSnapshot(t, st, "s1", "2025-01-10",
		testPlayer{id: "1", name: "A", server: testHomeServer, highestPower: 60_000_000, merits: 10},
		testPlayer{id: "2", name: "B", server: testHomeServer, highestPower: 60_000_000, merits: 20},
	)
	service := newTestMetricsService(st, nil)

	result, err := service.IndividualMetrics(context.Background(), "s1", "2025-01-10", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Players) != 2 {
		t.Errorf("Expected 2 players, got %d", len(result.Players))
	}
	if _, ok := result.Players[app.TotalDocID]; ok {
		t.Error("Expected totals document excluded from snapshot")
	}
	if result.Deltas != nil {
		t.Errorf("Expected no deltas without an end date, got %v", result.Deltas)
	}
}

func TestMetricsService_IndividualDiff(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	// Older uploads stored formatted strings
	_ = st.Set(ctx, store.Join(SeasonsCollection, "s1", "start", "1"), map[string]interface{}{
		"lordId": "1", "name": "A", "homeServer": "101", "merits": "1,000", "manaSpent": "abc",
	}, false)
	_ = st.Set(ctx, store.Join(SeasonsCollection, "s1", "final", "1"), map[string]interface{}{
		"lordId": "1", "name": "A", "homeServer": "101", "merits": "2,500", "manaSpent": "10",
	}, false)
	seedSnapshot(st, "s1", "final", testPlayer{id: "2", name: "Late", server: testHomeServer, merits: 5})

	service := newTestMetricsService(st, nil)
	result, err := service.IndividualMetrics(ctx, "s1", "start", "final")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	delta, ok := result.Deltas["1"]
	if !ok {
		t.Fatalf("Expected delta for player 1, got %v", result.Deltas)
	}
	if delta.Merits != 1500 {
		t.Errorf("Expected merits delta 1500, got %v", delta.Merits)
	}
	if _, ok := result.Deltas["2"]; ok {
		t.Error("Expected no delta for a player missing from the start snapshot")
	}
}

func TestMetricsService_Errors(t *testing.T) {
	st := store.NewMemoryStore()
	seedSnapshot(st, "s1", "start", testPlayer{id: "1", server: testHomeServer})
	service := newTestMetricsService(st, nil)
	ctx := context.Background()

	if _, err := service.IndividualMetrics(ctx, "s1", "start", "final"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing end snapshot, got %v", err)
	}
	if _, err := service.IndividualMetrics(ctx, "s1", "", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation without start, got %v", err)
	}
	if _, err := service.IndividualMetrics(ctx, "s1", "not-a-date", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for a malformed start date, got %v", err)
	}
	if _, err := service.IndividualMetrics(ctx, "s1", "start", "2025-02-30"); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for an impossible end date, got %v", err)
	}
	if _, err := service.KvKMetrics(ctx, "s1", "start", "final!", []int{testHomeServer}, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for a malformed kvk end date, got %v", err)
	}
	if _, err := service.KvKMetrics(ctx, "s1", "start", "", nil, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation without servers, got %v", err)
	}
	if _, err := service.KvKSeasonSummary(ctx, "s1", "start", "", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation without end, got %v", err)
	}
	if _, err := service.TopN(ctx, "s1", "start", "final", "gold", 10); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown metric, got %v", err)
	}
}

func TestMetricsService_Caching(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedSnapshot(st, "s1", "start", testPlayer{id: "1", server: testHomeServer, merits: 100})
	seedSnapshot(st, "s1", "final", testPlayer{id: "1", server: testHomeServer, merits: 300})

	c := cache.NewMemoryCache()
	service := newTestMetricsService(st, c)

	first, err := service.IndividualMetrics(ctx, "s1", "start", "final")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first.Deltas["1"].Merits != 200 {
		t.Fatalf("Expected merits delta 200, got %v", first.Deltas["1"].Merits)
	}

	// Until invalidated, the cached response is served
	seedSnapshot(st, "s1", "final", testPlayer{id: "1", server: testHomeServer, merits: 900})
	cached, err := service.IndividualMetrics(ctx, "s1", "start", "final")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cached.Deltas["1"].Merits != 200 {
		t.Errorf("Expected cached delta 200, got %v", cached.Deltas["1"].Merits)
	}

	if _, err := c.InvalidatePattern(ctx, cache.SeasonPattern("s1")); err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}
	fresh, err := service.IndividualMetrics(ctx, "s1", "start", "final")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fresh.Deltas["1"].Merits != 800 {
		t.Errorf("Expected fresh delta 800, got %v", fresh.Deltas["1"].Merits)
	}
}

func TestMetricsService_CacheFailureFallsBack(t *testing.T) {
	st := store.NewMemoryStore()
	seedSnapshot(st, "s1", "start", testPlayer{id: "1", server: testHomeServer, merits: 1})
	service := newTestMetricsService(st, &mocks.FailingCache{})

	result, err := service.IndividualMetrics(context.Background(), "s1", "start", "")
	if err != nil {
		t.Fatalf("Expected cache failure to be ignored, got %v", err)
	}
	if len(result.Players) != 1 {
		t.Errorf("Expected 1 player, got %d", len(result.Players))
	}
}

func TestMetricsService_KvKMetrics(t *testing.T) {
	st := store.NewMemoryStore()
	players := []testPlayer{
		{id: "1", name: "Home", server: 101, merits: 10},
		{id: "2", name: "Enemy", server: 102, merits: 10},
		{id: "3", name: "Bystander", server: 103, merits: 10},
	}
	seedSnapshot(st, "s1", "start", players...)
	for i := range players {
		players[i].merits = 50
	}
	seedSnapshot(st, "s1", "final", players...)
	service := newTestMetricsService(st, cache.NewMemoryCache())
	ctx := context.Background()

	t.Run("snapshot", func(t *testing.T) {
		result, err := service.KvKMetrics(ctx, "s1", "start", "", []int{101}, []int{102})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if result.Snapshot == nil || result.Deltas != nil {
			t.Fatalf("Expected snapshot only, got %+v", result)
		}
		if len(result.Snapshot.Allies) != 1 || len(result.Snapshot.Enemies) != 1 {
			t.Errorf("Expected 1 ally and 1 enemy, got %d/%d", len(result.Snapshot.Allies), len(result.Snapshot.Enemies))
		}
	})

	t.Run("diff", func(t *testing.T) {
		result, err := service.KvKMetrics(ctx, "s1", "start", "final", []int{101}, []int{102})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if result.Deltas == nil {
			t.Fatal("Expected deltas")
		}
		if _, ok := result.Deltas.Allies["1"]; !ok {
			t.Error("Expected player 1 among allies")
		}
		if _, ok := result.Deltas.Enemies["2"]; !ok {
			t.Error("Expected player 2 among enemies")
		}
		if _, ok := result.Deltas.Enemies["3"]; ok {
			t.Error("Expected unlisted server excluded")
		}
		if result.Deltas.Allies["1"].Merits != 40 {
			t.Errorf("Expected merits delta 40, got %v", result.Deltas.Allies["1"].Merits)
		}
	})

	t.Run("cached diff decodes", func(t *testing.T) {
		result, err := service.KvKMetrics(ctx, "s1", "start", "final", []int{101}, []int{102})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if result.Deltas.Allies["1"].Merits != 40 {
			t.Errorf("Expected cached merits delta 40, got %v", result.Deltas.Allies["1"].Merits)
		}
	})
}

func TestMetricsService_KvKSeasonSummary(t *testing.T) {
	st := store.NewMemoryStore()
	start := []testPlayer{
		{id: "1", name: "Home A", server: 101, highestPower: 60_000_000, merits: 100, manaSpent: 10},
		{id: "2", name: "Home B", server: 101, highestPower: 60_000_000, merits: 100, manaSpent: 10},
		{id: "3", name: "Enemy", server: 102, highestPower: 80_000_000, merits: 100},
		{id: "4", name: "Other", server: 103, highestPower: 80_000_000, merits: 100},
	}
	uploadSnapshot(t, st, "s1", "2025-01-10", start...)

	final := []testPlayer{
		{id: "1", name: "Home A", server: 101, highestPower: 60_000_000, merits: 400, manaSpent: 30},
		{id: "2", name: "Home B", server: 101, highestPower: 60_000_000, merits: 900, manaSpent: 10},
		{id: "3", name: "Enemy", server: 102, highestPower: 80_000_000, merits: 600},
		{id: "4", name: "Other", server: 103, highestPower: 80_000_000, merits: 100},
	}
	uploadSnapshot(t, st, "s1", "2025-01-17", final...)

	service := newTestMetricsService(st, cache.NewMemoryCache())
	summary, err := service.KvKSeasonSummary(context.Background(), "s1", "2025-01-10", "2025-01-17", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !reflect.DeepEqual(summary.Allies, []int{testHomeServer}) {
		t.Errorf("Expected allies to default to home server, got %v", summary.Allies)
	}
	if summary.AllySide.Players != 2 || summary.EnemySide.Players != 2 {
		t.Errorf("Expected 2 players per side, got %d/%d", summary.AllySide.Players, summary.EnemySide.Players)
	}

	top := summary.AllySide.Top[metrics.MetricMerits]
	if len(top) != 2 || top[0].UserID != "2" || top[0].Value != 800 || top[1].UserID != "1" {
		t.Errorf("Unexpected ally merits leaderboard: %+v", top)
	}
	// Zero deltas are not ranked
	if enemyTop := summary.EnemySide.Top[metrics.MetricMerits]; len(enemyTop) != 1 || enemyTop[0].UserID != "3" {
		t.Errorf("Unexpected enemy merits leaderboard: %+v", enemyTop)
	}

	home := summary.Aggregates[testHomeServer]
	if home.Merits != 1100 || home.ManaSpent != 20 {
		t.Errorf("Unexpected home aggregate: %+v", home)
	}
	if !reflect.DeepEqual(summary.Series.Servers, []int{101, 102, 103}) {
		t.Errorf("Expected series over all servers, got %v", summary.Series.Servers)
	}

	// Second read decodes the cached form
	again, err := service.KvKSeasonSummary(context.Background(), "s1", "2025-01-10", "2025-01-17", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if again.Aggregates[testHomeServer].Merits != 1100 {
		t.Errorf("Expected cached aggregate 1100, got %+v", again.Aggregates[testHomeServer])
	}
	if cachedTop := again.AllySide.Top[metrics.MetricMerits]; len(cachedTop) != 2 || cachedTop[0].Metric != metrics.MetricMerits {
		t.Errorf("Unexpected cached leaderboard: %+v", cachedTop)
	}
}

func TestMetricsService_TopN(t *testing.T) {
	st := store.NewMemoryStore()
	seedSnapshot(st, "s1", "start",
		testPlayer{id: "1", server: 101, unitsKilled: 0},
		testPlayer{id: "2", server: 101, unitsKilled: 0},
		testPlayer{id: "3", server: 102, unitsKilled: 0},
	)
	seedSnapshot(st, "s1", "final",
		testPlayer{id: "1", server: 101, unitsKilled: 5},
		testPlayer{id: "2", server: 101, unitsKilled: 50},
		testPlayer{id: "3", server: 102, unitsKilled: 50},
	)
	service := newTestMetricsService(st, nil)

	entries, err := service.TopN(context.Background(), "s1", "start", "final", metrics.MetricUnitsKilled, 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	// Equal values are ordered by user id
	if entries[0].UserID != "2" || entries[1].UserID != "3" {
		t.Errorf("Expected players 2 then 3, got %s then %s", entries[0].UserID, entries[1].UserID)
	}
}
