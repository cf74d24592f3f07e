package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"guild_stats/internal/app"
	"guild_stats/internal/cache"
	"guild_stats/internal/config"
	"guild_stats/internal/domain/metrics"
	"guild_stats/internal/store"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SummaryTopN is the leaderboard length of the season summary
const SummaryTopN = 300

// IndividualResult is either a raw snapshot (no end date) or per-player deltas
type IndividualResult struct {
	Season  string                         `json:"season"`
	Start   string                         `json:"start"`
	End     string                         `json:"end,omitempty"`
	Players map[string]metrics.Document    `json:"players,omitempty"`
	Deltas  map[string]metrics.MetricDelta `json:"deltas,omitempty"`
}

// KvKResult splits players between allied and enemy servers
type KvKResult struct {
	Season   string                                  `json:"season"`
	Start    string                                  `json:"start"`
	End      string                                  `json:"end,omitempty"`
	Snapshot *metrics.Allegiance[metrics.Document]    `json:"snapshot,omitempty"`
	Deltas   *metrics.Allegiance[metrics.MetricDelta] `json:"deltas,omitempty"`
}

// SideSummary is the leaderboards of one side of a KvK
type SideSummary struct {
	Players int                            `json:"players"`
	Top     map[string][]metrics.RankEntry `json:"top"`
}

// KvKSummary is the season-level KvK dashboard
type KvKSummary struct {
	Season     string                          `json:"season"`
	Start      string                          `json:"start"`
	End        string                          `json:"end"`
	Allies     []int                           `json:"allies"`
	AllySide   SideSummary                     `json:"allySide"`
	EnemySide  SideSummary                     `json:"enemySide"`
	Aggregates map[int]metrics.ServerAggregate `json:"aggregates"`
	Series     metrics.ServerSeries            `json:"series"`
}

// MetricsService answers the read endpoints from stored snapshots, caching
// computed responses per season
type MetricsService struct {
	store      store.DocumentStore
	cache      cache.Cache
	ttl        time.Duration
	homeServer int
	resilience config.ResilienceConfig
}

// NewMetricsService creates a metrics service. c may be nil to disable caching.
func NewMetricsService(st store.DocumentStore, c cache.Cache, ttl time.Duration, homeServer int) *MetricsService {
	return &MetricsService{
		store:      st,
		cache:      c,
		ttl:        ttl,
		homeServer: homeServer,
		resilience: config.DefaultResilienceConfig,
	}
}

// ListDates returns the upload titles stored for a season
func (s *MetricsService) ListDates(ctx context.Context, season string) ([]string, error) {
	if season == "" {
		return nil, fmt.Errorf("%w: season is required", ErrValidation)
	}
	var dates []string
	err := config.WithRetry(ctx, s.resilience.StoreRead, "list dates", func(ctx context.Context) error {
		var err error
		dates, err = s.store.ListCollections(ctx, store.Join(SeasonsCollection, season))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("season %s: %w", season, ErrNotFound)
	}
	return dates, nil
}

// IndividualMetrics returns the snapshot at start, or deltas from start to end
func (s *MetricsService) IndividualMetrics(ctx context.Context, season, start, end string) (*IndividualResult, error) {
	if err := requireWindow(season, start, end); err != nil {
		return nil, err
	}
	key := cacheKey(season, "individual", start, end)

	return cached(ctx, s, key, func() (*IndividualResult, error) {
		result := &IndividualResult{Season: season, Start: start, End: end}
		if end == "" {
			snap, err := s.loadSnapshot(ctx, season, start)
			if err != nil {
				return nil, err
			}
			result.Players = snap
			return result, nil
		}

		startSnap, endSnap, err := s.loadPair(ctx, season, start, end)
		if err != nil {
			return nil, err
		}
		result.Deltas = metrics.Diff(startSnap, endSnap)
		return result, nil
	})
}

// KvKMetrics splits players by explicit ally and enemy server lists. Players
// on unlisted servers are left out.
func (s *MetricsService) KvKMetrics(ctx context.Context, season, start, end string, allies, enemies []int) (*KvKResult, error) {
	if err := requireWindow(season, start, end); err != nil {
		return nil, err
	}
	if len(allies) == 0 && len(enemies) == 0 {
		return nil, fmt.Errorf("%w: at least one ally or enemy server is required", ErrValidation)
	}
	key := cacheKey(season, "kvk", start, end, serverKey(allies), serverKey(enemies))

	return cached(ctx, s, key, func() (*KvKResult, error) {
		result := &KvKResult{Season: season, Start: start, End: end}
		if end == "" {
			snap, err := s.loadSnapshot(ctx, season, start)
			if err != nil {
				return nil, err
			}
			split := metrics.PartitionSnapshot(snap, allies, enemies, metrics.PartitionExplicit)
			result.Snapshot = &split
			return result, nil
		}

		startSnap, endSnap, err := s.loadPair(ctx, season, start, end)
		if err != nil {
			return nil, err
		}
		split := metrics.DiffTwoSnapshots(startSnap, endSnap, allies, enemies, metrics.PartitionExplicit)
		result.Deltas = &split
		return result, nil
	})
}

// KvKSeasonSummary ranks both sides for every tracked metric and aggregates
// per-server changes. Every server not in allies counts as enemy; allies
// default to the home server.
func (s *MetricsService) KvKSeasonSummary(ctx context.Context, season, start, end string, allies []int) (*KvKSummary, error) {
	if err := requireWindow(season, start, end); err != nil {
		return nil, err
	}
	if end == "" {
		return nil, fmt.Errorf("%w: end date is required", ErrValidation)
	}
	if len(allies) == 0 {
		allies = []int{s.homeServer}
	}
	key := cacheKey(season, "summary", start, end, serverKey(allies))

	return cached(ctx, s, key, func() (*KvKSummary, error) {
		var (
			startSnap, endSnap     metrics.Snapshot
			startTotals, endTotals map[int]app.ServerTotals
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			startSnap, err = s.loadSnapshot(gctx, season, start)
			return err
		})
		g.Go(func() error {
			var err error
			endSnap, err = s.loadSnapshot(gctx, season, end)
			return err
		})
		g.Go(func() error {
			var err error
			startTotals, err = s.loadTotals(gctx, season, start)
			return err
		})
		g.Go(func() error {
			var err error
			endTotals, err = s.loadTotals(gctx, season, end)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		split := metrics.DiffTwoSnapshots(startSnap, endSnap, allies, nil, metrics.PartitionElseEnemy)
		all := metrics.Diff(startSnap, endSnap)
		aggregates := metrics.AggregateServerTotals(startTotals, endTotals, all)

		return &KvKSummary{
			Season:     season,
			Start:      start,
			End:        end,
			Allies:     allies,
			AllySide:   summarizeSide(split.Allies),
			EnemySide:  summarizeSide(split.Enemies),
			Aggregates: aggregates,
			Series:     metrics.BuildServerSeries(aggregates),
		}, nil
	})
}

// TopN ranks all players of a window by one metric
func (s *MetricsService) TopN(ctx context.Context, season, start, end, metric string, n int) ([]metrics.RankEntry, error) {
	if err := requireWindow(season, start, end); err != nil {
		return nil, err
	}
	if end == "" {
		return nil, fmt.Errorf("%w: end date is required", ErrValidation)
	}
	if !metrics.IsTrackedMetric(metric) {
		return nil, fmt.Errorf("%w: unknown metric %q", ErrValidation, metric)
	}

	result, err := s.IndividualMetrics(ctx, season, start, end)
	if err != nil {
		return nil, err
	}
	return metrics.RankTopN(result.Deltas, metric, n), nil
}

func summarizeSide(deltas map[string]metrics.MetricDelta) SideSummary {
	top := make(map[string][]metrics.RankEntry, len(metrics.TrackedMetrics))
	for _, metric := range metrics.TrackedMetrics {
		top[metric] = metrics.RankTopN(deltas, metric, SummaryTopN)
	}
	return SideSummary{Players: len(deltas), Top: top}
}

func (s *MetricsService) loadPair(ctx context.Context, season, start, end string) (metrics.Snapshot, metrics.Snapshot, error) {
	var startSnap, endSnap metrics.Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		startSnap, err = s.loadSnapshot(gctx, season, start)
		return err
	})
	g.Go(func() error {
		var err error
		endSnap, err = s.loadSnapshot(gctx, season, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return startSnap, endSnap, nil
}

// loadSnapshot reads every player document of a date, without the totals document
func (s *MetricsService) loadSnapshot(ctx context.Context, season, title string) (metrics.Snapshot, error) {
	var docs map[string]map[string]interface{}
	err := config.WithRetry(ctx, s.resilience.StoreRead, "load snapshot "+title, func(ctx context.Context) error {
		var err error
		docs, err = s.store.GetAll(ctx, store.Join(SeasonsCollection, season, title))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	delete(docs, app.TotalDocID)
	if len(docs) == 0 {
		return nil, fmt.Errorf("snapshot %s/%s: %w", season, title, ErrNotFound)
	}

	snap := make(metrics.Snapshot, len(docs))
	for id, doc := range docs {
		snap[id] = metrics.Document(doc)
	}
	return snap, nil
}

func (s *MetricsService) loadTotals(ctx context.Context, season, title string) (map[int]app.ServerTotals, error) {
	var doc map[string]interface{}
	err := config.WithRetry(ctx, s.resilience.StoreRead, "load totals "+title, func(ctx context.Context) error {
		var err error
		doc, err = s.store.Get(ctx, store.Join(SeasonsCollection, season, title, app.TotalDocID))
		if errors.Is(err, store.ErrNotFound) {
			doc, err = nil, nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if doc == nil {
		return map[int]app.ServerTotals{}, nil
	}
	return metrics.TotalsFromDocument(metrics.Document(doc)), nil
}

// cached serves key from the cache or computes, stores and returns it.
// Cache errors never fail a read.
func cached[T any](ctx context.Context, s *MetricsService, key string, compute func() (T, error)) (T, error) {
	var zero T
	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache read failed, computing")
		} else if ok {
			var out T
			if err := json.Unmarshal(data, &out); err == nil {
				log.Debug().Str("key", key).Msg("Serving cached metrics")
				return out, nil
			}
			log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
		}
	}

	out, err := compute()
	if err != nil {
		return zero, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
			}
		}
	}
	return out, nil
}

func cacheKey(season, kind string, parts ...string) string {
	return "metrics:" + season + ":" + kind + ":" + strings.Join(parts, ":")
}

func serverKey(servers []int) string {
	parts := make([]string, len(servers))
	for i, s := range servers {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, ",")
}

// requireWindow checks the season and date window before anything is read.
// end may be empty for single snapshot reads.
func requireWindow(season, start, end string) error {
	if season == "" {
		return fmt.Errorf("%w: season is required", ErrValidation)
	}
	if start == "" {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if !app.IsValidTitle(start) {
		return fmt.Errorf("%w: invalid start date %q", ErrValidation, start)
	}
	if end != "" && !app.IsValidTitle(end) {
		return fmt.Errorf("%w: invalid end date %q", ErrValidation, end)
	}
	return nil
}
