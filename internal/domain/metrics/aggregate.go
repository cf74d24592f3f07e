package metrics

import (
	"sort"

	"guild_stats/internal/app"
	"guild_stats/internal/domain/ingest"
)

// ServerAggregate is the change of one server between two dates
type ServerAggregate struct {
	Merits       float64 `json:"merits"`
	ManaSpent    float64 `json:"manaSpent"`
	UnitsDead    float64 `json:"unitsDead"`
	HighestPower float64 `json:"highestPower"`
	PowerLoss    float64 `json:"powerLoss"`
}

// AggregateServerTotals sums player deltas per server.
// A server contributes only when it has a totals entry in both snapshots and
// at least one player delta; otherwise it is left out rather than zero-filled.
// HighestPower sums end-snapshot highest power and PowerLoss sums
// (currentPower - highestPower) over the same players.
//
// Pure function: No I/O, deterministic output from input.
func AggregateServerTotals(startTotals, endTotals map[int]app.ServerTotals, deltas map[string]MetricDelta) map[int]ServerAggregate {
	out := make(map[int]ServerAggregate)
	for _, d := range deltas {
		server := d.Server()
		if _, ok := startTotals[server]; !ok {
			continue
		}
		if _, ok := endTotals[server]; !ok {
			continue
		}

		agg := out[server]
		agg.Merits += zeroIfNaN(float64(d.Merits))
		agg.ManaSpent += zeroIfNaN(float64(d.ManaSpent))
		agg.UnitsDead += zeroIfNaN(float64(d.UnitsDead))

		highest := zeroIfNaN(ingest.ParseDelta(d.HighestPower))
		current := zeroIfNaN(ingest.ParseDelta(d.CurrentPower))
		agg.HighestPower += highest
		agg.PowerLoss += current - highest
		out[server] = agg
	}
	return out
}

// ServerSeries is the chart-ready form of server aggregates: parallel arrays
// ordered by server number.
type ServerSeries struct {
	Servers      []int     `json:"servers"`
	Merits       []float64 `json:"merits"`
	ManaSpent    []float64 `json:"manaSpent"`
	UnitsDead    []float64 `json:"unitsDead"`
	HighestPower []float64 `json:"highestPower"`
	PowerLoss    []float64 `json:"powerLoss"`
}

// BuildServerSeries flattens aggregates into chart series
func BuildServerSeries(aggregates map[int]ServerAggregate) ServerSeries {
	servers := make([]int, 0, len(aggregates))
	for s := range aggregates {
		servers = append(servers, s)
	}
	sort.Ints(servers)

	series := ServerSeries{
		Servers:      servers,
		Merits:       make([]float64, 0, len(servers)),
		ManaSpent:    make([]float64, 0, len(servers)),
		UnitsDead:    make([]float64, 0, len(servers)),
		HighestPower: make([]float64, 0, len(servers)),
		PowerLoss:    make([]float64, 0, len(servers)),
	}
	for _, s := range servers {
		a := aggregates[s]
		series.Merits = append(series.Merits, a.Merits)
		series.ManaSpent = append(series.ManaSpent, a.ManaSpent)
		series.UnitsDead = append(series.UnitsDead, a.UnitsDead)
		series.HighestPower = append(series.HighestPower, a.HighestPower)
		series.PowerLoss = append(series.PowerLoss, a.PowerLoss)
	}
	return series
}
