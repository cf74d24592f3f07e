package metrics

import (
	"encoding/json"
	"math"
	"strconv"

	"guild_stats/internal/app"
	"guild_stats/internal/domain/ingest"
)

// Tracked metric names, as stored on player documents
const (
	MetricMerits      = "merits"
	MetricUnitsKilled = "unitsKilled"
	MetricUnitsDead   = "unitsDead"
	MetricManaSpent   = "manaSpent"
	MetricT5KillCount = "t5KillCount"
)

// TrackedMetrics lists every attribute that gets a delta, in display order
var TrackedMetrics = []string{MetricMerits, MetricUnitsKilled, MetricUnitsDead, MetricManaSpent, MetricT5KillCount}

// IsTrackedMetric reports whether name is a delta attribute
func IsTrackedMetric(name string) bool {
	for _, m := range TrackedMetrics {
		if m == name {
			return true
		}
	}
	return false
}

// Document is a stored player document. Values are whatever the store holds:
// numbers for current uploads, formatted strings for older ones.
type Document map[string]interface{}

// Snapshot is every player document of one date collection, keyed by lord id
type Snapshot map[string]Document

// Server returns the document's home server, or 0 when it cannot be parsed
func (d Document) Server() int {
	v := ingest.ParseDelta(d["homeServer"])
	if !ingest.IsUsable(v) {
		return 0
	}
	return int(v)
}

// Delta is a metric difference. NaN marks a value that could not be parsed on
// either side and is encoded as JSON null.
type Delta float64

// MarshalJSON implements json.Marshaler
func (d Delta) MarshalJSON() ([]byte, error) {
	f := float64(d)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler, reading null back as NaN
func (d *Delta) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Delta(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*d = Delta(f)
	return nil
}

// MetricDelta is one player's change between two snapshots
type MetricDelta struct {
	UserID       string      `json:"userId"`
	Name         interface{} `json:"name"`
	CurrentPower interface{} `json:"currentPower"`
	HighestPower interface{} `json:"highestPower"`
	HomeServer   interface{} `json:"homeServer"`

	Merits      Delta `json:"merits"`
	UnitsKilled Delta `json:"unitsKilled"`
	UnitsDead   Delta `json:"unitsDead"`
	ManaSpent   Delta `json:"manaSpent"`
	T5KillCount Delta `json:"t5KillCount"`
}

// Value returns the delta for a tracked metric name
func (m MetricDelta) Value(metric string) (float64, bool) {
	switch metric {
	case MetricMerits:
		return float64(m.Merits), true
	case MetricUnitsKilled:
		return float64(m.UnitsKilled), true
	case MetricUnitsDead:
		return float64(m.UnitsDead), true
	case MetricManaSpent:
		return float64(m.ManaSpent), true
	case MetricT5KillCount:
		return float64(m.T5KillCount), true
	}
	return 0, false
}

// Server returns the player's home server from the end snapshot
func (m MetricDelta) Server() int {
	v := ingest.ParseDelta(m.HomeServer)
	if !ingest.IsUsable(v) {
		return 0
	}
	return int(v)
}

// TotalsFromDocument reads per-server totals from a stored "total" document.
// Current documents nest servers under "servers"; older ones keep server keys at
// the top level.
func TotalsFromDocument(doc Document) map[int]app.ServerTotals {
	source := map[string]interface{}(doc)
	if nested, ok := doc["servers"].(map[string]interface{}); ok {
		source = nested
	}

	totals := make(map[int]app.ServerTotals)
	for key, raw := range source {
		server, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		fields, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		totals[server] = app.ServerTotals{
			Merits:    zeroIfNaN(ingest.ParseDelta(fields["merits"])),
			ManaSpent: zeroIfNaN(ingest.ParseDelta(fields["manaSpent"])),
			UnitsDead: zeroIfNaN(ingest.ParseDelta(fields["unitsDead"])),
		}
	}
	return totals
}

func zeroIfNaN(v float64) float64 {
	if !ingest.IsUsable(v) {
		return 0
	}
	return v
}
