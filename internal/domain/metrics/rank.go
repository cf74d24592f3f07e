package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RankEntry is one row of a Top-N leaderboard. It encodes the metric value
// under the metric's own name, e.g. {"userId":"1","server":101,"merits":1500}.
type RankEntry struct {
	UserID string
	Name   interface{}
	Server int
	Metric string
	Value  float64
}

// MarshalJSON implements json.Marshaler
func (e RankEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"userId": e.UserID,
		"name":   e.Name,
		"server": e.Server,
		e.Metric: e.Value,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The one key that is not an
// identity field is taken as the metric.
func (e *RankEntry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var out RankEntry
	for key, raw := range fields {
		var err error
		switch key {
		case "userId":
			err = json.Unmarshal(raw, &out.UserID)
		case "name":
			err = json.Unmarshal(raw, &out.Name)
		case "server":
			err = json.Unmarshal(raw, &out.Server)
		default:
			out.Metric = key
			err = json.Unmarshal(raw, &out.Value)
		}
		if err != nil {
			return fmt.Errorf("rank entry field %s: %w", key, err)
		}
	}
	*e = out
	return nil
}

// RankTopN orders players by one metric, highest first, and keeps the first n.
// Zero, NaN and infinite values are excluded. Ties are broken by user id so the
// output is deterministic.
//
// Pure function: Does not modify input, returns new slice.
func RankTopN(deltas map[string]MetricDelta, metric string, n int) []RankEntry {
	if n <= 0 {
		return []RankEntry{}
	}

	entries := make([]RankEntry, 0, len(deltas))
	for id, d := range deltas {
		v, ok := d.Value(metric)
		if !ok || !isRankable(v) {
			continue
		}
		entries = append(entries, RankEntry{
			UserID: id,
			Name:   d.Name,
			Server: d.Server(),
			Metric: metric,
			Value:  v,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].UserID < entries[j].UserID
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func isRankable(v float64) bool {
	return zeroIfNaN(v) != 0
}
