package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseDelta converts a stored metric value into a number for delta computation.
// Strings have every thousands separator stripped before parsing, so "1,234,567"
// becomes 1234567. Anything that does not yield a finite number returns NaN;
// callers decide whether NaN degrades to zero or disqualifies the value.
//
// Pure function: No I/O, deterministic output from input.
func ParseDelta(raw interface{}) float64 {
	var f float64
	switch v := raw.(type) {
	case nil:
		return math.NaN()
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		return ParseDelta(v.String())
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if s == "" {
			return math.NaN()
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		f = parsed
	default:
		return math.NaN()
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

// IsUsable reports whether v is a finite number
func IsUsable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ParseCell parses one numeric spreadsheet cell during row extraction.
// Blank cells count as zero. Non-numeric, negative or non-finite values are
// rejected so the caller can skip the whole row.
func ParseCell(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}
