package sheets

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cell provides type-safe access to Google Sheets cell values.
// The Google Sheets API returns [][]interface{}, which we cannot change.
type Cell struct {
	raw interface{}
}

// NewCell creates a Cell from a raw interface{} value from Google Sheets API
func NewCell(raw interface{}) Cell {
	return Cell{raw: raw}
}

// String returns the cell value as the text an exported file would carry.
// Whole numbers never use exponent notation, so 120000000 stays "120000000".
func (c Cell) String() string {
	switch v := c.raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// IsEmpty reports whether the cell holds nothing or only whitespace
func (c Cell) IsEmpty() bool {
	if s, ok := c.raw.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return c.raw == nil
}

// isBlankRow reports whether every cell of an API row is empty
func isBlankRow(row []interface{}) bool {
	for _, v := range row {
		if !NewCell(v).IsEmpty() {
			return false
		}
	}
	return true
}

// RowStrings converts one API row to strings
func RowStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = NewCell(v).String()
	}
	return out
}
