package ingest

import "strings"

// Format identifies one of the known spreadsheet export layouts.
// The layouts come from independently maintained export tools and are kept as
// separate tables on purpose.
type Format int

const (
	FormatUnknown Format = iota
	FormatF1
	FormatF2
	FormatF3
)

func (f Format) String() string {
	switch f {
	case FormatF1:
		return "F1"
	case FormatF2:
		return "F2"
	case FormatF3:
		return "F3"
	default:
		return "unknown"
	}
}

// Field names a canonical PlayerSnapshot attribute
type Field int

const (
	FieldLordID Field = iota
	FieldName
	FieldHomeServer
	FieldCurrentPower
	FieldHighestPower
	FieldMerits
	FieldUnitsKilled
	FieldUnitsDead
	FieldUnitsHealed
	FieldT5KillCount
	FieldManaSpent
	FieldGemsSpent
)

// headerPair is one expected header cell
type headerPair struct {
	index int
	name  string
}

// Layout is a detected format together with its column map
type Layout struct {
	Format  Format
	Columns map[Field]int
	Matched int
}

type formatSpec struct {
	format   Format
	expected []headerPair
	columns  map[Field]int
}

// F1: full in-game export. Gems were appended later and are not part of detection.
var f1Spec = formatSpec{
	format: FormatF1,
	expected: []headerPair{
		{0, "Lord ID"},
		{1, "Name"},
		{2, "Home Server"},
		{3, "Current Power"},
		{4, "Highest Power"},
		{5, "Merits"},
		{6, "Units Killed"},
		{7, "Units Dead"},
		{8, "Units Healed"},
		{9, "T5 Kill Count"},
		{10, "Mana Spent"},
	},
	columns: map[Field]int{
		FieldLordID:       0,
		FieldName:         1,
		FieldHomeServer:   2,
		FieldCurrentPower: 3,
		FieldHighestPower: 4,
		FieldMerits:       5,
		FieldUnitsKilled:  6,
		FieldUnitsDead:    7,
		FieldUnitsHealed:  8,
		FieldT5KillCount:  9,
		FieldManaSpent:    10,
		FieldGemsSpent:    11,
	},
}

// F2: legacy community tracker. No gems column; T5 kills trail the row.
var f2Spec = formatSpec{
	format: FormatF2,
	expected: []headerPair{
		{0, "ID"},
		{1, "Player"},
		{2, "Server"},
		{3, "Power"},
		{4, "Max Power"},
		{5, "Merit"},
		{6, "Kills"},
		{7, "Deaths"},
		{8, "Heals"},
		{9, "Mana"},
	},
	columns: map[Field]int{
		FieldLordID:       0,
		FieldName:         1,
		FieldHomeServer:   2,
		FieldCurrentPower: 3,
		FieldHighestPower: 4,
		FieldMerits:       5,
		FieldUnitsKilled:  6,
		FieldUnitsDead:    7,
		FieldUnitsHealed:  8,
		FieldManaSpent:    9,
		FieldT5KillCount:  10,
	},
}

// F3: scanner bot export with snake_case headers and a different column order.
var f3Spec = formatSpec{
	format: FormatF3,
	expected: []headerPair{
		{0, "lord_id"},
		{1, "server"},
		{2, "nickname"},
		{3, "highest_power"},
		{4, "power"},
		{5, "units_killed"},
		{6, "t5_killed"},
		{7, "units_dead"},
		{8, "merits"},
		{9, "mana_spent"},
	},
	columns: map[Field]int{
		FieldLordID:       0,
		FieldHomeServer:   1,
		FieldName:         2,
		FieldHighestPower: 3,
		FieldCurrentPower: 4,
		FieldUnitsKilled:  5,
		FieldT5KillCount:  6,
		FieldUnitsDead:    7,
		FieldMerits:       8,
		FieldManaSpent:    9,
		FieldUnitsHealed:  10,
		FieldGemsSpent:    11,
	},
}

// detection priority
var formatSpecs = []formatSpec{f1Spec, f2Spec, f3Spec}

// ExpectedHeader returns the header row a format expects, for fixtures and diagnostics
func ExpectedHeader(format Format) []string {
	for _, spec := range formatSpecs {
		if spec.format != format {
			continue
		}
		width := 0
		for _, p := range spec.expected {
			if p.index+1 > width {
				width = p.index + 1
			}
		}
		header := make([]string, width)
		for _, p := range spec.expected {
			header[p.index] = p.name
		}
		return header
	}
	return nil
}

// Detect determines which known layout a header row matches.
// A layout qualifies when at most one of its expected (index, name) pairs is
// missing or renamed; layouts are tried in priority order F1, F2, F3.
//
// Pure function: No I/O, deterministic output from input.
func Detect(header []string) (Layout, bool) {
	for _, spec := range formatSpecs {
		matched := countMatches(header, spec.expected)
		if matched >= len(spec.expected)-1 {
			return Layout{
				Format:  spec.format,
				Columns: spec.columns,
				Matched: matched,
			}, true
		}
	}
	return Layout{Format: FormatUnknown}, false
}

func countMatches(header []string, expected []headerPair) int {
	matched := 0
	for _, p := range expected {
		if p.index >= len(header) {
			continue
		}
		if normalizeHeaderCell(header[p.index], p.index) == p.name {
			matched++
		}
	}
	return matched
}

// normalizeHeaderCell trims whitespace and a stray byte-order mark left on the first cell
func normalizeHeaderCell(cell string, index int) string {
	if index == 0 {
		cell = strings.TrimPrefix(cell, "\ufeff")
	}
	return strings.TrimSpace(cell)
}
