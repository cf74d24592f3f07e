package ingest

import (
	"strconv"
	"strings"

	"guild_stats/internal/app"
)

// SkipReason explains why a row did not produce a record
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipNoIdentifier    SkipReason = "no_identifier"
	SkipInvalidNumber   SkipReason = "invalid_number"
	SkipInvalidServer   SkipReason = "invalid_server"
	SkipLowPowerForeign SkipReason = "low_power_foreign"
)

// Extract builds a PlayerSnapshot from one data row using the detected layout.
// Rows without an identifier in the first column are skipped. A numeric cell
// that does not parse rejects the row. When title is "start" merits are forced
// to zero because the game's season-start counter is unreliable.
//
// Pure function: No I/O, deterministic output from input.
func Extract(row []string, layout Layout, title string) (app.PlayerSnapshot, SkipReason) {
	var snap app.PlayerSnapshot

	if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
		return snap, SkipNoIdentifier
	}

	snap.LordID = cellAt(row, layout.Columns, FieldLordID)
	snap.Name = cellAt(row, layout.Columns, FieldName)

	server, ok := ParseCell(cellAt(row, layout.Columns, FieldHomeServer))
	if !ok || server != float64(int(server)) {
		return app.PlayerSnapshot{}, SkipInvalidNumber
	}
	snap.HomeServer = int(server)

	numeric := []struct {
		field Field
		dst   *float64
	}{
		{FieldCurrentPower, &snap.CurrentPower},
		{FieldHighestPower, &snap.HighestPower},
		{FieldMerits, &snap.Merits},
		{FieldUnitsKilled, &snap.UnitsKilled},
		{FieldUnitsDead, &snap.UnitsDead},
		{FieldUnitsHealed, &snap.UnitsHealed},
		{FieldT5KillCount, &snap.T5KillCount},
		{FieldManaSpent, &snap.ManaSpent},
		{FieldGemsSpent, &snap.GemsSpent},
	}
	for _, n := range numeric {
		v, ok := ParseCell(cellAt(row, layout.Columns, n.field))
		if !ok {
			return app.PlayerSnapshot{}, SkipInvalidNumber
		}
		*n.dst = v
	}

	if title == app.TitleStart {
		snap.Merits = 0
	}

	return snap, SkipNone
}

// cellAt returns the trimmed cell for a field, or "" when the layout has no
// such column or the row is short
func cellAt(row []string, columns map[Field]int, field Field) string {
	idx, ok := columns[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// FormatServer renders a server number as a map key
func FormatServer(server int) string {
	return strconv.Itoa(server)
}
