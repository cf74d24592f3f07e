package ingest

import "guild_stats/internal/app"

// ratchetFields are the roster attributes that may only increase
var ratchetFields = []string{
	app.RosterHighestPower,
	app.RosterUnitsKilled,
	app.RosterUnitsDead,
	app.RosterManaSpent,
}

func snapshotRatchetValue(p app.PlayerSnapshot, field string) float64 {
	switch field {
	case app.RosterHighestPower:
		return p.HighestPower
	case app.RosterUnitsKilled:
		return p.UnitsKilled
	case app.RosterUnitsDead:
		return p.UnitsDead
	case app.RosterManaSpent:
		return p.ManaSpent
	}
	return 0
}

func rosterRatchetValue(u app.RosterUser, field string) interface{} {
	switch field {
	case app.RosterHighestPower:
		return u.HighestPower
	case app.RosterUnitsKilled:
		return u.UnitsKilled
	case app.RosterUnitsDead:
		return u.UnitsDead
	case app.RosterManaSpent:
		return u.ManaSpent
	}
	return nil
}

// RatchetRoster returns the roster fields a row should update. A stat is
// written only when the row's value is strictly greater than the stored one;
// a stored value that is missing or unparsable counts as absent. The nickname
// is written whenever the row carries a name. Returns nil when nothing changes.
//
// Pure function: No I/O, deterministic output from input.
func RatchetRoster(user app.RosterUser, p app.PlayerSnapshot) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, field := range ratchetFields {
		incoming := snapshotRatchetValue(p, field)
		existing := ParseDelta(rosterRatchetValue(user, field))
		if !IsUsable(existing) || incoming > existing {
			fields[field] = incoming
		}
	}
	if p.Name != "" {
		fields[app.RosterNickname] = p.Name
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// MergeRosterFields combines two staged updates for the same player: stats
// keep the larger value, the nickname from next wins.
//
// Pure function: Does not modify inputs, returns a new map.
func MergeRosterFields(prev, next map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(prev)+len(next))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range next {
		if k == app.RosterNickname {
			out[k] = v
			continue
		}
		if old, ok := out[k]; ok {
			if ParseDelta(old) >= ParseDelta(v) {
				continue
			}
		}
		out[k] = v
	}
	return out
}
