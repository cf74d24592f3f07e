package metrics

import "guild_stats/internal/domain/ingest"

// PartitionMode selects how players are split between allies and enemies.
// The read endpoints disagree on players from unlisted servers, so both
// behaviours are kept.
type PartitionMode int

const (
	// PartitionElseEnemy puts every player not on an ally server into enemies
	PartitionElseEnemy PartitionMode = iota
	// PartitionExplicit keeps only players whose server is listed on either side
	PartitionExplicit
)

// Allegiance is a snapshot or delta set split by server membership
type Allegiance[T any] struct {
	Allies  map[string]T `json:"allies"`
	Enemies map[string]T `json:"enemies"`
}

// Diff computes per-player deltas between two snapshots.
// Only players present in both snapshots are reported; a player with no
// baseline in start has no delta. Identity fields are copied from end.
//
// Pure function: No I/O, deterministic output from input.
func Diff(start, end Snapshot) map[string]MetricDelta {
	deltas := make(map[string]MetricDelta)
	for id, endDoc := range end {
		startDoc, ok := start[id]
		if !ok {
			continue
		}
		deltas[id] = diffDocuments(id, startDoc, endDoc)
	}
	return deltas
}

func diffDocuments(id string, startDoc, endDoc Document) MetricDelta {
	sub := func(field string) Delta {
		return Delta(ingest.ParseDelta(endDoc[field]) - ingest.ParseDelta(startDoc[field]))
	}
	return MetricDelta{
		UserID:       id,
		Name:         endDoc["name"],
		CurrentPower: endDoc["currentPower"],
		HighestPower: endDoc["highestPower"],
		HomeServer:   endDoc["homeServer"],
		Merits:       sub(MetricMerits),
		UnitsKilled:  sub(MetricUnitsKilled),
		UnitsDead:    sub(MetricUnitsDead),
		ManaSpent:    sub(MetricManaSpent),
		T5KillCount:  sub(MetricT5KillCount),
	}
}

// Partition splits items by the server returned from serverOf
func Partition[T any](items map[string]T, serverOf func(T) int, allies, enemies []int, mode PartitionMode) Allegiance[T] {
	allySet := toSet(allies)
	enemySet := toSet(enemies)

	out := Allegiance[T]{
		Allies:  make(map[string]T),
		Enemies: make(map[string]T),
	}
	for id, item := range items {
		server := serverOf(item)
		switch {
		case allySet[server]:
			out.Allies[id] = item
		case mode == PartitionElseEnemy || enemySet[server]:
			out.Enemies[id] = item
		}
	}
	return out
}

// DiffTwoSnapshots computes deltas and splits them into allies and enemies
func DiffTwoSnapshots(start, end Snapshot, allies, enemies []int, mode PartitionMode) Allegiance[MetricDelta] {
	return Partition(Diff(start, end), MetricDelta.Server, allies, enemies, mode)
}

// PartitionSnapshot splits raw player documents for single-date views
func PartitionSnapshot(snap Snapshot, allies, enemies []int, mode PartitionMode) Allegiance[Document] {
	return Partition(map[string]Document(snap), Document.Server, allies, enemies, mode)
}

func toSet(servers []int) map[int]bool {
	set := make(map[int]bool, len(servers))
	for _, s := range servers {
		set[s] = true
	}
	return set
}
