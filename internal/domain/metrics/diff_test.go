package metrics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDiffFormattedValues(t *testing.T) {
	start := Snapshot{"p1": {"merits": "1,000", "homeServer": 101}}
	end := Snapshot{"p1": {"merits": "2,500", "homeServer": 101, "name": "Aria"}}

	deltas := Diff(start, end)

	d, ok := deltas["p1"]
	if !ok {
		t.Fatal("Expected p1 in diff output")
	}
	if d.Merits != 1500 {
		t.Errorf("Expected merits delta 1500, got %v", d.Merits)
	}
	if d.Name != "Aria" {
		t.Errorf("Expected name copied from end snapshot, got %v", d.Name)
	}
}

func TestDiffExcludesPlayersWithoutBaseline(t *testing.T) {
	start := Snapshot{"p1": {"merits": 10}}
	end := Snapshot{
		"p1": {"merits": 20},
		"p2": {"merits": 99},
	}

	deltas := Diff(start, end)

	if _, ok := deltas["p2"]; ok {
		t.Error("Expected newly joined player to be excluded from the diff")
	}
	if len(deltas) != 1 {
		t.Errorf("Expected 1 delta, got %d", len(deltas))
	}
}

func TestDiffUnparsableValueIsNull(t *testing.T) {
	deltas := Diff(
		Snapshot{"p1": {"unitsDead": "n/a", "merits": 1}},
		Snapshot{"p1": {"unitsDead": 5, "merits": 3}},
	)

	if !math.IsNaN(float64(deltas["p1"].UnitsDead)) {
		t.Fatalf("Expected NaN delta, got %v", deltas["p1"].UnitsDead)
	}

	data, err := json.Marshal(deltas["p1"])
	if err != nil {
		t.Fatalf("Expected NaN delta to encode, got %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded["unitsDead"] != nil {
		t.Errorf("Expected unitsDead to encode as null, got %v", decoded["unitsDead"])
	}
	if decoded["merits"] != 2.0 {
		t.Errorf("Expected merits 2, got %v", decoded["merits"])
	}

	var back MetricDelta
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Expected no error decoding delta, got %v", err)
	}
	if !math.IsNaN(float64(back.UnitsDead)) {
		t.Errorf("Expected null to decode as NaN, got %v", back.UnitsDead)
	}
	if back.Merits != 2 {
		t.Errorf("Expected merits 2 after decode, got %v", back.Merits)
	}
}

func TestPartitionModes(t *testing.T) {
	start := Snapshot{
		"a": {"homeServer": 101, "merits": 0},
		"e": {"homeServer": 201, "merits": 0},
		"x": {"homeServer": 999, "merits": 0},
	}
	end := Snapshot{
		"a": {"homeServer": 101, "merits": 5},
		"e": {"homeServer": "201", "merits": 5},
		"x": {"homeServer": 999, "merits": 5},
	}

	elseEnemy := DiffTwoSnapshots(start, end, []int{101}, []int{201}, PartitionElseEnemy)
	if len(elseEnemy.Allies) != 1 || len(elseEnemy.Enemies) != 2 {
		t.Errorf("Else-enemy: expected 1 ally / 2 enemies, got %d / %d", len(elseEnemy.Allies), len(elseEnemy.Enemies))
	}

	explicit := DiffTwoSnapshots(start, end, []int{101}, []int{201}, PartitionExplicit)
	if len(explicit.Allies) != 1 || len(explicit.Enemies) != 1 {
		t.Errorf("Explicit: expected 1 ally / 1 enemy, got %d / %d", len(explicit.Allies), len(explicit.Enemies))
	}
	if _, ok := explicit.Enemies["x"]; ok {
		t.Error("Explicit: unlisted server should be dropped")
	}
}

func TestPartitionSnapshot(t *testing.T) {
	snap := Snapshot{
		"a": {"homeServer": 101},
		"b": {"homeServer": 102},
		"c": {"homeServer": 300},
	}

	split := PartitionSnapshot(snap, []int{101, 102}, []int{300}, PartitionExplicit)

	if len(split.Allies) != 2 || len(split.Enemies) != 1 {
		t.Errorf("Expected 2 allies / 1 enemy, got %d / %d", len(split.Allies), len(split.Enemies))
	}
}

// TestDiffProperties uses property-based testing to verify diff invariants
func TestDiffProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("diff keys are the intersection of both snapshots", prop.ForAll(
		func(startIDs, endIDs []string) bool {
			start := Snapshot{}
			for _, id := range startIDs {
				start[id] = Document{"merits": 1}
			}
			end := Snapshot{}
			for _, id := range endIDs {
				end[id] = Document{"merits": 2}
			}

			deltas := Diff(start, end)
			for id := range deltas {
				if _, ok := start[id]; !ok {
					return false
				}
				if _, ok := end[id]; !ok {
					return false
				}
			}
			for id := range end {
				if _, inStart := start[id]; inStart {
					if _, ok := deltas[id]; !ok {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("delta equals end minus start", prop.ForAll(
		func(a, b int64) bool {
			deltas := Diff(
				Snapshot{"p": {"manaSpent": a}},
				Snapshot{"p": {"manaSpent": b}},
			)
			return float64(deltas["p"].ManaSpent) == float64(b)-float64(a)
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}
