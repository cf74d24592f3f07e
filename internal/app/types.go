package app

import (
	"regexp"
	"time"
)

// Upload titles with special meaning within a season
const (
	TitleStart     = "start"
	TitleFinal     = "final"
	TitlePreseason = "preseason"
)

// TotalDocID is the document id holding per-server totals inside a date collection
const TotalDocID = "total"

// PowerThreshold is the highest-power floor for contributing to server totals
// and for recording players from foreign servers.
const PowerThreshold = 50_000_000

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsValidTitle reports whether title names a known upload role or an ISO calendar date
func IsValidTitle(title string) bool {
	switch title {
	case TitleStart, TitleFinal, TitlePreseason:
		return true
	}
	if !isoDatePattern.MatchString(title) {
		return false
	}
	_, err := time.Parse("2006-01-02", title)
	return err == nil
}

// PlayerSnapshot is one player's statistics as of one upload date/title
type PlayerSnapshot struct {
	LordID       string  `json:"lordId" firestore:"lordId"`
	Name         string  `json:"name" firestore:"name"`
	HomeServer   int     `json:"homeServer" firestore:"homeServer"`
	CurrentPower float64 `json:"currentPower" firestore:"currentPower"`
	HighestPower float64 `json:"highestPower" firestore:"highestPower"`
	Merits       float64 `json:"merits" firestore:"merits"`
	UnitsKilled  float64 `json:"unitsKilled" firestore:"unitsKilled"`
	UnitsDead    float64 `json:"unitsDead" firestore:"unitsDead"`
	UnitsHealed  float64 `json:"unitsHealed" firestore:"unitsHealed"`
	T5KillCount  float64 `json:"t5KillCount" firestore:"t5KillCount"`
	ManaSpent    float64 `json:"manaSpent" firestore:"manaSpent"`
	GemsSpent    float64 `json:"gemsSpent" firestore:"gemsSpent"`
}

// Document converts the snapshot to its stored document form
func (p PlayerSnapshot) Document() map[string]interface{} {
	return map[string]interface{}{
		"lordId":       p.LordID,
		"name":         p.Name,
		"homeServer":   p.HomeServer,
		"currentPower": p.CurrentPower,
		"highestPower": p.HighestPower,
		"merits":       p.Merits,
		"unitsKilled":  p.UnitsKilled,
		"unitsDead":    p.UnitsDead,
		"unitsHealed":  p.UnitsHealed,
		"t5KillCount":  p.T5KillCount,
		"manaSpent":    p.ManaSpent,
		"gemsSpent":    p.GemsSpent,
	}
}

// ServerTotals holds the sums of qualifying players for one server and date
type ServerTotals struct {
	Merits    float64 `json:"merits" firestore:"merits"`
	ManaSpent float64 `json:"manaSpent" firestore:"manaSpent"`
	UnitsDead float64 `json:"unitsDead" firestore:"unitsDead"`
}

// Add accumulates a player's contribution
func (t ServerTotals) Add(p PlayerSnapshot) ServerTotals {
	t.Merits += p.Merits
	t.ManaSpent += p.ManaSpent
	t.UnitsDead += p.UnitsDead
	return t
}

// RosterUser is a known player from the users collection.
// Stat fields are kept raw since older documents store them as formatted strings.
type RosterUser struct {
	LordID       string
	UID          string
	Nickname     string
	HighestPower interface{}
	UnitsKilled  interface{}
	UnitsDead    interface{}
	ManaSpent    interface{}
}

// Roster fields maintained by ingestion
const (
	RosterNickname     = "nickname"
	RosterHighestPower = "highestPower"
	RosterUnitsKilled  = "unitsKilled"
	RosterUnitsDead    = "unitsDead"
	RosterManaSpent    = "manaSpent"
)

// RosterUserFromDocument builds a RosterUser from a stored users document
func RosterUserFromDocument(id string, doc map[string]interface{}) RosterUser {
	u := RosterUser{
		LordID:       id,
		HighestPower: doc[RosterHighestPower],
		UnitsKilled:  doc[RosterUnitsKilled],
		UnitsDead:    doc[RosterUnitsDead],
		ManaSpent:    doc[RosterManaSpent],
	}
	if s, ok := doc[RosterNickname].(string); ok {
		u.Nickname = s
	}
	if s, ok := doc["uid"].(string); ok {
		u.UID = s
	}
	return u
}

// RosterUpdate is a staged partial write to a users document
type RosterUpdate struct {
	LordID string
	Fields map[string]interface{}
}

// UploadFile is one uploaded workbook
type UploadFile struct {
	Name string
	Data []byte
}

// Caller is the already-authenticated identity attached to a request
type Caller struct {
	UID   string
	Email string
	Role  string
}

// IsAdmin reports whether the caller may perform mutating operations
func (c Caller) IsAdmin() bool {
	return c.Role == "admin"
}
