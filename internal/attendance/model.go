package attendance

import (
	"context"
	"time"
)

// Action is the role a punch plays in a session.
type Action string

const (
	ActionIn  Action = "in"
	ActionOut Action = "out"
)

// Source records which flow produced a punch.
type Source string

const (
	SourceRFID  Source = "rfid"
	SourceFace  Source = "face"
	SourceSelf  Source = "self"
	SourceAdmin Source = "admin"
)

// Geo is an optional device location attached to a punch.
type Geo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Punch is one stored scan.
//
// Missed marks a check-in-role correction written when a new scan supersedes a
// dangling check-in from an earlier day; it is stored on the new day's record and
// ClosesDay names the day it closes. Late marks a check-out written by an explicit
// close of such a check-in; it is stored on the dangling check-in's own record.
type Punch struct {
	ID        string
	Seq       int64
	RecordID  string
	FighterID string
	Day       time.Time
	Action    Action
	At        time.Time
	Location  *Geo
	Missed    bool
	Late      bool
	ClosesDay time.Time
	Source    Source
}

// Open reports whether p leaves a session open.
func (p *Punch) Open() bool {
	return p != nil && p.Action == ActionIn && !p.Missed
}

// Record is the stored (fighter, day) aggregate with punches in logical order.
type Record struct {
	ID        string
	FighterID string
	Day       time.Time
	Punches   []Punch
	// MissedCheckOut is derived: a later record holds a missed marker closing this day.
	MissedCheckOut bool
}

// Query filters records. Zero From/To leave that side of the range open; both are inclusive.
type Query struct {
	FighterID string
	From      time.Time
	To        time.Time
}

// Store persists punches grouped into day records.
type Store interface {
	// LatestPunch returns the fighter's most recent state-bearing punch (missed
	// markers excluded) ordered by time then sequence, or nil when none exist.
	LatestPunch(ctx context.Context, fighterID string) (*Punch, error)
	// LatestPunchFrom is LatestPunch restricted to one source.
	LatestPunchFrom(ctx context.Context, fighterID string, src Source) (*Punch, error)
	// Append writes punches atomically, creating day records as needed. It fails with
	// ErrStale when the fighter's latest punch sequence is no longer expectSeq (0 = none).
	Append(ctx context.Context, fighterID string, expectSeq int64, punches []Punch) ([]Punch, error)
	// Records returns matching records newest day first, then by fighter id.
	Records(ctx context.Context, q Query) ([]Record, error)
}

// PunchView is the wire shape of a punch inside a day record.
type PunchView struct {
	Time       time.Time `json:"time"`
	Missed     bool      `json:"missed,omitempty"`
	Late       bool      `json:"late,omitempty"`
	ClosesDate string    `json:"closesDate,omitempty"`
	Location   *Geo      `json:"location,omitempty"`
}

// DayRecord is the wire shape of a record.
type DayRecord struct {
	ID             string      `json:"id"`
	FighterID      string      `json:"fighterId"`
	FighterName    string      `json:"fighterName,omitempty"`
	RFID           string      `json:"rfid,omitempty"`
	Date           string      `json:"date"`
	CheckIns       []PunchView `json:"checkIns"`
	CheckOuts      []PunchView `json:"checkOuts"`
	Duration       string      `json:"duration"`
	MissedCheckOut bool        `json:"missedCheckOut"`
}

func viewOf(p Punch) PunchView {
	return PunchView{
		Time:       p.At,
		Missed:     p.Missed,
		Late:       p.Late,
		ClosesDate: FormatDate(p.ClosesDay),
		Location:   p.Location,
	}
}

// View renders the record with its derived duration.
func (r Record) View() DayRecord {
	out := DayRecord{
		ID:             r.ID,
		FighterID:      r.FighterID,
		Date:           FormatDate(r.Day),
		CheckIns:       []PunchView{},
		CheckOuts:      []PunchView{},
		Duration:       FormatDuration(Worked(r.Punches)),
		MissedCheckOut: r.MissedCheckOut,
	}
	for _, p := range r.Punches {
		if p.Action == ActionIn {
			out.CheckIns = append(out.CheckIns, viewOf(p))
		} else {
			out.CheckOuts = append(out.CheckOuts, viewOf(p))
		}
	}
	return out
}
