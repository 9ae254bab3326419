package attendance

import "time"

// Mode selects how a dangling check-in from an earlier day is treated.
type Mode int

const (
	// ModeScan is a regular scan: a dangling check-in is superseded by a fresh one.
	ModeScan Mode = iota
	// ModeClose is an explicit correction: a dangling check-in is closed late.
	ModeClose
)

// Decision is the outcome of resolving one punch against the fighter's latest state.
type Decision struct {
	Action Action
	// Day is the record the primary punch is stored on.
	Day  time.Time
	Late bool
	// Superseded is the dangling check-in a missed marker closes, if any.
	Superseded *Punch
}

// Resolve decides the role of a punch at now given the latest state-bearing punch.
// It is pure: callers persist the result.
func Resolve(last *Punch, now time.Time, cal Calendar, mode Mode) (Decision, error) {
	today := cal.Day(now)

	if !last.Open() {
		if mode == ModeClose {
			return Decision{}, ErrNoOpenCheckIn
		}
		return Decision{Action: ActionIn, Day: today}, nil
	}

	if !last.Day.Before(today) {
		return Decision{Action: ActionOut, Day: last.Day}, nil
	}

	if mode == ModeClose {
		return Decision{Action: ActionOut, Day: last.Day, Late: true}, nil
	}
	return Decision{Action: ActionIn, Day: today, Superseded: last}, nil
}

// Punches builds the rows to persist for the decision, in write order.
func (d Decision) Punches(fighterID string, at time.Time, loc *Geo, src Source) []Punch {
	primary := Punch{
		FighterID: fighterID,
		Day:       d.Day,
		Action:    d.Action,
		At:        at,
		Location:  loc,
		Late:      d.Late,
		Source:    src,
	}
	if d.Late {
		primary.ClosesDay = d.Day
	}
	if d.Superseded == nil {
		return []Punch{primary}
	}
	marker := Punch{
		FighterID: fighterID,
		Day:       d.Day,
		Action:    ActionIn,
		At:        at,
		Location:  loc,
		Missed:    true,
		ClosesDay: d.Superseded.Day,
		Source:    src,
	}
	return []Punch{marker, primary}
}
