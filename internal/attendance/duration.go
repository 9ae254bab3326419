package attendance

import (
	"fmt"
	"sort"
	"time"
)

// Worked sums the spans between each non-missed check-in and the next check-out.
// A trailing check-in without a check-out contributes nothing.
func Worked(punches []Punch) time.Duration {
	ordered := make([]Punch, len(punches))
	copy(ordered, punches)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].At.Equal(ordered[j].At) {
			return ordered[i].Seq < ordered[j].Seq
		}
		return ordered[i].At.Before(ordered[j].At)
	})

	var (
		total  time.Duration
		openAt *time.Time
	)
	for i := range ordered {
		p := ordered[i]
		switch {
		case p.Action == ActionIn && !p.Missed:
			if openAt == nil {
				openAt = &ordered[i].At
			}
		case p.Action == ActionOut:
			if openAt != nil {
				if span := p.At.Sub(*openAt); span > 0 {
					total += span
				}
				openAt = nil
			}
		}
	}
	return total
}

// FormatDuration renders d as HH:MM:SS, zero padded. Hours are not wrapped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
