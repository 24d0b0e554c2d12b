// Package overlap detects time collisions between a volunteer's shifts.
// Overlapping commitments are allowed; organizers surface them as warnings.
package overlap

import "time"

// Window is a time span identified by the assignment that occupies it.
type Window struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Overlap names two windows that collide. FirstID always sorts before
// SecondID by start time so output is stable.
type Overlap struct {
	FirstID  string
	SecondID string
}

// Detect returns every pairwise collision among the windows. Two windows
// collide when one starts strictly before the other ends and vice versa;
// touching boundaries do not collide.
func Detect(windows []Window) []Overlap {
	if len(windows) < 2 {
		return nil
	}

	overlaps := make([]Overlap, 0)
	for i := 0; i < len(windows); i++ {
		for j := i + 1; j < len(windows); j++ {
			a, b := windows[i], windows[j]
			if !a.Start.Before(b.End) || !b.Start.Before(a.End) {
				continue
			}
			first, second := a, b
			if b.Start.Before(a.Start) {
				first, second = b, a
			}
			overlaps = append(overlaps, Overlap{FirstID: first.ID, SecondID: second.ID})
		}
	}
	if len(overlaps) == 0 {
		return nil
	}
	return overlaps
}
