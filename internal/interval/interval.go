// Package interval implements the half-open interval algebra used by every
// scheduling component. All overlap decisions in the system go through
// Overlaps; nothing else compares interval endpoints directly.
package interval

import "time"

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. Touching intervals (e1 == s2) do not overlap, and a zero-length
// interval never overlaps anything.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// OverlapsMinutes is Overlaps over minute-of-day offsets, used to validate
// weekly availability windows against each other at write time.
func OverlapsMinutes(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// Contains reports whether [s,e) lies entirely within [ws,we).
func Contains(ws, we, s, e time.Time) bool {
	return !s.Before(ws) && !e.After(we)
}
