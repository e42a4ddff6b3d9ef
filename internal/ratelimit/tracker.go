package ratelimit

import "time"

// window is a sliding log of admission timestamps.
type window struct {
	stamps []time.Time
}

// prune drops timestamps at or before now-span and returns what is left.
func (w *window) prune(now time.Time, span time.Duration) int {
	cutoff := now.Add(-span)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
	return len(w.stamps)
}

func (w *window) record(now time.Time) {
	w.stamps = append(w.stamps, now)
}

// oldest returns the earliest timestamp still in the window.
func (w *window) oldest() (time.Time, bool) {
	if len(w.stamps) == 0 {
		return time.Time{}, false
	}
	return w.stamps[0], true
}
