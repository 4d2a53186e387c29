package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseHHMM parses a "HH:MM" time-of-day into minutes since midnight.
func parseHHMM(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("time %q: want HH:MM", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("time %q: bad hour", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("time %q: bad minute", s)
	}
	return hh*60 + mm, nil
}

// dueNow reports whether now falls within the symmetric window around the
// hhmm time of day. The distance is taken around the clock, so a window
// spanning midnight (e.g. 00:05 vs a 23:55 target) still matches.
func dueNow(now time.Time, hhmm string, window time.Duration) (bool, error) {
	target, err := parseHHMM(hhmm)
	if err != nil {
		return false, err
	}
	cur := now.Hour()*60 + now.Minute()
	d := cur - target
	if d < 0 {
		d = -d
	}
	if wrapped := 24*60 - d; wrapped < d {
		d = wrapped
	}
	return time.Duration(d)*time.Minute <= window, nil
}
