package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDuration is returned for duration strings outside the accepted
// grammar: bare seconds ("90") or a count with an m, h or d suffix ("45m").
var ErrInvalidDuration = errors.New("invalid duration")

var durationRe = regexp.MustCompile(`^(\d+)([mhd]?)$`)

// maxDuration caps every accepted value at a century, well inside
// time.Duration's range.
const maxDuration = 100 * 365 * 24 * time.Hour

// ParseDuration parses the operator-facing duration grammar.
//
//	"10"  -> 10s
//	"45m" -> 45m
//	"2h"  -> 2h
//	"7d"  -> 168h
func ParseDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	unit := time.Second
	switch m[2] {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	if n > int64(maxDuration/unit) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidDuration, s)
	}
	return time.Duration(n) * unit, nil
}

// FormatDuration renders d in the largest unit that divides it exactly.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0"
	case d%(24*time.Hour) == 0:
		return strconv.FormatInt(int64(d/(24*time.Hour)), 10) + "d"
	case d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	}
	return strconv.FormatInt(int64(d/time.Second), 10)
}
