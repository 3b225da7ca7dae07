package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const timestampBase = "2006-01-02T15:04:05"

// ParseTimestamp parses an RFC 3339 style timestamp as printed by container
// runtimes. It accepts any number of fractional-second digits (anything past
// nanoseconds is dropped) and an optional zone designator: "Z", "+hh:mm",
// "+hhmm" or "+hh". A missing designator means UTC. The date and time may be
// separated by "T" or a single space.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(timestampBase) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}

	base := []byte(s[:len(timestampBase)])
	if base[10] == ' ' {
		base[10] = 'T'
	}
	t, err := time.ParseInLocation(timestampBase, string(base), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrBadTimestamp, s, err)
	}

	rest := s[len(timestampBase):]
	nanos := 0
	if rest != "" && (rest[0] == '.' || rest[0] == ',') {
		i := 1
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 1 {
			return time.Time{}, fmt.Errorf("%w: %q: empty fraction", ErrBadTimestamp, s)
		}
		frac := rest[1:i]
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		nanos, _ = strconv.Atoi(frac)
		rest = rest[i:]
	}

	offset, err := parseZone(strings.TrimSpace(rest))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrBadTimestamp, s, err)
	}

	return t.Add(time.Duration(nanos) - time.Duration(offset)*time.Second), nil
}

// parseZone returns the zone offset east of UTC in seconds. A numeric
// offset may be followed by a zone abbreviation, which is ignored.
func parseZone(z string) (int, error) {
	fields := strings.Fields(z)
	if n := len(fields); n > 0 && strings.HasPrefix(fields[n-1], "m=") {
		// Monotonic clock reading from time.Time.String.
		fields = fields[:n-1]
	}
	switch len(fields) {
	case 0:
		return 0, nil
	case 1:
	case 2:
		if !isZoneAbbrev(fields[1]) {
			return 0, fmt.Errorf("zone designator %q", z)
		}
	default:
		return 0, fmt.Errorf("zone designator %q", z)
	}
	switch fields[0] {
	case "Z", "z", "UTC":
		if len(fields) > 1 {
			return 0, fmt.Errorf("zone designator %q", z)
		}
		return 0, nil
	}
	z = fields[0]

	sign := 1
	switch z[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("zone designator %q", z)
	}

	digits := strings.ReplaceAll(z[1:], ":", "")
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("zone designator %q", z)
		}
	}
	var hh, mm int
	var err error
	switch len(digits) {
	case 2:
		hh, err = strconv.Atoi(digits)
	case 4:
		hh, err = strconv.Atoi(digits[:2])
		if err == nil {
			mm, err = strconv.Atoi(digits[2:])
		}
	default:
		return 0, fmt.Errorf("zone designator %q", z)
	}
	if err != nil || hh > 23 || mm > 59 {
		return 0, fmt.Errorf("zone designator %q", z)
	}
	return sign * (hh*3600 + mm*60), nil
}

func isZoneAbbrev(s string) bool {
	if len(s) < 3 || len(s) > 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
