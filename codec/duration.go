package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatDuration renders d as an ISO-8601 duration using hours, minutes and
// seconds, with up to nine fractional second digits: 3m28s is "PT3M28S".
// Negative durations carry a leading sign ("-PT1.5S"). ParseDuration is its
// exact inverse.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}

	var b strings.Builder
	u := uint64(d)
	if d < 0 {
		b.WriteByte('-')
		u = ^u + 1
	}
	b.WriteString("PT")

	hours := u / uint64(time.Hour)
	u -= hours * uint64(time.Hour)
	minutes := u / uint64(time.Minute)
	u -= minutes * uint64(time.Minute)
	seconds := u / uint64(time.Second)
	nanos := u - seconds*uint64(time.Second)

	if hours > 0 {
		b.WriteString(strconv.FormatUint(hours, 10))
		b.WriteByte('H')
	}
	if minutes > 0 {
		b.WriteString(strconv.FormatUint(minutes, 10))
		b.WriteByte('M')
	}
	if seconds > 0 || nanos > 0 {
		b.WriteString(strconv.FormatUint(seconds, 10))
		if nanos > 0 {
			frac := fmt.Sprintf("%09d", nanos)
			b.WriteByte('.')
			b.WriteString(strings.TrimRight(frac, "0"))
		}
		b.WriteByte('S')
	}
	return b.String()
}

// ParseDuration parses an ISO-8601 duration limited to days, hours, minutes
// and seconds (a day counts as 24 hours). Fractions are only accepted on
// seconds, with at most nine digits.
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	invalid := func(reason string) error {
		return fmt.Errorf("invalid ISO-8601 duration %q: %s", orig, reason)
	}

	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, invalid("missing P designator")
	}
	s = s[1:]

	var total uint64
	inTime := false
	seen := false
	last := -1

	for s != "" {
		if s[0] == 'T' {
			if inTime {
				return 0, invalid("repeated T designator")
			}
			inTime = true
			s = s[1:]
			if s == "" {
				return 0, invalid("empty time section")
			}
			continue
		}

		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, invalid("expected digits")
		}
		whole, err := strconv.ParseUint(s[:i], 10, 63)
		if err != nil {
			return 0, invalid("component out of range")
		}
		s = s[i:]

		var frac uint64
		hasFrac := false
		if s != "" && s[0] == '.' {
			j := 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			digits := s[1:j]
			if digits == "" || len(digits) > 9 {
				return 0, invalid("fraction must have one to nine digits")
			}
			frac, _ = strconv.ParseUint(digits+strings.Repeat("0", 9-len(digits)), 10, 64)
			hasFrac = true
			s = s[j:]
		}
		if s == "" {
			return 0, invalid("missing unit designator")
		}

		unit := s[0]
		s = s[1:]
		var scale uint64
		var rank int
		switch {
		case !inTime && unit == 'D':
			scale, rank = uint64(24*time.Hour), 0
		case inTime && unit == 'H':
			scale, rank = uint64(time.Hour), 1
		case inTime && unit == 'M':
			scale, rank = uint64(time.Minute), 2
		case inTime && unit == 'S':
			scale, rank = uint64(time.Second), 3
		default:
			return 0, invalid(fmt.Sprintf("unexpected designator %q", unit))
		}
		if rank <= last {
			return 0, invalid("designators out of order")
		}
		last = rank
		if hasFrac && unit != 'S' {
			return 0, invalid("fraction only allowed on seconds")
		}

		if whole > (math.MaxUint64-frac)/scale {
			return 0, invalid("overflow")
		}
		part := whole*scale + frac
		if total > math.MaxUint64-part {
			return 0, invalid("overflow")
		}
		total += part
		seen = true
	}
	if !seen {
		return 0, invalid("no components")
	}

	if neg {
		if total > 1<<63 {
			return 0, invalid("overflow")
		}
		return time.Duration(^total + 1), nil
	}
	if total > math.MaxInt64 {
		return 0, invalid("overflow")
	}
	return time.Duration(total), nil
}
