package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var durationUnits = map[byte]time.Duration{
	'd': 24 * time.Hour,
	'h': time.Hour,
	'm': time.Minute,
}

// ParseDuration accepts admin-friendly durations such as "2d", "1h30m" or
// "2d4h". Units are d, h and m; each may appear once, in any order.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var (
		total time.Duration
		num   strings.Builder
		seen  = map[byte]bool{}
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			num.WriteByte(c)
		case c == ' ':
			continue
		default:
			unit, ok := durationUnits[c]
			if !ok {
				return 0, fmt.Errorf("unknown unit %q in %q", c, s)
			}
			if num.Len() == 0 {
				return 0, fmt.Errorf("missing number before %q in %q", c, s)
			}
			if seen[c] {
				return 0, fmt.Errorf("unit %q repeated in %q", c, s)
			}
			seen[c] = true
			n, err := strconv.ParseInt(num.String(), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number in %q: %w", s, err)
			}
			if n > math.MaxInt64/int64(unit) {
				return 0, fmt.Errorf("duration %q is too long", s)
			}
			part := time.Duration(n) * unit
			if total > math.MaxInt64-part {
				return 0, fmt.Errorf("duration %q is too long", s)
			}
			total += part
			num.Reset()
		}
	}
	if num.Len() > 0 {
		return 0, fmt.Errorf("number without unit in %q", s)
	}
	if total <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return total, nil
}
