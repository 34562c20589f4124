package kg

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quarter identifies one calendar quarter, e.g. 2024Q1.
type Quarter struct {
	Year int `json:"year"`
	Q    int `json:"q"`
}

// ParseQuarter parses the "2024Q1" form.
func ParseQuarter(s string) (Quarter, error) {
	parts := strings.SplitN(strings.ToUpper(strings.TrimSpace(s)), "Q", 2)
	if len(parts) != 2 {
		return Quarter{}, fmt.Errorf("invalid quarter %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Quarter{}, fmt.Errorf("invalid quarter %q: %w", s, err)
	}
	q, err := strconv.Atoi(parts[1])
	if err != nil {
		return Quarter{}, fmt.Errorf("invalid quarter %q: %w", s, err)
	}
	if q < 1 || q > 4 {
		return Quarter{}, fmt.Errorf("invalid quarter %q: quarter must be 1-4", s)
	}
	return Quarter{Year: year, Q: q}, nil
}

// QuarterOf returns the calendar quarter containing t (in UTC).
func QuarterOf(t time.Time) Quarter {
	t = t.UTC()
	return Quarter{Year: t.Year(), Q: (int(t.Month())-1)/3 + 1}
}

func (q Quarter) String() string {
	return fmt.Sprintf("%04dQ%d", q.Year, q.Q)
}

// Start returns the first instant of the quarter in UTC.
func (q Quarter) Start() time.Time {
	return time.Date(q.Year, time.Month((q.Q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last instant of the quarter. A signal computed for the
// quarter may only use relationships with AssertedAt <= End().
func (q Quarter) End() time.Time {
	return q.Next().Start().Add(-time.Nanosecond)
}

// Next returns the following quarter.
func (q Quarter) Next() Quarter {
	if q.Q == 4 {
		return Quarter{Year: q.Year + 1, Q: 1}
	}
	return Quarter{Year: q.Year, Q: q.Q + 1}
}

// Prev returns the preceding quarter.
func (q Quarter) Prev() Quarter {
	if q.Q == 1 {
		return Quarter{Year: q.Year - 1, Q: 4}
	}
	return Quarter{Year: q.Year, Q: q.Q - 1}
}

// Sub returns the quarter n quarters before q.
func (q Quarter) Sub(n int) Quarter {
	idx := q.Year*4 + (q.Q - 1) - n
	return Quarter{Year: idx / 4, Q: idx%4 + 1}
}

// Compare returns -1, 0 or 1 ordering q against other chronologically.
func (q Quarter) Compare(other Quarter) int {
	a := q.Year*4 + q.Q
	b := other.Year*4 + other.Q
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether q is strictly earlier than other.
func (q Quarter) Before(other Quarter) bool {
	return q.Compare(other) < 0
}

// After reports whether q is strictly later than other.
func (q Quarter) After(other Quarter) bool {
	return q.Compare(other) > 0
}

// IsZero reports whether q is the zero value.
func (q Quarter) IsZero() bool {
	return q.Year == 0 && q.Q == 0
}

// QuartersBetween returns all quarters from a to b inclusive, in
// chronological order. Returns nil when a is after b.
func QuartersBetween(a, b Quarter) []Quarter {
	if a.After(b) {
		return nil
	}
	var out []Quarter
	for q := a; !q.After(b); q = q.Next() {
		out = append(out, q)
	}
	return out
}

// MarshalText encodes the quarter as "2024Q1", making Quarter usable as a
// JSON object key and keeping exports readable.
func (q Quarter) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText parses the "2024Q1" form.
func (q *Quarter) UnmarshalText(b []byte) error {
	parsed, err := ParseQuarter(string(b))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
