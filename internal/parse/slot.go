package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	slotRe = regexp.MustCompile(`^(?i)(?:slot|bay|p|#)?\s*(\d+)(\d{2})$`)
	tierRe = regexp.MustCompile(`^(?i)(?:tier|floor|f)?\s*(\d+)\s*(?:f)?$`)
)

// SlotNumber is the structured form of a three-digit bay number such as "201".
type SlotNumber struct {
	Floor int
	Seq   int
}

func (n SlotNumber) String() string {
	return FormatSlotNumber(n.Floor, n.Seq)
}

// FormatSlotNumber renders floor and sequence as <floor><seq:02>: floor 0 bay 1 is "001".
func FormatSlotNumber(floor, seq int) string {
	return fmt.Sprintf("%d%02d", floor, seq)
}

// ParseSlotNumber extracts floor and sequence from a bay label. The last two
// digits are the sequence, everything before them is the floor.
func ParseSlotNumber(raw string) (SlotNumber, error) {
	s := strings.TrimSpace(raw)
	m := slotRe.FindStringSubmatch(s)
	if m == nil {
		return SlotNumber{}, fmt.Errorf("unable to parse slot number: %q", raw)
	}
	floor, err := strconv.Atoi(m[1])
	if err != nil {
		return SlotNumber{}, fmt.Errorf("unable to parse floor from slot %q: %w", raw, err)
	}
	seq, _ := strconv.Atoi(m[2])
	if seq == 0 {
		return SlotNumber{}, fmt.Errorf("slot %q has sequence 00", raw)
	}
	return SlotNumber{Floor: floor, Seq: seq}, nil
}

// NormalizeSlot turns user input like "P201" or " 201 " into the catalog form "201".
func NormalizeSlot(raw string) (string, error) {
	n, err := ParseSlotNumber(raw)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// ParseTier accepts "2", "tier2", "floor 2" or "2F".
func ParseTier(raw string) (int, error) {
	m := tierRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, fmt.Errorf("unable to parse tier: %q", raw)
	}
	return strconv.Atoi(m[1])
}

// ParseMinutes reads a stay length. A bare number is minutes; anything else
// must be a Go duration ("90s", "1h30m"). The result is in minutes.
func ParseMinutes(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	m, err := strconv.ParseFloat(s, 64)
	if err != nil {
		d, derr := time.ParseDuration(s)
		if derr != nil {
			return 0, fmt.Errorf("unable to parse minutes from %q", raw)
		}
		m = d.Minutes()
	}
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return 0, fmt.Errorf("duration must be a positive number of minutes, got %q", raw)
	}
	return m, nil
}

// StayDuration converts minutes into a duration where one minute lasts unit.
// Values that do not fit in a time.Duration are rejected instead of wrapping.
func StayDuration(minutes float64, unit time.Duration) (time.Duration, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0, fmt.Errorf("duration must be a finite number of minutes, got %g", minutes)
	}
	d := minutes * float64(unit)
	if d >= math.MaxInt64 || d <= math.MinInt64 {
		return 0, fmt.Errorf("stay of %g minutes is too long", minutes)
	}
	return time.Duration(d), nil
}
