package parse

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlotNumber(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  SlotNumber
		expectErr bool
	}{
		{name: "ground floor", raw: "001", expected: SlotNumber{Floor: 0, Seq: 1}},
		{name: "first floor far side", raw: "110", expected: SlotNumber{Floor: 1, Seq: 10}},
		{name: "top floor", raw: "203", expected: SlotNumber{Floor: 2, Seq: 3}},
		{name: "prefixed", raw: "P201", expected: SlotNumber{Floor: 2, Seq: 1}},
		{name: "hash and spaces", raw: " # 105 ", expected: SlotNumber{Floor: 1, Seq: 5}},
		{name: "two digit floor", raw: "1204", expected: SlotNumber{Floor: 12, Seq: 4}},
		{name: "too short", raw: "12", expectErr: true},
		{name: "sequence zero", raw: "200", expectErr: true},
		{name: "letters", raw: "abc", expectErr: true},
		{name: "empty", raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSlotNumber(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFormatSlotNumber(t *testing.T) {
	assert.Equal(t, "001", FormatSlotNumber(0, 1))
	assert.Equal(t, "110", FormatSlotNumber(1, 10))
	assert.Equal(t, "203", SlotNumber{Floor: 2, Seq: 3}.String())

	id, err := NormalizeSlot("bay 102")
	assert.NoError(t, err)
	assert.Equal(t, "102", id)
}

func TestParseTier(t *testing.T) {
	for raw, want := range map[string]int{"0": 0, "tier1": 1, "Floor 2": 2, "2F": 2} {
		got, err := ParseTier(raw)
		assert.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseTier("roof")
	assert.Error(t, err)
}

func TestParseMinutes(t *testing.T) {
	testCases := []struct {
		raw       string
		expected  float64
		expectErr bool
	}{
		{raw: "15", expected: 15},
		{raw: " 2.5 ", expected: 2.5},
		{raw: "90s", expected: 1.5},
		{raw: "1h", expected: 60},
		{raw: "0", expectErr: true},
		{raw: "-3", expectErr: true},
		{raw: "NaN", expectErr: true},
		{raw: "soon", expectErr: true},
		{raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseMinutes(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tc.expected, got, 1e-9)
		})
	}
}

func TestStayDuration(t *testing.T) {
	d, err := StayDuration(1.5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = StayDuration(-2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, -2*time.Second, d)

	limit := float64(math.MaxInt64) / float64(time.Minute)
	for _, m := range []float64{limit * 2, 1e300, -1e300, math.Inf(1), math.NaN()} {
		_, err := StayDuration(m, time.Minute)
		assert.Error(t, err, "%g", m)
	}
}
