package decision

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-scheduler-backend/internal/scheduler"
)

func testCatalog(t *testing.T) *scheduler.Catalog {
	t.Helper()
	c, err := scheduler.NewCatalog(
		[]scheduler.TierRule{
			{Tier: scheduler.Tier0, Name: "ground", MaxDuration: 30 * time.Minute},
			{Tier: scheduler.Tier1, Name: "first"},
		},
		[]scheduler.Slot{{ID: "001", Tier: scheduler.Tier0}, {ID: "101", Tier: scheduler.Tier1}},
	)
	require.NoError(t, err)
	return c
}

func TestPolicy(t *testing.T) {
	p := NewPolicy(testCatalog(t), map[scheduler.Tier]time.Duration{scheduler.Tier1: 10 * time.Minute}, 2)
	ctx := context.Background()

	d, err := p.AskExtendOrRelease(ctx, "robot-1", "001")
	require.NoError(t, err)
	assert.Equal(t, scheduler.Release(), d, "tier without an extension leaves")

	for i := 0; i < 2; i++ {
		d, err = p.AskExtendOrRelease(ctx, "robot-2", "101")
		require.NoError(t, err)
		assert.Equal(t, scheduler.Extend(10*time.Minute), d)
	}
	d, err = p.AskExtendOrRelease(ctx, "robot-2", "101")
	require.NoError(t, err)
	assert.Equal(t, scheduler.Release(), d, "extension budget spent")

	d, err = p.AskExtendOrRelease(ctx, "robot-3", "999")
	require.NoError(t, err)
	assert.Equal(t, scheduler.Release(), d)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.AskExtendOrRelease(cancelled, "robot-4", "101")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsole(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  scheduler.Decision
		expectErr bool
		output    string
	}{
		{name: "release", input: "no\n", expected: scheduler.Release(), output: "leaving slot 201"},
		{name: "extend", input: "yes\n15\n", expected: scheduler.Extend(15 * time.Second), output: "staying for 15 more minutes"},
		{name: "re-prompt on bad answer", input: "maybe\nY\nsoon\n-2\n2.5\n", expected: scheduler.Extend(2500 * time.Millisecond), output: "Please answer yes or no."},
		{name: "extension beyond the duration range", input: "yes\n1e300\n5\n", expected: scheduler.Extend(5 * time.Second), output: "is too long"},
		{name: "last line without newline", input: "n", expected: scheduler.Release()},
		{name: "input closed", input: "", expectErr: true},
		{name: "input closed while asking minutes", input: "yes\n", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConsole(strings.NewReader(tc.input), &out, time.Second)

			d, err := c.AskExtendOrRelease(context.Background(), "robot-7", "201")
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, d)
			assert.Contains(t, out.String(), "robot-7 in slot 201 has reached its time")
			assert.Contains(t, out.String(), tc.output)
		})
	}
}

func TestRemote_Answer(t *testing.T) {
	r := NewRemote(time.Minute, zerolog.Nop())

	result := make(chan scheduler.Decision, 1)
	go func() {
		d, err := r.AskExtendOrRelease(context.Background(), "robot-5", "102")
		assert.NoError(t, err)
		result <- d
	}()

	require.Eventually(t, func() bool { return len(r.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	q := r.Pending()[0]
	assert.Equal(t, "robot-5", q.OccupantID)
	assert.Equal(t, "102", q.SlotID)
	assert.Equal(t, time.Minute, q.Deadline.Sub(q.AskedAt))

	require.NoError(t, r.Answer("robot-5", scheduler.Extend(20*time.Minute)))
	assert.Equal(t, scheduler.Extend(20*time.Minute), <-result)
	assert.Empty(t, r.Pending())

	assert.ErrorIs(t, r.Answer("robot-5", scheduler.Release()), ErrNoQuestion)
}

func TestRemote_TimeoutReleases(t *testing.T) {
	r := NewRemote(20*time.Millisecond, zerolog.Nop())

	d, err := r.AskExtendOrRelease(context.Background(), "robot-6", "203")
	require.NoError(t, err)
	assert.Equal(t, scheduler.Release(), d)
	assert.Empty(t, r.Pending())
}

func TestRemote_Cancelled(t *testing.T) {
	r := NewRemote(time.Minute, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.AskExtendOrRelease(ctx, "robot-8", "203")
	assert.ErrorIs(t, err, context.Canceled)
}
