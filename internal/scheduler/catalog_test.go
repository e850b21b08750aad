package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog(t *testing.T) {
	rules := []TierRule{{Tier: Tier0}, {Tier: Tier2, Queueing: true}}

	testCases := []struct {
		name      string
		rules     []TierRule
		slots     []Slot
		expectErr string
	}{
		{
			name:  "valid layout",
			rules: rules,
			slots: []Slot{{ID: "001", Tier: Tier0}, {ID: "201", Tier: Tier2}},
		},
		{
			name:      "no tiers",
			slots:     []Slot{{ID: "001", Tier: Tier0}},
			expectErr: "at least one tier",
		},
		{
			name:      "duplicate slot",
			rules:     rules,
			slots:     []Slot{{ID: "001", Tier: Tier0}, {ID: "001", Tier: Tier2}},
			expectErr: `duplicate slot identifier "001"`,
		},
		{
			name:      "unknown tier",
			rules:     rules,
			slots:     []Slot{{ID: "101", Tier: Tier1}},
			expectErr: "unknown tier1",
		},
		{
			name:      "duplicate rule",
			rules:     []TierRule{{Tier: Tier0}, {Tier: Tier0}},
			expectErr: "duplicate rule",
		},
		{
			name:      "empty identifier",
			rules:     rules,
			slots:     []Slot{{ID: "", Tier: Tier0}},
			expectErr: "must not be empty",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCatalog(tc.rules, tc.slots)
			if tc.expectErr != "" {
				assert.ErrorContains(t, err, tc.expectErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tc.slots), c.Len())
		})
	}
}

func TestCatalog_Queries(t *testing.T) {
	c := referenceCatalog(t)

	ids := func(slots []Slot) []string {
		var out []string
		for _, s := range slots {
			out = append(out, s.ID)
		}
		return out
	}
	assert.Equal(t, []string{"201", "202", "203"}, ids(c.SlotsInTier(Tier2)))
	assert.Empty(t, c.SlotsInTier(Tier(7)))

	assert.True(t, c.IsValidSlotForTier("102", Tier1))
	assert.False(t, c.IsValidSlotForTier("102", Tier2))
	assert.False(t, c.IsValidSlotForTier("999", Tier1))

	assert.Equal(t, []Tier{Tier0, Tier1, Tier2}, c.Tiers())

	rule, ok := c.Rule(Tier0)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, rule.MaxDuration)

	// Returned slices are copies.
	slots := c.SlotsInTier(Tier0)
	slots[0].ID = "mutated"
	assert.Equal(t, "001", c.SlotsInTier(Tier0)[0].ID)
}

func TestTable_OccupyRelease(t *testing.T) {
	c := referenceCatalog(t)
	table := NewTable(c)

	occ := &Occupancy{ID: "o1", Request: Request{OccupantID: "robot-1", Tier: Tier1}}
	require.NoError(t, table.Occupy("101", occ))
	assert.False(t, table.IsFree("101"))
	assert.Equal(t, "101", occ.SlotID)
	assert.Equal(t, 1, table.CountOccupied(Tier1))
	assert.Equal(t, 2, table.CountFree(Tier1))

	t.Run("slot already bound", func(t *testing.T) {
		other := &Occupancy{ID: "o2", Request: Request{OccupantID: "robot-2", Tier: Tier1}}
		err := table.Occupy("101", other)
		var occupied *AlreadyOccupiedError
		require.ErrorAs(t, err, &occupied)
		assert.Equal(t, "robot-1", occupied.OccupantID)
	})

	t.Run("occupant already bound elsewhere", func(t *testing.T) {
		again := &Occupancy{ID: "o3", Request: Request{OccupantID: "robot-1", Tier: Tier1}}
		err := table.Occupy("102", again)
		assert.True(t, errors.Is(err, ErrOccupantBound))
		assert.True(t, table.IsFree("102"))
	})

	t.Run("unknown slot", func(t *testing.T) {
		err := table.Occupy("999", &Occupancy{Request: Request{OccupantID: "robot-9"}})
		assert.True(t, errors.Is(err, ErrUnknownSlot))
		assert.False(t, table.IsFree("999"))
	})

	t.Run("round trip", func(t *testing.T) {
		released, err := table.Release("101")
		require.NoError(t, err)
		assert.Same(t, occ, released)
		assert.True(t, table.IsFree("101"))
		_, held := table.SlotOf("robot-1")
		assert.False(t, held)
	})

	t.Run("release free slot", func(t *testing.T) {
		_, err := table.Release("101")
		var notOccupied *NotOccupiedError
		require.ErrorAs(t, err, &notOccupied)
		assert.Equal(t, "101", notOccupied.SlotID)
	})
}

func TestTable_FirstFreeFollowsCatalogOrder(t *testing.T) {
	table := NewTable(referenceCatalog(t))

	first, ok := table.FirstFree(Tier2)
	require.True(t, ok)
	assert.Equal(t, "201", first)

	require.NoError(t, table.Occupy("201", &Occupancy{Request: Request{OccupantID: "a"}}))
	require.NoError(t, table.Occupy("203", &Occupancy{Request: Request{OccupantID: "b"}}))
	next, ok := table.FirstFree(Tier2)
	require.True(t, ok)
	assert.Equal(t, "202", next)

	require.NoError(t, table.Occupy("202", &Occupancy{Request: Request{OccupantID: "c"}}))
	_, ok = table.FirstFree(Tier2)
	assert.False(t, ok)
}

func TestWaitingQueue_FIFO(t *testing.T) {
	var q WaitingQueue
	_, ok := q.DequeueNext()
	assert.False(t, ok)

	for _, id := range []string{"a", "b", "c"} {
		q.Enqueue(Request{OccupantID: id})
	}
	assert.Equal(t, 3, q.Len())
	assert.True(t, q.Contains("b"))

	var order []string
	for {
		r, ok := q.DequeueNext()
		if !ok {
			break
		}
		order = append(order, r.OccupantID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.False(t, q.Contains("b"))
}

func TestSortEvents(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	batch := []PendingEvent{
		{Priority: 2, ScheduledEnd: base, Seq: 1},
		{Priority: 1, ScheduledEnd: base.Add(2 * time.Minute), Seq: 2},
		{Priority: 0, ScheduledEnd: base.Add(5 * time.Minute), Seq: 3},
		{Priority: 1, ScheduledEnd: base.Add(time.Minute), Seq: 4},
		{Priority: 1, ScheduledEnd: base.Add(time.Minute), Seq: 0},
	}
	sortEvents(batch)

	var seqs []uint64
	for _, ev := range batch {
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []uint64{3, 0, 4, 2, 1}, seqs)
}
