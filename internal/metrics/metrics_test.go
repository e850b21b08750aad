package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-scheduler-backend/internal/scheduler"
)

// gather flattens a registry into "name{label=value,...}" -> value.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			key := fam.GetName()
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "tier" {
					key += "{" + lp.GetValue() + "}"
				}
			}
			out[key] = value(fam.GetType(), m)
		}
	}
	return out
}

func value(kind dto.MetricType, m *dto.Metric) float64 {
	if kind == dto.MetricType_COUNTER {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}

func TestMetrics_StatusAndObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OnOccupancyChanged(7, 16)
	m.Admitted(scheduler.Tier2)
	m.Admitted(scheduler.Tier2)
	m.Queued(scheduler.Tier2)
	m.Released(scheduler.Tier0)
	m.Extended(scheduler.Tier1)
	m.StaleDropped(scheduler.Tier1)
	m.CycleReset()

	got := gather(t, reg)
	assert.Equal(t, 7.0, got["parking_slots_filled"])
	assert.Equal(t, 16.0, got["parking_slots_empty"])
	assert.Equal(t, 2.0, got["parking_admissions_total{tier2}"])
	assert.Equal(t, 1.0, got["parking_queued_total{tier2}"])
	assert.Equal(t, 1.0, got["parking_releases_total{tier0}"])
	assert.Equal(t, 1.0, got["parking_extensions_total{tier1}"])
	assert.Equal(t, 1.0, got["parking_stale_events_total{tier1}"])
	assert.Equal(t, 1.0, got["parking_cycle_resets_total"])
}

type staticSnapshot scheduler.Snapshot

func (s staticSnapshot) Snapshot() scheduler.Snapshot { return scheduler.Snapshot(s) }

func TestSnapshotCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NoError(t, m.WatchSnapshots(staticSnapshot{
		Cycle: 3,
		Tiers: []scheduler.TierStatus{
			{Tier: scheduler.Tier0, Name: "ground", Occupied: 4, Free: 6},
			{Tier: scheduler.Tier2, Name: "second", Queueing: true, Occupied: 3, Waiting: 2},
		},
	}))

	got := gather(t, reg)
	assert.Equal(t, 4.0, got["parking_tier_occupied{tier0}"])
	assert.Equal(t, 6.0, got["parking_tier_free{tier0}"])
	assert.Equal(t, 0.0, got["parking_tier_free{tier2}"])
	assert.Equal(t, 2.0, got["parking_tier_waiting{tier2}"])
	assert.Equal(t, 3.0, got["parking_cycle"])
}

func TestMetricsWithScheduler(t *testing.T) {
	catalog, err := scheduler.NewCatalog(
		[]scheduler.TierRule{{Tier: scheduler.Tier1, Name: "first"}},
		[]scheduler.Slot{{ID: "101", Tier: scheduler.Tier1}, {ID: "102", Tier: scheduler.Tier1}},
	)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := New(reg)
	s := scheduler.New(catalog, scheduler.Config{}, scheduler.Options{Status: m, Observer: m})
	require.NoError(t, m.WatchSnapshots(s))

	_, err = s.Submit(scheduler.Request{OccupantID: "robot-1", Tier: scheduler.Tier1, Duration: time.Hour})
	require.NoError(t, err)

	got := gather(t, reg)
	assert.Equal(t, 1.0, got["parking_slots_filled"])
	assert.Equal(t, 1.0, got["parking_slots_empty"])
	assert.Equal(t, 1.0, got["parking_admissions_total{tier1}"])
	assert.Equal(t, 1.0, got["parking_tier_occupied{tier1}"])
}
