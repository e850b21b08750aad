package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"parking-scheduler-backend/internal/scheduler"
)

const namespace = "parking"

// Metrics exports scheduler activity. It is both the StatusSink and the
// Observer of a scheduler.
type Metrics struct {
	filled prometheus.Gauge
	empty  prometheus.Gauge

	admissions *prometheus.CounterVec
	queued     *prometheus.CounterVec
	releases   *prometheus.CounterVec
	extensions *prometheus.CounterVec
	stale      *prometheus.CounterVec
	resets     prometheus.Counter

	reg prometheus.Registerer
}

func New(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"tier"})
	}

	m := &Metrics{
		filled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slots_filled",
			Help:      "Slots currently bound to an occupant.",
		}),
		empty: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slots_empty",
			Help:      "Slots currently free.",
		}),
		admissions: counter("admissions_total", "Occupants moved into a slot."),
		queued:     counter("queued_total", "Requests that had to wait for a slot."),
		releases:   counter("releases_total", "Occupants that left their slot."),
		extensions: counter("extensions_total", "Stays that were extended."),
		stale:      counter("stale_events_total", "Expiry events dropped because the stay had changed."),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_resets_total",
			Help:      "Times the garage was reset after every occupant completed.",
		}),
		reg: reg,
	}

	reg.MustRegister(m.filled, m.empty, m.admissions, m.queued, m.releases, m.extensions, m.stale, m.resets)
	return m
}

func (m *Metrics) OnOccupancyChanged(filled, empty int) {
	m.filled.Set(float64(filled))
	m.empty.Set(float64(empty))
}

func (m *Metrics) Admitted(t scheduler.Tier)     { m.admissions.WithLabelValues(t.String()).Inc() }
func (m *Metrics) Queued(t scheduler.Tier)       { m.queued.WithLabelValues(t.String()).Inc() }
func (m *Metrics) Released(t scheduler.Tier)     { m.releases.WithLabelValues(t.String()).Inc() }
func (m *Metrics) Extended(t scheduler.Tier)     { m.extensions.WithLabelValues(t.String()).Inc() }
func (m *Metrics) StaleDropped(t scheduler.Tier) { m.stale.WithLabelValues(t.String()).Inc() }
func (m *Metrics) CycleReset()                   { m.resets.Inc() }

// WatchSnapshots registers per-tier gauges computed from src at scrape time.
func (m *Metrics) WatchSnapshots(src SnapshotSource) error {
	return m.reg.Register(NewSnapshotCollector(src))
}
