package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"parking-scheduler-backend/internal/scheduler"
)

// SnapshotSource is satisfied by *scheduler.Scheduler.
type SnapshotSource interface {
	Snapshot() scheduler.Snapshot
}

type snapshotCollector struct {
	src      SnapshotSource
	occupied *prometheus.Desc
	free     *prometheus.Desc
	waiting  *prometheus.Desc
	cycle    *prometheus.Desc
}

// NewSnapshotCollector reads one snapshot per scrape.
func NewSnapshotCollector(src SnapshotSource) prometheus.Collector {
	labels := []string{"tier", "name"}
	return &snapshotCollector{
		src:      src,
		occupied: prometheus.NewDesc(namespace+"_tier_occupied", "Occupied slots per tier.", labels, nil),
		free:     prometheus.NewDesc(namespace+"_tier_free", "Free slots per tier.", labels, nil),
		waiting:  prometheus.NewDesc(namespace+"_tier_waiting", "Queued requests per tier.", labels, nil),
		cycle:    prometheus.NewDesc(namespace+"_cycle", "Current reset cycle.", nil, nil),
	}
}

func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.occupied
	ch <- c.free
	ch <- c.waiting
	ch <- c.cycle
}

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.src.Snapshot()
	for _, ts := range snap.Tiers {
		tier := ts.Tier.String()
		ch <- prometheus.MustNewConstMetric(c.occupied, prometheus.GaugeValue, float64(ts.Occupied), tier, ts.Name)
		ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(ts.Free), tier, ts.Name)
		ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(ts.Waiting), tier, ts.Name)
	}
	ch <- prometheus.MustNewConstMetric(c.cycle, prometheus.GaugeValue, float64(snap.Cycle))
}
