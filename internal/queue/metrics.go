package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DepthCollector reports queue sizes on every scrape.
type DepthCollector struct {
	Inspector Inspector
	Queues    []string
	Log       zerolog.Logger

	depth *prometheus.Desc
}

// NewDepthCollector builds a collector for queues under namespace.
func NewDepthCollector(namespace string, in Inspector, log zerolog.Logger, queues ...string) *DepthCollector {
	return &DepthCollector{
		Inspector: in,
		Queues:    queues,
		Log:       log,
		depth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "tasks"),
			"Number of tasks per queue and state.",
			[]string{"queue", "state"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *DepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depth
}

// Collect implements prometheus.Collector.
func (c *DepthCollector) Collect(ch chan<- prometheus.Metric) {
	for _, q := range c.Queues {
		info, err := c.Inspector.GetQueueInfo(q)
		if err != nil {
			c.Log.Debug().Err(err).Str("queue", q).Msg("queue info unavailable")
			continue
		}
		for state, n := range map[string]int{
			"pending":   info.Pending,
			"active":    info.Active,
			"scheduled": info.Scheduled,
			"retry":     info.Retry,
			"archived":  info.Archived,
		} {
			ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(n), q, state)
		}
	}
}
