package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// QueueStats provides the metrics collector access to worker pool state.
type QueueStats interface {
	Pending() int
	Completed() int64
	Failed() int64
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool  *pgxpool.Pool
	queue QueueStats

	// Descriptors for scrape-time gauges.
	queuePending    *prometheus.Desc
	queueCompleted  *prometheus.Desc
	queueFailed     *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool may be nil (metrics will report 0). queue may be nil if no worker
// pool is running.
func NewCollector(pool *pgxpool.Pool, queue QueueStats) *Collector {
	return &Collector{
		pool:  pool,
		queue: queue,
		queuePending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "pending"),
			"Acquisition jobs currently queued.",
			nil, nil,
		),
		queueCompleted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "completed_total"),
			"Acquisition jobs completed successfully.",
			nil, nil,
		),
		queueFailed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "failed_total"),
			"Acquisition jobs that exhausted all sources.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queuePending
	ch <- c.queueCompleted
	ch <- c.queueFailed
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	// Worker queue stats
	if c.queue != nil {
		ch <- prometheus.MustNewConstMetric(c.queuePending, prometheus.GaugeValue, float64(c.queue.Pending()))
		ch <- prometheus.MustNewConstMetric(c.queueCompleted, prometheus.CounterValue, float64(c.queue.Completed()))
		ch <- prometheus.MustNewConstMetric(c.queueFailed, prometheus.CounterValue, float64(c.queue.Failed()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.queuePending, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.queueCompleted, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.queueFailed, prometheus.CounterValue, 0)
	}

	// Database pool stats
	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
