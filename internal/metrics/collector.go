package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool       *pgxpool.Pool
	configured func() bool

	providerConfigured *prometheus.Desc
	dbTotalConns       *prometheus.Desc
	dbAcquiredConns    *prometheus.Desc
	dbIdleConns        *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool is nil for the SQLite store and the pool gauges report 0.
// configured reports whether a transcription provider is set up.
func NewCollector(pool *pgxpool.Pool, configured func() bool) *Collector {
	return &Collector{
		pool:       pool,
		configured: configured,
		providerConfigured: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "transcription_provider_configured"),
			"1 when a transcription provider is configured.",
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
	ch <- c.providerConfigured
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var configured float64
	if c.configured != nil && c.configured() {
		configured = 1
	}
	ch <- prometheus.MustNewConstMetric(c.providerConfigured, prometheus.GaugeValue, configured)

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
