package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/bd2kgenomics/spinnaker/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const collectTimeout = 5 * time.Second

type submissionStatsCollector struct {
	store            store.Store
	totalSubmissions *prometheus.Desc
	totalByStatus    *prometheus.Desc
}

// NewSubmissionStatsCollector returns a collector reading the submission counts from the store
// on every scrape.
func NewSubmissionStatsCollector(s store.Store) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_submissions_%s", spinnaker, name)
	}

	return &submissionStatsCollector{
		store: s,
		totalSubmissions: prometheus.NewDesc(
			fqName("total"),
			"Total number of submissions.",
			nil,
			prometheus.Labels{},
		),
		totalByStatus: prometheus.NewDesc(
			fqName("by_status_total"),
			"Total submissions by status",
			[]string{"status"},
			prometheus.Labels{},
		),
	}
}

func (c *submissionStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalSubmissions
	ch <- c.totalByStatus
}

// Collect implements Collector.
func (c *submissionStatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	stats, err := c.store.Statistics(ctx)
	if err != nil {
		zap.S().Named("submission_collector").Errorf("failed to collect submission statistics: %s", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.totalSubmissions, prometheus.GaugeValue, float64(stats.Total))

	for status, total := range stats.ByStatus {
		ch <- prometheus.MustNewConstMetric(c.totalByStatus, prometheus.GaugeValue, float64(total), status.String())
	}
}
