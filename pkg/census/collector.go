/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

package census

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a sender's census as Prometheus metrics: the same
// Describe/Collect shape as the teacher's TCPInfoCollector, reporting
// census liveness instead of tcp_info fields.
type Collector struct {
	table     *Table
	liveDesc  *prometheus.Desc
	entryDesc *prometheus.Desc
}

// NewCollector builds a Collector over table. constLabels is meant for
// labels constant for the whole process (run id, hostname), matching the
// teacher's NewTCPInfoCollector signature.
func NewCollector(table *Table, constLabels prometheus.Labels) *Collector {
	return &Collector{
		table: table,
		liveDesc: prometheus.NewDesc(
			"loopcast_census_live_clients",
			"Number of clients considered live as of the last census scan.",
			nil, constLabels,
		),
		entryDesc: prometheus.NewDesc(
			"loopcast_census_client_last_seen_seconds",
			"Seconds since the last heartbeat from a given client id.",
			[]string{"client_id"}, constLabels,
		),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.liveDesc
	descs <- c.entryDesc
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	now := time.Now()
	live := c.table.DrainAndCensus(now)
	metrics <- prometheus.MustNewConstMetric(c.liveDesc, prometheus.GaugeValue, float64(live))

	for id, age := range c.table.LiveAges(now) {
		metrics <- prometheus.MustNewConstMetric(c.entryDesc, prometheus.GaugeValue, age, fmt.Sprintf("%d", id))
	}
}
