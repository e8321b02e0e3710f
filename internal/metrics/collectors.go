package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"hypertrader/pkg/logger"
)

// JournalCollector exposes trade journal aggregates read from Postgres at scrape time
type JournalCollector struct {
	log      *logger.Logger
	postgres *sqlx.DB

	trades24h *prometheus.Desc
	notional  *prometheus.Desc
}

// NewJournalCollector creates a new journal collector
func NewJournalCollector(log *logger.Logger, postgres *sqlx.DB) *JournalCollector {
	return &JournalCollector{
		log:      log,
		postgres: postgres,

		trades24h: prometheus.NewDesc(
			"hypertrader_journal_trades_24h",
			"Trades recorded in the journal in the last 24h",
			[]string{"mode"}, nil,
		),
		notional: prometheus.NewDesc(
			"hypertrader_journal_notional_usd_24h",
			"Notional USD traded in the last 24h",
			[]string{"mode"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *JournalCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.trades24h
	ch <- c.notional
}

// Collect implements prometheus.Collector
func (c *JournalCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type row struct {
		Simulated bool    `db:"simulated"`
		Count     int     `db:"count"`
		Notional  float64 `db:"notional"`
	}

	var rows []row
	err := c.postgres.SelectContext(ctx, &rows, `
		SELECT simulated, COUNT(*) AS count, COALESCE(SUM(amount * position_size), 0) AS notional
		FROM trade_executions
		WHERE executed_at > NOW() - INTERVAL '24 hours'
		GROUP BY simulated
	`)
	if err != nil {
		c.log.Errorw("Failed to collect journal stats", "error", err)
		return
	}

	for _, r := range rows {
		mode := "real"
		if r.Simulated {
			mode = "simulated"
		}
		ch <- prometheus.MustNewConstMetric(c.trades24h, prometheus.GaugeValue, float64(r.Count), mode)
		ch <- prometheus.MustNewConstMetric(c.notional, prometheus.GaugeValue, r.Notional, mode)
	}
}
