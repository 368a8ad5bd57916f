// Package metrics exposes the prometheus counters for the daily stock
// subsystem. The yield fallback counter matters most: it records every
// time the reconciliation silently ran with the default multiplier.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	YieldFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meatshop_yield_fallback_total",
		Help: "Reconciliation passes where an item had no yield factor and multiplier 1 was substituted.",
	})

	ReconciliationRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meatshop_reconciliation_runs_total",
		Help: "Reconciliation computations, counting both daily update loads and report reads.",
	})

	DailyUpdateSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meatshop_daily_update_saves_total",
		Help: "Successful daily stock batch saves.",
	})

	SurplusCategoryDays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meatshop_surplus_category_days_total",
		Help: "Category summaries that came out with a negative loss (apparent surplus).",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
