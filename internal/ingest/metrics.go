package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var snapshotsApplied = promauto.NewCounter(prometheus.CounterOpts{
	Name: "everterm_snapshots_applied_total",
	Help: "counter of regional snapshots merged into the global book",
})

var ordersApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "everterm_orders_applied_total",
	Help: "counter of order-level delta operations applied to the global book",
}, []string{"op"})
