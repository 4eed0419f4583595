package esi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var responseCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "everterm_esi_responses_total",
	Help: "counter of ESI responses by status class",
}, []string{"class"})

var budgetGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "everterm_esi_error_budget_remaining",
	Help: "last observed x-esi-error-limit-remain value",
})
