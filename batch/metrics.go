// Copyright (c) 2025 BVK Chaitanya

package batch

import "github.com/prometheus/client_golang/prometheus"

var (
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitbot_unit_actions_total",
			Help: "Number of unit actions by batch, action and result.",
		},
		[]string{"batch", "action", "status"},
	)

	pollErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitbot_poll_errors_total",
			Help: "Number of failed account state refreshes.",
		},
		[]string{"batch"},
	)

	unitsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "unitbot_units",
			Help: "Number of units currently held by a batch.",
		},
		[]string{"batch"},
	)

	inflightGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "unitbot_inflight_actions",
			Help: "Number of in-flight unit actions in a batch.",
		},
		[]string{"batch"},
	)
)

func init() {
	prometheus.MustRegister(actionsTotal, pollErrorsTotal, unitsGauge, inflightGauge)
}
