package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_registrations_total",
		Help: "Successful user registrations.",
	})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	TokenRevocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_token_revocations_total",
		Help: "Tokens added to the revocation list, by kind.",
	}, []string{"kind"})

	OrderStatusTogglesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_order_status_toggles_total",
		Help: "Order fulfillment status toggles from the panel.",
	})

	OrderDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_order_deletes_total",
		Help: "Orders deleted from the panel.",
	})
)
