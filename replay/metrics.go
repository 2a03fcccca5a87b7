package replay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sentCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_replay_sent_total",
	Help: "counter of spooled records successfully replayed to the webhook",
})

var failedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_replay_failed_total",
	Help: "counter of replay ticks stopped by a failed webhook post",
})
