package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var receivedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_events_received_total",
	Help: "counter of events received across /events and /ingest",
})

var appendedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_events_appended_total",
	Help: "counter of events accepted after duplicate suppression",
})

var duplicateCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_events_duplicate_total",
	Help: "counter of events dropped by the duplicate window",
})

var webhookFailCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_webhook_failures_total",
	Help: "counter of synchronous webhook posts which did not succeed",
})
