package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var syncedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_queue_synced_total",
	Help: "counter of queue items successfully appended to the batch sink",
})

var failedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_queue_failed_total",
	Help: "counter of queue items dropped after exhausting their retry budget",
})

var droppedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_queue_dropped_total",
	Help: "counter of queue items evicted by the drop-oldest overflow policy",
})

var tickCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "eventgate_queue_ticks_total",
	Help: "counter of queue worker ticks by outcome",
}, []string{"outcome"})
