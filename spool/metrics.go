package spool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var appendCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_spool_appends_total",
	Help: "counter of records appended to the JSONL spool",
})

var rotationCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "eventgate_spool_rotations_total",
	Help: "counter of spool file rotations",
})
