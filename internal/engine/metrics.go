package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var engineFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stratigraph_engine_fallbacks_total",
	Help: "Calls answered by the secondary engine after a primary failure.",
})
