// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"strconv"
	"time"

	"github.com/omero-ms/go-imageregion/cache"
	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
)

var dispatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "omero",
		Subsystem: "imageregion",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent waiting for rendering workers",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	},
	[]string{"address"},
)

var dispatchResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "omero",
		Subsystem: "imageregion",
		Name:      "dispatch_results_total",
		Help:      "Dispatched render requests by outcome",
	},
	[]string{"address", "status"},
)

var breakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "omero",
		Subsystem: "imageregion",
		Name:      "breaker_state",
		Help:      "Worker circuit breaker state (0 closed, 1 half-open, 2 open)",
	},
	[]string{"name"},
)

func init() {
	prometheus.MustRegister(dispatchDuration)
	prometheus.MustRegister(dispatchResults)
	prometheus.MustRegister(breakerState)
}

// observe records one dispatch; it is a dispatch.Observer.
func observe(address string, result dispatch.Result, elapsed time.Duration) {
	dispatchDuration.With(prometheus.Labels{
		"address": address,
	}).Observe(elapsed.Seconds())
	dispatchResults.With(prometheus.Labels{
		"address": address,
		"status":  strconv.Itoa(result.StatusCode),
	}).Inc()
}

// observeBreaker records a circuit breaker state change.
func observeBreaker(name string, from, to gobreaker.State) {
	breakerState.With(prometheus.Labels{"name": name}).Set(float64(to))
}

// registerCache exports the hit and miss counts of a reply cache.
func registerCache(c *cache.Cache) error {
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "omero",
		Subsystem: "imageregion",
		Name:      "cache_hits_total",
		Help:      "Render replies served from the cache",
	}, func() float64 {
		hits, _ := c.Stats()
		return float64(hits)
	})
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "omero",
		Subsystem: "imageregion",
		Name:      "cache_misses_total",
		Help:      "Render requests sent past the cache",
	}, func() float64 {
		_, misses := c.Stats()
		return float64(misses)
	})
	size := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "omero",
		Subsystem: "imageregion",
		Name:      "cache_entries",
		Help:      "Render replies currently cached",
	}, func() float64 {
		return float64(c.Len())
	})
	for _, collector := range []prometheus.Collector{hits, misses, size} {
		if err := prometheus.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
