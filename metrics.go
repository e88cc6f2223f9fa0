// File: metrics.go
package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captcha_challenges_generated_total",
		Help: "Challenges produced by the generator",
	})

	rendersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captcha_renders_total",
		Help: "Completed render passes",
	})

	reloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captcha_reloads_total",
		Help: "Reload control activations",
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "captcha_render_duration_milliseconds",
		Help:    "Time taken by one render pass including PNG encoding (milliseconds)",
		Buckets: prometheus.ExponentialBuckets(0.125, 2, 12),
	})

	liveWidgets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "captcha_live_widgets",
		Help: "Widgets currently held by the registry",
	})
)
