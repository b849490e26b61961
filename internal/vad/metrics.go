package vad

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vad_frames_total",
		Help: "Frames classified by the speech gate",
	})

	metricOnsets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vad_bargein_onsets_total",
		Help: "Debounced speech onsets while speaking",
	})

	metricGuardBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vad_bargein_guard_blocks_total",
		Help: "Speech frames ignored inside the guard window",
	})
)
