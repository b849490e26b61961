package tts

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    // state: completed, cancelled, failed
    ttsSynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Namespace: "parley", Subsystem: "tts",
        Name: "tasks_finished_total",
        Help: "Synthesis tasks by terminal state",
    }, []string{"status"})

    ttsFirstFrameMS = promauto.NewHistogram(prometheus.HistogramOpts{
        Namespace: "parley", Subsystem: "tts",
        Name:    "stream_first_chunk_ms",
        Help:    "Stream-input dial to first decoded audio chunk",
        Buckets: prometheus.ExponentialBuckets(20, 1.6, 10),
    })

    ttsTotalDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
        Namespace: "parley", Subsystem: "tts",
        Name:    "stream_duration_ms",
        Help:    "Stream-input dial to isFinal",
        Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
    })

    gaugeActive = promauto.NewGauge(prometheus.GaugeOpts{
        Namespace: "parley", Subsystem: "tts",
        Name: "tasks_running",
        Help: "Synthesis tasks whose producer has not returned",
    })
)
