package stt

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

func sttOpts(name, help string) prometheus.CounterOpts {
    return prometheus.CounterOpts{Namespace: "parley", Subsystem: "stt", Name: name, Help: help}
}

var (
    metricAudioBytes = promauto.NewCounter(sttOpts("sent_bytes_total", "PCM bytes queued for the transcription stream"))
    metricFrames     = promauto.NewCounter(sttOpts("sent_frames_total", "Frames queued for the transcription stream"))
    metricDrops      = promauto.NewCounter(sttOpts("send_dropped_total", "Frames dropped because the send queue was full"))

    metricCircuitOpens = promauto.NewCounter(sttOpts("breaker_trips_total", "Times repeated dial failures refused new streams"))

    metricConnectMS = promauto.NewHistogram(prometheus.HistogramOpts{
        Namespace: "parley",
        Subsystem: "stt",
        Name:      "dial_ms",
        Help:      "Listen websocket dial latency",
        Buckets:   prometheus.ExponentialBuckets(10, 1.8, 10),
    })

    gaugeSessions = promauto.NewGauge(prometheus.GaugeOpts{
        Namespace: "parley", Subsystem: "stt", Name: "streams_open",
        Help: "Open transcription streams",
    })
    gaugeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
        Namespace: "parley", Subsystem: "stt", Name: "send_queue_depth",
        Help: "Send queue depth at the last enqueue",
    })

    // kind: interim, final, utterance_end_fallback
    metricTranscriptEvents  = promauto.NewCounterVec(sttOpts("events_total", "Transcript events delivered to NextEvent"), []string{"kind"})
    metricEmptyFinalSkipped = promauto.NewCounter(sttOpts("empty_finals_total", "Finals with no text that were not delivered"))
    // type: speech_started, utterance_end
    metricUtteranceEvents = promauto.NewCounterVec(sttOpts("boundaries_total", "Utterance boundary messages from the provider"), []string{"type"})
)
