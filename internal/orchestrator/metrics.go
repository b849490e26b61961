package orchestrator

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "orch_state_transitions_total",
        Help: "Turn controller state transitions",
    }, []string{"from", "to"})

    metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
        Name: "orch_sessions_active",
        Help: "Conversation sessions currently running",
    })

    metricFinals = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "orch_transcript_finals_total",
        Help: "Final transcripts seen, by outcome",
    }, []string{"outcome"})

    metricBargeIn = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "orch_barge_in_events_total",
        Help: "Barge-in cancellations, by trigger",
    }, []string{"trigger"})

    metricBargeInLatency = promauto.NewHistogram(prometheus.HistogramOpts{
        Name:    "orch_barge_in_latency_ms",
        Help:    "Latency from guard end to detected speech onset",
        Buckets: prometheus.ExponentialBuckets(10, 1.6, 10),
    })

    metricCancelGraceExpired = promauto.NewCounter(prometheus.CounterOpts{
        Name: "orch_cancel_grace_expired_total",
        Help: "Synthesis cancellations not acknowledged within the grace period",
    })

    metricTTSFirstAudio = promauto.NewHistogram(prometheus.HistogramOpts{
        Name:    "orch_tts_first_audio_ms",
        Help:    "Latency from synthesis start to first audio written to the sink",
        Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
    })

    metricTurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
        Name:    "orch_turn_latency_ms",
        Help:    "Latency from final transcript to synthesis start",
        Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
    })

    metricTurnErrors = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "orch_turn_errors_total",
        Help: "Turns aborted, by failure kind and stage",
    }, []string{"kind", "stage"})

    metricRetrievalDegraded = promauto.NewCounter(prometheus.CounterOpts{
        Name: "orch_retrieval_degraded_total",
        Help: "Turns generated without retrieved context after a retrieval failure",
    })

    metricRetries = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "orch_retries_total",
        Help: "Transport retries, by stream",
    }, []string{"stream"})
)
