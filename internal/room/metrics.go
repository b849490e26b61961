package room

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
        Name: "room_connections_active",
        Help: "Participant websocket connections currently open",
    })

    metricRejects = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "room_connect_rejects_total",
        Help: "Rejected room connections, by reason",
    }, []string{"reason"})

    metricFramesIn = promauto.NewCounter(prometheus.CounterOpts{
        Name: "room_frames_in_total",
        Help: "Binary audio messages received from participants",
    })

    metricFramesOut = promauto.NewCounter(prometheus.CounterOpts{
        Name: "room_frames_out_total",
        Help: "Synthesized audio messages written to participants",
    })
)
