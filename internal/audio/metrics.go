package audio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFramesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_queue_frames_total",
		Help: "Frames pushed into ingest queues",
	})

	metricQueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_queue_drops_total",
		Help: "Oldest frames dropped because an ingest queue was full",
	})

	gaugeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audio_queue_depth",
		Help: "Depth of the last ingest queue touched",
	})
)
