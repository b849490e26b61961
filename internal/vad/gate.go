// Package vad holds the energy-based speech gate and the barge-in debounce
// that runs on top of it.
package vad

import (
	"math"

	"parley/agent/internal/audio"
	"parley/agent/internal/types"
)

// Gate classifies one frame at a time. Implementations keep no per-call state.
type Gate interface {
	Classify(f types.AudioFrame) (isSpeech bool, probability float64)
}

const defaultSteepness = 8.0

// EnergyGate maps frame RMS onto a logistic curve centred on MinRMS, so a
// frame exactly at MinRMS scores 0.5.
type EnergyGate struct {
	MinRMS    float64
	Threshold float64
	Steepness float64
}

func NewEnergyGate(minRMS, threshold float64) EnergyGate {
	if minRMS <= 0 {
		minRMS = 1200
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.5
	}
	return EnergyGate{MinRMS: minRMS, Threshold: threshold, Steepness: defaultSteepness}
}

func (g EnergyGate) Classify(f types.AudioFrame) (bool, float64) {
	p := g.Probability(audio.RMS(f.PCM))
	metricFrames.Inc()
	return p >= g.Threshold, p
}

func (g EnergyGate) Probability(rms float64) float64 {
	k := g.Steepness
	if k <= 0 {
		k = defaultSteepness
	}
	x := k * (rms - g.MinRMS) / g.MinRMS
	return 1 / (1 + math.Exp(-x))
}
