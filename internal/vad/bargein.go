package vad

import (
	"time"
)

// BargeIn debounces gate decisions while the agent is speaking. It fires
// once per onset: MinFrames consecutive speech frames captured after the
// guard window. After firing it stays quiet until Hangover non-speech
// frames have passed or Arm/Reset is called.
type BargeIn struct {
	MinFrames int
	Hangover  int
	Guard     time.Duration

	guardUntil   time.Time
	consecSpeech int
	nonSpeech    int
	fired        bool
}

func NewBargeIn(minFrames int, guard time.Duration) *BargeIn {
	if minFrames < 1 {
		minFrames = 1
	}
	return &BargeIn{MinFrames: minFrames, Hangover: 10, Guard: guard}
}

// Arm resets the counters and opens the guard window starting at now.
func (b *BargeIn) Arm(now time.Time) {
	b.Reset()
	b.guardUntil = now.Add(b.Guard)
}

func (b *BargeIn) Reset() {
	b.consecSpeech = 0
	b.nonSpeech = 0
	b.fired = false
}

// GuardUntil is the end of the current guard window.
func (b *BargeIn) GuardUntil() time.Time { return b.guardUntil }

// Observe feeds one gate decision for a frame captured at at. It returns
// true on the frame that completes an onset.
func (b *BargeIn) Observe(at time.Time, isSpeech bool) bool {
	if b.fired {
		if isSpeech {
			b.nonSpeech = 0
			return false
		}
		b.nonSpeech++
		if b.nonSpeech >= b.Hangover {
			b.Reset()
		}
		return false
	}
	if !isSpeech {
		b.consecSpeech = 0
		return false
	}
	if at.Before(b.guardUntil) {
		metricGuardBlocks.Inc()
		return false
	}
	b.consecSpeech++
	if b.consecSpeech < b.MinFrames {
		return false
	}
	b.fired = true
	b.nonSpeech = 0
	metricOnsets.Inc()
	return true
}

// Consecutive is the current run of speech frames.
func (b *BargeIn) Consecutive() int { return b.consecSpeech }
