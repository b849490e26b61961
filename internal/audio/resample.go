package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"parley/agent/internal/types"
)

// Resampler converts mono PCM16 frames from one rate to another. It keeps
// filter state between calls, so use one per stream.
type Resampler struct {
	in, out int
	r       resampling.Resampler
}

func NewResampler(inRate, outRate int) (*Resampler, error) {
	rs := &Resampler{in: inRate, out: outRate}
	if inRate == outRate {
		return rs, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: resampler %d->%d: %w", inRate, outRate, err)
	}
	rs.r = r
	return rs, nil
}

func (rs *Resampler) InRate() int  { return rs.in }
func (rs *Resampler) OutRate() int { return rs.out }

// Process returns f at the output rate. The capture timestamp is kept.
func (rs *Resampler) Process(f types.AudioFrame) (types.AudioFrame, error) {
	if rs.r == nil {
		f.SampleRate = rs.out
		return f, nil
	}
	if f.SampleRate != 0 && f.SampleRate != rs.in {
		return types.AudioFrame{}, fmt.Errorf("audio: frame rate %d, resampler expects %d", f.SampleRate, rs.in)
	}
	out, err := rs.r.Process(ToFloat(f.PCM))
	if err != nil {
		return types.AudioFrame{}, fmt.Errorf("audio: resample: %w", err)
	}
	return types.AudioFrame{PCM: FromFloat(out), SampleRate: rs.out, CapturedAt: f.CapturedAt}, nil
}
