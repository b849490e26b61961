package orchestrator

import (
	"context"
	"time"
)

// pacer hands audio to the sink no faster than it plays, staying at most
// lead ahead of the listener. The sink is a plain socket write, so without
// it a reply would be flushed in the time it takes to download.
type pacer struct {
	rate  int
	lead  time.Duration
	start time.Time
	sent  time.Duration
}

func newPacer(rate int, lead time.Duration) *pacer {
	return &pacer{rate: rate, lead: lead}
}

// duration of n bytes of mono PCM16.
func (p *pacer) duration(n int) time.Duration {
	return time.Duration(n/2) * time.Second / time.Duration(p.rate)
}

// ready waits until the next chunk may be written. It reports false when
// stop or ctx ended the wait.
func (p *pacer) ready(ctx context.Context, stop <-chan struct{}) bool {
	if p.start.IsZero() {
		p.start = time.Now()
		return true
	}
	return p.waitUntil(ctx, stop, p.start.Add(p.sent-p.lead))
}

func (p *pacer) wrote(n int) { p.sent += p.duration(n) }

// drain waits for the audio already written to finish playing.
func (p *pacer) drain(ctx context.Context, stop <-chan struct{}) bool {
	if p.start.IsZero() {
		return true
	}
	return p.waitUntil(ctx, stop, p.start.Add(p.sent))
}

func (p *pacer) waitUntil(ctx context.Context, stop <-chan struct{}, at time.Time) bool {
	d := time.Until(at)
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}
