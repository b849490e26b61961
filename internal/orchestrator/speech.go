package orchestrator

import (
	"context"
	"time"

	"parley/agent/internal/tts"
)

// speak starts a synthesis task for text and hands its audio to a playback
// goroutine. Any previous task is cancelled and awaited first so at most
// one task is ever live.
func (c *Controller) speak(ctx context.Context, text string) {
	if ctx.Err() != nil {
		return
	}
	if c.task != nil {
		c.task.Cancel()
		c.awaitCancel(c.task)
		c.task = nil
	}
	task := c.ttsSess.Start(ctx, text, c.voice)
	c.task = task
	c.taskText = text
	c.taskStart = time.Now()
	c.bargeIn.Arm(c.taskStart)
	c.setState(Speaking)
	c.emit("synthesis_started", map[string]any{"task": task.ID, "voice": task.Voice})

	go c.play(ctx, task)
}

// play forwards audio to the sink in real time, so SPEAKING lasts as long
// as the participant hears the reply. It never touches controller state;
// the outcome goes back to the control goroutine over playDone.
func (c *Controller) play(ctx context.Context, task *tts.Task) {
	var sinkErr error
	first := true
	p := newPacer(c.opts.OutputRate, c.opts.PlaybackLead)
	for chunk := range task.Chunks() {
		if !p.ready(ctx, task.Cancelled()) {
			break
		}
		if first {
			metricTTSFirstAudio.Observe(float64(time.Since(task.StartedAt).Milliseconds()))
			first = false
		}
		if err := c.deps.Sink.WriteAudio(ctx, chunk); err != nil {
			sinkErr = err
			task.Cancel()
			break
		}
		p.wrote(len(chunk))
	}
	if sinkErr == nil {
		p.drain(ctx, task.Cancelled())
	}
	select {
	case <-task.Done():
	case <-ctx.Done():
		return
	}
	select {
	case c.playDone <- playResult{task: task, err: sinkErr}:
	case <-ctx.Done():
	}
}

func (c *Controller) onPlaybackDone(ctx context.Context, r playResult) {
	if r.task != c.task {
		// Output of a task we already gave up on.
		return
	}
	c.task = nil
	switch {
	case r.err != nil:
		c.report(&TurnError{Kind: ErrTransport, Stage: "playback", Err: r.err})
		c.setState(Listening)
	case r.task.State() == tts.Failed:
		if !c.synthRetry {
			c.synthRetry = true
			metricRetries.WithLabelValues("synthesis").Inc()
			c.log.Warn("synthesis failed, retrying once", "err", r.task.Err())
			c.emit("synthesis_retry", map[string]any{"task": r.task.ID, "error": r.task.Err().Error()})
			c.speak(ctx, c.taskText)
			return
		}
		c.report(&TurnError{Kind: ErrTransport, Stage: "synthesis", Err: r.task.Err()})
		c.setState(Listening)
	default:
		c.emit("synthesis_finished", map[string]any{"task": r.task.ID, "state": r.task.State().String()})
		c.setState(Listening)
	}
}

// stopSpeaking cancels the live task exactly once and waits for it to
// acknowledge, bounded by the cancel grace.
func (c *Controller) stopSpeaking(trigger string) {
	task := c.task
	if task == nil {
		return
	}
	task.Cancel()
	metricBargeIn.WithLabelValues(trigger).Inc()
	c.log.Info("barge-in", "trigger", trigger, "task", task.ID)
	c.emit("barge_in", map[string]any{"task": task.ID, "trigger": trigger})
	c.awaitCancel(task)
	c.task = nil
	c.bargeIn.Reset()
	c.setState(Listening)
}

func (c *Controller) awaitCancel(task *tts.Task) {
	t := time.NewTimer(c.opts.CancelGrace)
	defer t.Stop()
	select {
	case <-task.Done():
	case <-t.C:
		metricCancelGraceExpired.Inc()
		c.log.Warn("synthesis did not acknowledge cancel", "task", task.ID)
	}
}
