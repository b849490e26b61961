package orchestrator

import (
	"context"
	"errors"
	"strings"

	"parley/agent/internal/stt"
)

// openTranscription opens a new stream and starts its reader. Each stream
// gets a generation number so late messages from a replaced one are ignored.
func (c *Controller) openTranscription(ctx context.Context) error {
	octx, cancel := context.WithTimeout(ctx, c.opts.OpenTimeout)
	sess, err := c.deps.Transcriber.Open(octx)
	cancel()
	if err != nil {
		return err
	}
	c.sttGen++
	c.sttSess = sess
	go c.readTranscripts(ctx, sess, c.sttGen)
	return nil
}

// readTranscripts is the only caller of NextEvent for sess, which keeps
// events in arrival order.
func (c *Controller) readTranscripts(ctx context.Context, sess stt.Session, gen int) {
	for {
		ev, err := sess.NextEvent(ctx)
		select {
		case c.transcripts <- transcriptMsg{gen: gen, ev: ev, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Controller) onTranscript(ctx context.Context, m transcriptMsg) error {
	if m.gen != c.sttGen {
		return nil
	}
	if m.err != nil {
		return c.onTranscriptionFailure(ctx, m.err)
	}
	if !m.ev.IsFinal {
		c.emit("transcript_interim", map[string]any{"text": m.ev.Text})
		return nil
	}
	text := strings.TrimSpace(m.ev.Text)
	if text == "" {
		metricFinals.WithLabelValues("empty").Inc()
		return nil
	}
	metricFinals.WithLabelValues("accepted").Inc()
	c.emit("transcript_final", map[string]any{"text": text})

	// A new utterance wins over anything still being spoken.
	if c.State() == Speaking {
		c.stopSpeaking("transcript")
	}
	c.think(ctx, text)
	return nil
}

// onTranscriptionFailure reopens the stream once per session. A second
// failure ends the session.
func (c *Controller) onTranscriptionFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, stt.ErrClosed) {
		return nil
	}
	_ = c.sttSess.Close()
	c.sttSess = nil
	if c.sttRetried {
		te := &TurnError{Kind: ErrTransport, Stage: "transcription", Err: err}
		c.report(te)
		return te
	}
	c.sttRetried = true
	metricRetries.WithLabelValues("transcription").Inc()
	c.log.Warn("transcription dropped, reopening", "err", err)
	c.emit("transcription_retry", map[string]any{"error": err.Error()})

	if oerr := c.openTranscription(ctx); oerr != nil {
		te := &TurnError{Kind: ErrTransport, Stage: "transcription_reopen", Err: oerr}
		c.report(te)
		return te
	}
	return nil
}
