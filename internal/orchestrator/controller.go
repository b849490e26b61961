// Package orchestrator runs one conversation session: it pulls microphone
// frames from the ingest queue, streams them to transcription, answers final
// transcripts with retrieval plus generation, speaks the reply and cuts the
// reply short when the participant starts talking over it.
//
// All session state is owned by the goroutine inside Run. The ingest queue
// is the only object shared with the audio producer; State is published
// atomically for observers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"parley/agent/internal/audio"
	"parley/agent/internal/config"
	"parley/agent/internal/llm"
	"parley/agent/internal/rag"
	"parley/agent/internal/store"
	"parley/agent/internal/stt"
	"parley/agent/internal/tts"
	"parley/agent/internal/types"
	"parley/agent/internal/vad"
)

// Sink receives synthesized PCM for the participant.
type Sink interface {
	WriteAudio(ctx context.Context, pcm []byte) error
}

// VoiceResolver picks the synthesis voice for a participant.
type VoiceResolver interface {
	Resolve(ctx context.Context, userID string) string
}

// Deps are the collaborators a session talks to. Retriever, Voices and
// Observer are optional.
type Deps struct {
	Transcriber stt.Transcriber
	Synthesizer tts.Synthesizer
	Retriever   rag.Retriever
	Generator   llm.Generator
	Store       store.ConversationStore
	Voices      VoiceResolver
	Gate        vad.Gate
	Sink        Sink
	Observer    func(types.Event)
}

// Options tune one session. Zero values take the defaults below.
type Options struct {
	Room         string
	UserID       string
	SystemPrompt string
	Greeting     string
	DefaultVoice string
	HistoryTurns int
	TopK         int

	QueueCapacity     int
	BargeInMinFrames  int
	BargeInGuard      time.Duration
	CancelGrace       time.Duration
	OpenTimeout       time.Duration
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration

	// OutputRate is the sink's PCM16 sample rate; PlaybackLead is how far
	// ahead of real time audio may be written.
	OutputRate   int
	PlaybackLead time.Duration
}

// OptionsFromConfig fills session options from the process config.
func OptionsFromConfig(cfg config.Config, room, userID string) Options {
	return Options{
		Room:              room,
		UserID:            userID,
		SystemPrompt:      cfg.Agent.SystemPrompt,
		Greeting:          cfg.Agent.Greeting,
		DefaultVoice:      cfg.Agent.DefaultVoiceID,
		HistoryTurns:      cfg.Agent.HistoryReloadTurns,
		TopK:              cfg.RAG.TopK,
		QueueCapacity:     cfg.Turn.QueueCapacity,
		BargeInMinFrames:  cfg.Turn.BargeInMinFrames,
		BargeInGuard:      cfg.Turn.BargeInGuard,
		CancelGrace:       cfg.Turn.CancelGrace,
		OpenTimeout:       cfg.Turn.OpenTimeout,
		RetrievalTimeout:  cfg.RAG.Timeout,
		GenerationTimeout: cfg.LLM.Timeout,
		PlaybackLead:      cfg.Turn.PlaybackLead,
	}
}

func (o *Options) applyDefaults() {
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = audio.DefaultCapacity
	}
	if o.BargeInMinFrames <= 0 {
		o.BargeInMinFrames = 3
	}
	if o.CancelGrace <= 0 {
		o.CancelGrace = 300 * time.Millisecond
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 10 * time.Second
	}
	if o.RetrievalTimeout <= 0 {
		o.RetrievalTimeout = 3 * time.Second
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = 15 * time.Second
	}
	if o.TopK <= 0 {
		o.TopK = rag.DefaultMaxK
	}
	if o.OutputRate <= 0 {
		o.OutputRate = types.PipelineRate
	}
	if o.PlaybackLead <= 0 {
		o.PlaybackLead = 60 * time.Millisecond
	}
}

type transcriptMsg struct {
	gen int
	ev  types.TranscriptEvent
	err error
}

type playResult struct {
	task *tts.Task
	err  error // sink failure; producer failures are on task.Err
}

// Controller is the turn controller for one room.
type Controller struct {
	opts  Options
	deps  Deps
	queue *audio.Queue
	log   *slog.Logger

	state     atomic.Int32
	closing   chan struct{}
	closeOnce sync.Once

	// Owned by Run.
	history     []types.ConversationTurn
	voice       string
	sttSess     stt.Session
	sttGen      int
	sttRetried  bool
	ttsSess     tts.Session
	task        *tts.Task
	taskText    string
	taskStart   time.Time
	synthRetry  bool
	finalAt     time.Time
	bargeIn     *vad.BargeIn
	transcripts chan transcriptMsg
	playDone    chan playResult
}

func New(opts Options, deps Deps) *Controller {
	opts.applyDefaults()
	if deps.Gate == nil {
		deps.Gate = vad.NewEnergyGate(0, 0)
	}
	if deps.Retriever == nil {
		deps.Retriever = rag.Empty{}
	}
	return &Controller{
		opts:        opts,
		deps:        deps,
		queue:       audio.NewQueue(opts.QueueCapacity),
		log:         logger.With("room", opts.Room),
		closing:     make(chan struct{}),
		bargeIn:     vad.NewBargeIn(opts.BargeInMinFrames, opts.BargeInGuard),
		transcripts: make(chan transcriptMsg, 64),
		playDone:    make(chan playResult, 4),
	}
}

// Queue is the producer side of the session's audio ingest.
func (c *Controller) Queue() *audio.Queue { return c.queue }

// State may be read from any goroutine.
func (c *Controller) State() State { return State(c.state.Load()) }

// Close asks Run to tear the session down. Safe to call more than once and
// before Run.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
}

func (c *Controller) closeRequested() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// Run drives the session until ctx is done, Close is called, the queue is
// closed or transcription fails twice. It returns nil on a requested close.
func (c *Controller) Run(ctx context.Context) error {
	metricSessionsActive.Inc()
	defer metricSessionsActive.Dec()

	ctx, span := tracer.Start(ctx, "orchestrator.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("room", c.opts.Room), attribute.String("user", c.opts.UserID)))
	defer span.End()

	// Close cancels in-flight work such as a pending generation.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closing:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer c.teardown()

	if err := c.start(ctx); err != nil {
		if c.closeRequested() {
			return nil
		}
		span.RecordError(err)
		c.log.Error("session start failed", "err", err)
		c.report(err)
		return err
	}
	return c.loop(ctx)
}

func (c *Controller) start(ctx context.Context) error {
	d := c.deps
	if d.Transcriber == nil || d.Synthesizer == nil || d.Generator == nil || d.Store == nil || d.Sink == nil {
		return &TurnError{Kind: ErrConfiguration, Stage: "start", Err: errors.New("missing session collaborator")}
	}
	if c.opts.Room == "" {
		return &TurnError{Kind: ErrConfiguration, Stage: "start", Err: store.ErrEmptyRoom}
	}

	c.voice = c.opts.DefaultVoice
	if d.Voices != nil {
		c.voice = d.Voices.Resolve(ctx, c.opts.UserID)
	}

	hist, err := d.Store.LoadHistory(ctx, c.opts.Room, c.opts.HistoryTurns)
	if err != nil {
		c.log.Warn("history reload failed, starting empty", "err", err)
	}
	c.history = hist

	if err := c.openTranscription(ctx); err != nil {
		return &TurnError{Kind: classifyOpen(err), Stage: "transcription_open", Err: err}
	}

	octx, cancel := context.WithTimeout(ctx, c.opts.OpenTimeout)
	sess, err := d.Synthesizer.Open(octx)
	cancel()
	if err != nil {
		return &TurnError{Kind: classifyOpen(err), Stage: "synthesis_open", Err: err}
	}
	c.ttsSess = sess

	c.setState(Listening)
	c.log.Info("session started", "user", c.opts.UserID, "voice", c.voice, "history", len(c.history))

	if c.opts.Greeting != "" {
		if err := c.persist(ctx, types.RoleAssistant, c.opts.Greeting); err != nil {
			c.report(&TurnError{Kind: ErrPersistence, Stage: "greeting", Err: err})
			return nil
		}
		c.speak(ctx, c.opts.Greeting)
	}
	return nil
}

func classifyOpen(err error) error {
	switch {
	case errors.Is(err, tts.ErrConfiguration):
		return ErrConfiguration
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}
	return ErrTransport
}

func (c *Controller) loop(ctx context.Context) error {
	for {
		// Pending transcripts always go before audio.
		select {
		case m := <-c.transcripts:
			if err := c.onTranscript(ctx, m); err != nil {
				return err
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.closing:
			return nil
		case <-c.queue.Done():
			return nil
		case m := <-c.transcripts:
			if err := c.onTranscript(ctx, m); err != nil {
				return err
			}
		case r := <-c.playDone:
			c.onPlaybackDone(ctx, r)
		case <-c.queue.Ready():
			if err := c.drainFrames(ctx); err != nil {
				return err
			}
		}
	}
}

// drainFrames consumes every buffered frame. Transcripts that show up in
// between are handled first.
func (c *Controller) drainFrames(ctx context.Context) error {
	for {
		select {
		case m := <-c.transcripts:
			if err := c.onTranscript(ctx, m); err != nil {
				return err
			}
			continue
		default:
		}
		f, ok := c.queue.TryPop()
		if !ok {
			return nil
		}
		c.onFrame(ctx, f)
	}
}

func (c *Controller) onFrame(ctx context.Context, f types.AudioFrame) {
	if c.sttSess != nil {
		if err := c.sttSess.SendAudio(ctx, f); err != nil && !errors.Is(err, stt.ErrClosed) {
			c.log.Debug("send audio failed", "err", err)
		}
	}
	if c.State() != Speaking || c.task == nil {
		return
	}
	// Frames buffered while thinking predate the reply.
	if f.CapturedAt.Before(c.taskStart) {
		return
	}
	isSpeech, _ := c.deps.Gate.Classify(f)
	if c.bargeIn.Observe(f.CapturedAt, isSpeech) {
		if g := c.bargeIn.GuardUntil(); !g.IsZero() && f.CapturedAt.After(g) {
			metricBargeInLatency.Observe(float64(f.CapturedAt.Sub(g).Milliseconds()))
		}
		c.stopSpeaking("speech")
	}
}

func (c *Controller) setState(to State) {
	from := State(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	metricStateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	c.log.Debug("state", "from", from.String(), "to", to.String())
	c.emit("state_changed", map[string]any{"from": from.String(), "to": to.String()})
}

func (c *Controller) emit(typ string, payload map[string]any) {
	if c.deps.Observer == nil {
		return
	}
	c.deps.Observer(types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload})
}

func (c *Controller) report(err error) {
	var te *TurnError
	if !errors.As(err, &te) {
		te = &TurnError{Kind: ErrTransport, Stage: "unknown", Err: err}
	}
	kind := kindName(te.Kind)
	metricTurnErrors.WithLabelValues(kind, te.Stage).Inc()
	c.log.Warn("turn error", "kind", kind, "stage", te.Stage, "err", te.Err)
	payload := map[string]any{"kind": kind, "stage": te.Stage}
	if te.Err != nil {
		payload["error"] = te.Err.Error()
	}
	c.emit("turn_error", payload)
}

func (c *Controller) teardown() {
	if c.task != nil {
		c.task.Cancel()
		c.awaitCancel(c.task)
		c.task = nil
	}
	if c.sttSess != nil {
		_ = c.sttSess.Close()
	}
	if c.ttsSess != nil {
		_ = c.ttsSess.Close()
	}
	c.queue.Close()
	c.setState(Closed)
	c.log.Info("session closed", "dropped_frames", c.queue.Dropped())
}

func (c *Controller) String() string {
	return fmt.Sprintf("controller(room=%s state=%s)", c.opts.Room, c.State())
}
