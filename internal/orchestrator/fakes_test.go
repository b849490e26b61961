package orchestrator

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"parley/agent/internal/rag"
	"parley/agent/internal/store"
	"parley/agent/internal/stt"
	"parley/agent/internal/tts"
	"parley/agent/internal/types"
)

type fakeSTTSession struct {
	events chan types.TranscriptEvent
	fail   chan error
	closed chan struct{}
	once   sync.Once
	sent   atomic.Int32
}

func newFakeSTTSession() *fakeSTTSession {
	return &fakeSTTSession{
		events: make(chan types.TranscriptEvent, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeSTTSession) SendAudio(context.Context, types.AudioFrame) error {
	select {
	case <-s.closed:
		return stt.ErrClosed
	default:
	}
	s.sent.Add(1)
	return nil
}

func (s *fakeSTTSession) NextEvent(ctx context.Context) (types.TranscriptEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.fail:
		return types.TranscriptEvent{}, err
	case <-s.closed:
		return types.TranscriptEvent{}, stt.ErrClosed
	case <-ctx.Done():
		return types.TranscriptEvent{}, ctx.Err()
	}
}

func (s *fakeSTTSession) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSTTSession) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeTranscriber struct {
	mu       sync.Mutex
	sessions []*fakeSTTSession
	openErrs []error // consumed per Open call
}

func (t *fakeTranscriber) Open(context.Context) (stt.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.openErrs) > 0 {
		err := t.openErrs[0]
		t.openErrs = t.openErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	s := newFakeSTTSession()
	t.sessions = append(t.sessions, s)
	return s, nil
}

func (t *fakeTranscriber) last() *fakeSTTSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		return nil
	}
	return t.sessions[len(t.sessions)-1]
}

func (t *fakeTranscriber) opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// synthMode picks how fake synthesis behaves.
type synthMode int

const (
	synthBlock synthMode = iota // one chunk, then wait for cancel
	synthQuick                  // two chunks, then complete
	synthFail                   // fail with a transport error
	synthFrames                 // frames x 20 ms of audio, then complete
)

type fakeSynth struct {
	mode    synthMode
	frames  int
	openErr error

	mu      sync.Mutex
	tasks   []*tts.Task
	live    atomic.Int32
	maxLive atomic.Int32
}

func (f *fakeSynth) Open(context.Context) (tts.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeSynth) Close() error { return nil }

func (f *fakeSynth) Start(ctx context.Context, text, voice string) *tts.Task {
	task := tts.NewTask(ctx, text, voice, f.stream)
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()
	return task
}

func (f *fakeSynth) stream(ctx context.Context, text, voice string, emit func([]byte) error) error {
	n := f.live.Add(1)
	defer f.live.Add(-1)
	for {
		m := f.maxLive.Load()
		if n <= m || f.maxLive.CompareAndSwap(m, n) {
			break
		}
	}
	switch f.mode {
	case synthFail:
		return tts.ErrTransport
	case synthFrames:
		for i := 0; i < f.frames; i++ {
			if err := emit(make([]byte, 640)); err != nil {
				return err
			}
		}
		return nil
	case synthQuick:
		for i := 0; i < 2; i++ {
			if err := emit([]byte{byte(i), 0}); err != nil {
				return err
			}
		}
		return nil
	}
	if err := emit([]byte{1, 0}); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSynth) started() []*tts.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*tts.Task(nil), f.tasks...)
}

type genCall struct {
	history   []types.ConversationTurn
	retrieved string
}

type fakeGen struct {
	reply   string
	err     error
	hang    bool          // wait for ctx
	release chan struct{} // when set, wait for it before replying

	mu    sync.Mutex
	calls []genCall
}

func (g *fakeGen) Generate(ctx context.Context, history []types.ConversationTurn, retrieved, _ string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, genCall{history: history, retrieved: retrieved})
	g.mu.Unlock()
	if g.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.reply, g.err
}

func (g *fakeGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGen) call(i int) genCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[i]
}

// recStore wraps the memory store so tests can count and fail appends.
type recStore struct {
	*store.Memory
	failRole types.Role

	mu      sync.Mutex
	appends []types.ConversationTurn
}

func newRecStore() *recStore { return &recStore{Memory: store.NewMemory()} }

func (s *recStore) Append(ctx context.Context, room string, role types.Role, content string) error {
	if role == s.failRole {
		return errors.New("disk full")
	}
	s.mu.Lock()
	s.appends = append(s.appends, types.ConversationTurn{Role: role, Content: content})
	s.mu.Unlock()
	return s.Memory.Append(ctx, room, role, content)
}

func (s *recStore) appended() []types.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ConversationTurn(nil), s.appends...)
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(context.Context, string, int) ([]rag.Snippet, error) {
	return nil, errors.New("index offline")
}

type fakeSink struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (s *fakeSink) WriteAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	s.chunks = append(s.chunks, pcm)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

type eventLog struct {
	mu     sync.Mutex
	events []types.Event
}

func (l *eventLog) observe(e types.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) has(typ string) bool {
	return len(l.ofType(typ)) > 0
}

func (l *eventLog) ofType(typ string) []types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.Event
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// frame builds 20 ms of 16 kHz PCM at a constant amplitude.
func frame(amp int16, at time.Time) types.AudioFrame {
	pcm := make([]byte, 640)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(amp))
	}
	return types.AudioFrame{PCM: pcm, SampleRate: types.PipelineRate, CapturedAt: at}
}
