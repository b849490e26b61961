package stt

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "net/http"
    "net/url"
    "sync"
    "time"

    api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
    "nhooyr.io/websocket"

    "parley/agent/internal/types"
)

type DGConfig struct {
    Model         string
    Language      string
    EndpointingMs int
    UtterEndMs    int
    BaseURL       string
    SampleRate    int
    DialTimeout   time.Duration
}

// Deepgram opens live listen sessions. A small circuit breaker spans
// sessions: three failed dials within a minute refuse new opens for 30s.
type Deepgram struct {
    cfg    DGConfig
    apiKey string
    url    string

    mu      sync.Mutex
    fails   []time.Time
    circuit time.Time
    now     func() time.Time
}

func NewDeepgram(cfg DGConfig, apiKey string) *Deepgram {
    q := url.Values{}
    q.Set("model", orDefault(cfg.Model, "nova-2"))
    q.Set("language", orDefault(cfg.Language, "en-US"))
    q.Set("punctuate", "true")
    q.Set("smart_format", "true")
    q.Set("endpointing", fmt.Sprintf("%d", nzd(cfg.EndpointingMs, 300)))
    q.Set("interim_results", "true")
    q.Set("utterance_end_ms", fmt.Sprintf("%d", nzd(cfg.UtterEndMs, 1000)))
    q.Set("vad_events", "true")
    q.Set("encoding", "linear16")
    q.Set("sample_rate", fmt.Sprintf("%d", nzd(cfg.SampleRate, types.PipelineRate)))
    q.Set("channels", "1")
    base := cfg.BaseURL
    if base == "" {
        base = "wss://api.deepgram.com/v1/listen"
    }
    return &Deepgram{cfg: cfg, apiKey: apiKey, url: base + "?" + q.Encode(), now: time.Now}
}

// URL is the listen endpoint including query parameters.
func (d *Deepgram) URL() string { return d.url }

func (d *Deepgram) Open(ctx context.Context) (Session, error) {
    ctx, span := tracer.Start(ctx, "stt.open")
    defer span.End()
    if d.circuitOpen() {
        span.RecordError(ErrCircuitOpen)
        return nil, ErrCircuitOpen
    }
    hdr := make(http.Header)
    if d.apiKey != "" {
        hdr.Set("Authorization", "Token "+d.apiKey)
    }
    timeout := d.cfg.DialTimeout
    if timeout <= 0 {
        timeout = 10 * time.Second
    }
    dctx, cancel := context.WithTimeout(ctx, timeout)
    defer cancel()

    start := time.Now()
    ws, _, err := websocket.Dial(dctx, d.url, &websocket.DialOptions{HTTPHeader: hdr})
    if err != nil {
        d.addFailure()
        span.RecordError(err)
        logger.Warn("deepgram connect failed", "error", err)
        return nil, fmt.Errorf("%w: dial: %v", ErrTransport, err)
    }
    d.resetFailures()
    ms := time.Since(start).Milliseconds()
    metricConnectMS.Observe(float64(ms))
    logger.Info("deepgram connected", "ms", ms)

    return newDGSession(ws), nil
}

func (d *Deepgram) circuitOpen() bool {
    d.mu.Lock()
    defer d.mu.Unlock()
    return d.now().Before(d.circuit)
}

func (d *Deepgram) addFailure() {
    d.mu.Lock()
    defer d.mu.Unlock()
    now := d.now()
    d.fails = append(d.fails, now)
    cutoff := now.Add(-60 * time.Second)
    j := 0
    for _, t := range d.fails {
        if t.After(cutoff) {
            d.fails[j] = t
            j++
        }
    }
    d.fails = d.fails[:j]
    if len(d.fails) >= 3 {
        d.circuit = now.Add(30 * time.Second)
        d.fails = nil
        metricCircuitOpens.Inc()
    }
}

func (d *Deepgram) resetFailures() {
    d.mu.Lock()
    d.fails = nil
    d.mu.Unlock()
}

type dgSession struct {
    ctx    context.Context
    cancel context.CancelFunc
    ws     *websocket.Conn

    sendQ  chan []byte
    events chan types.TranscriptEvent

    errMu sync.Mutex
    err   error

    closeOnce sync.Once
    log       *slog.Logger
}

func newDGSession(ws *websocket.Conn) *dgSession {
    ctx, cancel := context.WithCancel(context.Background())
    s := &dgSession{
        ctx:    ctx,
        cancel: cancel,
        ws:     ws,
        sendQ:  make(chan []byte, 16),
        events: make(chan types.TranscriptEvent, 64),
        log:    logger,
    }
    gaugeSessions.Inc()
    go s.writeLoop()
    go s.readLoop()
    return s
}

// SendAudio queues a frame for the provider. A congested send queue drops
// the frame rather than stalling the caller.
func (s *dgSession) SendAudio(ctx context.Context, f types.AudioFrame) error {
    if err := s.failure(); err != nil {
        return err
    }
    select {
    case s.sendQ <- f.PCM:
        metricAudioBytes.Add(float64(len(f.PCM)))
        metricFrames.Inc()
    default:
        metricDrops.Inc()
    }
    gaugeQueueDepth.Set(float64(len(s.sendQ)))
    return nil
}

func (s *dgSession) NextEvent(ctx context.Context) (types.TranscriptEvent, error) {
    select {
    case ev, ok := <-s.events:
        if !ok {
            return types.TranscriptEvent{}, s.failure()
        }
        return ev, nil
    case <-ctx.Done():
        return types.TranscriptEvent{}, ctx.Err()
    }
}

// Close asks the provider to flush, then tears the socket down.
func (s *dgSession) Close() error {
    s.closeOnce.Do(func() {
        s.setErr(ErrClosed)
        msg, _ := json.Marshal(struct {
            Type string `json:"type"`
        }{Type: string(api.TypeCloseStreamResponse)})
        wctx, cancel := context.WithTimeout(context.Background(), time.Second)
        _ = s.ws.Write(wctx, websocket.MessageText, msg)
        cancel()
        s.cancel()
        _ = s.ws.Close(websocket.StatusNormalClosure, "bye")
        gaugeSessions.Dec()
    })
    return nil
}

func (s *dgSession) writeLoop() {
    for {
        select {
        case <-s.ctx.Done():
            return
        case b := <-s.sendQ:
            if len(b) == 0 {
                continue
            }
            wctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
            err := s.ws.Write(wctx, websocket.MessageBinary, b)
            cancel()
            if err != nil {
                s.fail(fmt.Errorf("%w: write: %v", ErrTransport, err))
                return
            }
        }
    }
}

func (s *dgSession) readLoop() {
    defer close(s.events)
    var p parser
    for {
        _, data, err := s.ws.Read(s.ctx)
        if err != nil {
            s.fail(fmt.Errorf("%w: read: %v", ErrTransport, err))
            return
        }
        if len(data) == 0 {
            continue
        }
        evs, perr := p.handle(data)
        if perr != nil {
            s.log.Warn("deepgram message", "error", perr)
            continue
        }
        for _, ev := range evs {
            select {
            case s.events <- ev:
            case <-s.ctx.Done():
                return
            }
        }
    }
}

// fail records the first terminal error and stops the writer.
func (s *dgSession) fail(err error) {
    s.setErr(err)
    s.cancel()
}

func (s *dgSession) setErr(err error) {
    s.errMu.Lock()
    if s.err == nil {
        s.err = err
    }
    s.errMu.Unlock()
}

func (s *dgSession) failure() error {
    s.errMu.Lock()
    defer s.errMu.Unlock()
    if s.err != nil && !errors.Is(s.err, ErrClosed) && !errors.Is(s.err, ErrTransport) {
        return fmt.Errorf("%w: %v", ErrTransport, s.err)
    }
    return s.err
}

func orDefault(s, def string) string { if s == "" { return def }; return s }
func nzd(v, def int) int { if v == 0 { return def }; return v }
