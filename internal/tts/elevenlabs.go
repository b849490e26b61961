package tts

import (
    "context"
    "encoding/base64"
    "encoding/json"
    "fmt"
    "net/http"
    "net/url"
    "strings"
    "time"

    "nhooyr.io/websocket"

    "parley/agent/internal/audio"
    "parley/agent/internal/types"
)

type ElevenConfig struct {
    APIKey     string
    BaseURL    string
    Model      string
    Stability  float64
    Similarity float64
    SampleRate int
}

// Synthesizer opens synthesis sessions.
type Synthesizer interface {
    Open(ctx context.Context) (Session, error)
}

// Session starts tasks for one conversation.
type Session interface {
    Start(ctx context.Context, text, voice string) *Task
    Close() error
}

type ElevenLabs struct {
    cfg ElevenConfig
}

func NewElevenLabs(cfg ElevenConfig) *ElevenLabs {
    if cfg.BaseURL == "" {
        cfg.BaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
    }
    if cfg.Model == "" {
        cfg.Model = "eleven_multilingual_v2"
    }
    if cfg.SampleRate == 0 {
        cfg.SampleRate = types.PipelineRate
    }
    return &ElevenLabs{cfg: cfg}
}

// Open checks the configuration. Each Start dials its own stream-input
// socket so a cancelled task never leaks audio into the next one.
func (e *ElevenLabs) Open(ctx context.Context) (Session, error) {
    if e.cfg.APIKey == "" {
        return nil, fmt.Errorf("%w: missing ELEVENLABS_API_KEY", ErrConfiguration)
    }
    return &elevenSession{cfg: e.cfg}, nil
}

type elevenSession struct {
    cfg ElevenConfig
}

func (s *elevenSession) Start(ctx context.Context, text, voice string) *Task {
    return NewTask(ctx, text, voice, s.stream)
}

func (s *elevenSession) Close() error { return nil }

func (s *elevenSession) endpoint(voice string) string {
    q := url.Values{}
    q.Set("model_id", s.cfg.Model)
    q.Set("output_format", fmt.Sprintf("pcm_%d", s.cfg.SampleRate))
    return strings.TrimRight(s.cfg.BaseURL, "/") + "/" + url.PathEscape(voice) + "/stream-input?" + q.Encode()
}

type voiceSettings struct {
    Stability       float64 `json:"stability"`
    SimilarityBoost float64 `json:"similarity_boost"`
}

type inputMessage struct {
    Text          string         `json:"text"`
    VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
    Flush         bool           `json:"flush,omitempty"`
}

type outputMessage struct {
    Audio   *string `json:"audio"`
    IsFinal bool    `json:"isFinal"`
    Message string  `json:"message"`
    Error   string  `json:"error"`
}

func (s *elevenSession) stream(ctx context.Context, text, voice string, emit func([]byte) error) error {
    ctx, span := tracer.Start(ctx, "tts.stream")
    defer span.End()

    start := time.Now()
    hdr := make(http.Header)
    hdr.Set("xi-api-key", s.cfg.APIKey)
    dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    ws, _, err := websocket.Dial(dctx, s.endpoint(voice), &websocket.DialOptions{HTTPHeader: hdr})
    cancel()
    if err != nil {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        span.RecordError(err)
        return fmt.Errorf("%w: dial: %v", ErrTransport, err)
    }
    defer ws.Close(websocket.StatusNormalClosure, "done")
    ws.SetReadLimit(1 << 22)

    msgs := []inputMessage{
        {Text: " ", VoiceSettings: &voiceSettings{Stability: s.cfg.Stability, SimilarityBoost: s.cfg.Similarity}},
        {Text: text + " ", Flush: true},
        {Text: ""},
    }
    for _, m := range msgs {
        b, _ := json.Marshal(m)
        if err := ws.Write(ctx, websocket.MessageText, b); err != nil {
            if ctx.Err() != nil {
                return ctx.Err()
            }
            return fmt.Errorf("%w: write: %v", ErrTransport, err)
        }
    }

    frameBytes := audio.FrameBytes(s.cfg.SampleRate, 20)
    first := true
    for {
        _, data, err := ws.Read(ctx)
        if err != nil {
            if ctx.Err() != nil {
                return ctx.Err()
            }
            var ce websocket.CloseError
            if asCloseError(err, &ce) && ce.Code == websocket.StatusNormalClosure {
                return nil
            }
            return fmt.Errorf("%w: read: %v", ErrTransport, err)
        }
        var out outputMessage
        if err := json.Unmarshal(data, &out); err != nil {
            logger.Warn("elevenlabs decode", "error", err)
            continue
        }
        if out.Error != "" {
            return fmt.Errorf("%w: provider: %s %s", ErrTransport, out.Error, out.Message)
        }
        if out.Audio != nil && *out.Audio != "" {
            pcm, err := base64.StdEncoding.DecodeString(*out.Audio)
            if err != nil {
                logger.Warn("elevenlabs audio decode", "error", err)
                continue
            }
            if first {
                first = false
                ttsFirstFrameMS.Observe(float64(time.Since(start).Milliseconds()))
            }
            for _, f := range audio.Split(pcm, frameBytes) {
                if err := emit(f); err != nil {
                    return err
                }
            }
        }
        if out.IsFinal {
            ttsTotalDurationMS.Observe(float64(time.Since(start).Milliseconds()))
            return nil
        }
    }
}
