// Package room is the participant-facing audio transport. A participant
// connects one websocket per room, streams PCM16 mono up as binary
// messages and receives synthesized PCM back the same way.
package room

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    ws "nhooyr.io/websocket"

    "parley/agent/internal/audio"
    "parley/agent/internal/auth"
    "parley/agent/internal/config"
    "parley/agent/internal/events"
    "parley/agent/internal/logging"
    "parley/agent/internal/orchestrator"
    "parley/agent/internal/sessions"
    "parley/agent/internal/types"
)

var logger = logging.New("parley/agent/internal/room")

// Message is a text frame in either direction. Clients may send "hangup";
// the server sends "state_changed" and "turn_error" notices.
type Message struct {
    Type    string         `json:"type"`
    TsMs    int64          `json:"ts_ms"`
    Payload map[string]any `json:"payload,omitempty"`
}

// SessionFactory builds the turn controller for a newly admitted participant.
type SessionFactory func(ctx context.Context, room, userID string, sink orchestrator.Sink, observe func(types.Event)) (*orchestrator.Controller, error)

type Server struct {
    Cfg        config.Config
    Reg        *Registry
    Sessions   *sessions.Store
    Events     *events.Store
    NewSession SessionFactory
}

func NewServer(cfg config.Config, reg *Registry, ss *sessions.Store, ev *events.Store, f SessionFactory) *Server {
    return &Server{Cfg: cfg, Reg: reg, Sessions: ss, Events: ev, NewSession: f}
}

type connSink struct{ c *ws.Conn }

func (s connSink) WriteAudio(ctx context.Context, pcm []byte) error {
    if err := s.c.Write(ctx, ws.MessageBinary, pcm); err != nil {
        return err
    }
    metricFramesOut.Inc()
    return nil
}

func (s *Server) reject(w http.ResponseWriter, reason, msg string, code int) {
    metricRejects.WithLabelValues(reason).Inc()
    http.Error(w, msg, code)
}

func bearer(r *http.Request) string {
    if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
        return strings.TrimPrefix(authz, "Bearer ")
    }
    return r.URL.Query().Get("token")
}

// HandleRoomWS admits a participant and runs their session until either
// side hangs up.
func (s *Server) HandleRoomWS(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    token := bearer(r)
    if token == "" {
        s.reject(w, "no_token", "missing bearer token", http.StatusUnauthorized)
        return
    }
    if s.Cfg.Room.TokenSecret == "" {
        s.reject(w, "no_secret", "room auth not configured", http.StatusUnauthorized)
        return
    }
    room := q.Get("room")
    claims, err := auth.ValidateForRoom(s.Cfg.Room.TokenSecret, token, room, time.Now(), s.Cfg.Room.TokenSkew)
    if err != nil {
        s.reject(w, "bad_token", "invalid token", http.StatusUnauthorized)
        return
    }
    if room == "" {
        room = claims.Room
    }
    if room == "" {
        s.reject(w, "no_room", "missing room", http.StatusBadRequest)
        return
    }
    rate := s.Cfg.Room.InputRate
    if v := q.Get("sample_rate"); v != "" {
        rate, err = strconv.Atoi(v)
        if err != nil || rate <= 0 {
            s.reject(w, "bad_rate", "invalid sample_rate", http.StatusBadRequest)
            return
        }
    }
    if rate <= 0 {
        rate = types.PipelineRate
    }
    rs, err := audio.NewResampler(rate, types.PipelineRate)
    if err != nil {
        s.reject(w, "bad_rate", err.Error(), http.StatusBadRequest)
        return
    }

    c, err := ws.Accept(w, r, nil)
    if err != nil {
        logger.Warn("ws accept failed", "err", err)
        return
    }
    metricConnections.Inc()
    defer metricConnections.Dec()

    ctx, cancel := context.WithCancel(r.Context())
    defer cancel()
    log := logger.With("room", room, "identity", claims.Identity)

    observe := func(e types.Event) {
        s.Events.Observe(room, e)
        if e.Type == "state_changed" || e.Type == "turn_error" {
            wctx, wcancel := context.WithTimeout(ctx, time.Second)
            _ = writeJSON(wctx, c, Message{Type: e.Type, TsMs: e.Ts.UnixMilli(), Payload: e.Payload})
            wcancel()
        }
    }
    ctrl, err := s.NewSession(ctx, room, claims.Identity, connSink{c}, observe)
    if err != nil {
        log.Error("session setup failed", "err", err)
        _ = c.Close(ws.StatusInternalError, "session setup failed")
        return
    }

    sess := s.Sessions.Create(room, claims.Identity, func() string { return ctrl.State().String() })
    if prev := s.Sessions.Put(sess); prev != nil {
        s.Events.Append(room, "session_replaced", map[string]any{"previous": prev.ID})
    }
    s.Reg.Replace(room, c)
    s.Events.Append(room, "participant_connected", map[string]any{"session": sess.ID, "identity": claims.Identity, "sample_rate": rate})

    done := make(chan error, 1)
    go func() {
        done <- ctrl.Run(ctx)
        cancel()
    }()

    reason := s.readLoop(ctx, c, ctrl, rs)
    ctrl.Close()
    runErr := <-done

    s.Reg.Remove(room, c)
    s.Sessions.Remove(sess)
    payload := map[string]any{"session": sess.ID, "reason": reason, "dropped_frames": ctrl.Queue().Dropped()}
    if runErr != nil {
        payload["error"] = runErr.Error()
    }
    s.Events.Append(room, "participant_disconnected", payload)
    _ = c.Close(ws.StatusNormalClosure, "done")
    log.Info("participant disconnected", "reason", reason, "err", runErr)
}

func (s *Server) readLoop(ctx context.Context, c *ws.Conn, ctrl *orchestrator.Controller, rs *audio.Resampler) string {
    q := ctrl.Queue()
    for {
        typ, data, err := c.Read(ctx)
        if err != nil {
            var ce ws.CloseError
            if errors.As(err, &ce) {
                return "closed"
            }
            if ctx.Err() != nil {
                return "session_ended"
            }
            return "read_error"
        }
        switch typ {
        case ws.MessageBinary:
            metricFramesIn.Inc()
            f, err := rs.Process(types.AudioFrame{PCM: data, SampleRate: rs.InRate(), CapturedAt: time.Now()})
            if err != nil {
                logger.Debug("resample failed", "err", err)
                continue
            }
            if len(f.PCM) > 0 {
                q.Push(f)
            }
        case ws.MessageText:
            var m Message
            if err := json.Unmarshal(data, &m); err != nil {
                continue
            }
            if m.Type == "hangup" {
                return "hangup"
            }
        }
    }
}

func writeJSON(ctx context.Context, c *ws.Conn, v any) error {
    b, err := json.Marshal(v)
    if err != nil {
        return err
    }
    return c.Write(ctx, ws.MessageText, b)
}
