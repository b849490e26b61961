package api

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "golang.org/x/time/rate"

    "parley/agent/internal/auth"
    "parley/agent/internal/config"
    "parley/agent/internal/events"
    "parley/agent/internal/health"
    "parley/agent/internal/logging"
    "parley/agent/internal/sessions"
    "parley/agent/internal/store"
    "parley/agent/internal/types"
)

var logger = logging.New("parley/agent/internal/api")

// Reindexer rebuilds a user's persona index.
type Reindexer func(ctx context.Context, user string) (types.IndexRecord, error)

type Handlers struct {
    cfg      config.Config
    store    store.Store
    events   *events.Store
    sessions *sessions.Store
    checks   []health.Check
    reindex  Reindexer
    limiter  *rate.Limiter
    now      func() time.Time
}

func NewHandlers(cfg config.Config, st store.Store, ev *events.Store, ss *sessions.Store, reindex Reindexer, checks ...health.Check) *Handlers {
    rps := cfg.Room.TokenRPS
    if rps <= 0 {
        rps = 2
    }
    burst := cfg.Room.TokenBurst
    if burst <= 0 {
        burst = 5
    }
    return &Handlers{
        cfg:      cfg,
        store:    st,
        events:   ev,
        sessions: ss,
        checks:   checks,
        reindex:  reindex,
        limiter:  rate.NewLimiter(rate.Limit(rps), burst),
        now:      time.Now,
    }
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}

type tokenRequest struct {
    Identity string `json:"identity"`
    Name     string `json:"name,omitempty"`
    Room     string `json:"room,omitempty"`
}

type tokenResponse struct {
    URL       string    `json:"url"`
    Token     string    `json:"token"`
    Room      string    `json:"room"`
    ExpiresAt time.Time `json:"expires_at"`
}

// HandleToken mints a room token. Without an explicit room the participant
// gets a room named after their identity.
func (h *Handlers) HandleToken(w http.ResponseWriter, r *http.Request) {
    if !h.limiter.Allow() {
        http.Error(w, "too many token requests", http.StatusTooManyRequests)
        return
    }
    var req tokenRequest
    if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
        http.Error(w, "invalid json", http.StatusBadRequest)
        return
    }
    req.Identity = strings.TrimSpace(req.Identity)
    if req.Identity == "" {
        http.Error(w, "identity required", http.StatusBadRequest)
        return
    }
    if h.cfg.Room.TokenSecret == "" {
        http.Error(w, "room tokens not configured", http.StatusServiceUnavailable)
        return
    }
    room := req.Room
    if room == "" {
        room = req.Identity
    }
    ttl := time.Duration(h.cfg.Room.TokenTTLMin) * time.Minute
    if ttl <= 0 {
        ttl = time.Hour
    }
    exp := h.now().Add(ttl)
    tok, err := auth.GenerateRoomToken(h.cfg.Room.TokenSecret, req.Identity, room, exp.Unix())
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    h.events.Append(room, "token_issued", map[string]any{"identity": req.Identity})
    writeJSON(w, http.StatusOK, tokenResponse{
        URL:       joinURL(h.cfg.Room.PublicURL, room),
        Token:     tok,
        Room:      room,
        ExpiresAt: time.Unix(exp.Unix(), 0).UTC(),
    })
}

func joinURL(base, room string) string {
    sep := "?"
    if strings.Contains(base, "?") {
        sep = "&"
    }
    return base + sep + "room=" + url.QueryEscape(room)
}

func (h *Handlers) HandleListRooms(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]any{"rooms": h.sessions.List()})
}

func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request, room string) {
    limit := h.cfg.Agent.HistoryReloadTurns
    if v := r.URL.Query().Get("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 0 {
            http.Error(w, "invalid limit", http.StatusBadRequest)
            return
        }
        limit = n
    }
    turns, err := h.store.LoadHistory(r.Context(), room, limit)
    if err != nil {
        logger.Error("load history failed", "room", room, "err", err)
        http.Error(w, "history unavailable", http.StatusInternalServerError)
        return
    }
    if turns == nil {
        turns = []types.ConversationTurn{}
    }
    writeJSON(w, http.StatusOK, map[string]any{"room": room, "turns": turns})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, room string) {
    writeJSON(w, http.StatusOK, map[string]any{
        "room":   room,
        "events": h.events.List(room),
    })
}

func (h *Handlers) provider(p string) string {
    if p != "" {
        return p
    }
    if h.cfg.Agent.VoiceProvider != "" {
        return h.cfg.Agent.VoiceProvider
    }
    return "elevenlabs"
}

func (h *Handlers) HandleGetVoice(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    user := q.Get("user_id")
    if user == "" {
        http.Error(w, "user_id required", http.StatusBadRequest)
        return
    }
    p, err := h.store.GetVoice(r.Context(), user, h.provider(q.Get("provider")))
    if errors.Is(err, store.ErrNotFound) {
        http.NotFound(w, r)
        return
    }
    if err != nil {
        http.Error(w, "voice lookup failed", http.StatusInternalServerError)
        return
    }
    writeJSON(w, http.StatusOK, p)
}

// HandleSetVoice is the voice-provisioning hook: whatever creates a clone
// reports its id and readiness here.
func (h *Handlers) HandleSetVoice(w http.ResponseWriter, r *http.Request) {
    var p types.VoiceProfile
    if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&p); err != nil {
        http.Error(w, "invalid json", http.StatusBadRequest)
        return
    }
    if p.UserID == "" || p.VoiceID == "" {
        http.Error(w, "user_id and voice_id required", http.StatusBadRequest)
        return
    }
    p.Provider = h.provider(p.Provider)
    switch p.Status {
    case "":
        p.Status = types.VoiceReady
    case types.VoiceReady, types.VoicePending, types.VoiceFailed:
    default:
        http.Error(w, "invalid status", http.StatusBadRequest)
        return
    }
    if err := h.store.SetVoice(r.Context(), p); err != nil {
        http.Error(w, "voice update failed", http.StatusInternalServerError)
        return
    }
    writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) HandleReindex(w http.ResponseWriter, r *http.Request) {
    if h.reindex == nil {
        http.Error(w, "reindex not configured", http.StatusNotImplemented)
        return
    }
    user := r.URL.Query().Get("user_id")
    rec, err := h.reindex(r.Context(), user)
    if err != nil {
        logger.Error("reindex failed", "user", user, "err", err)
        http.Error(w, "reindex failed", http.StatusBadGateway)
        return
    }
    if err := h.store.RecordIndex(r.Context(), rec); err != nil {
        logger.Warn("index log write failed", "user", rec.UserID, "err", err)
    }
    writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) HandleLastIndex(w http.ResponseWriter, r *http.Request) {
    user := r.URL.Query().Get("user_id")
    if user == "" {
        user = "default"
    }
    rec, err := h.store.LastIndex(r.Context(), user)
    if errors.Is(err, store.ErrNotFound) {
        http.NotFound(w, r)
        return
    }
    if err != nil {
        http.Error(w, "index lookup failed", http.StatusInternalServerError)
        return
    }
    writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
    defer cancel()
    st := health.CheckAll(ctx, h.checks...)
    code := http.StatusOK
    if !st.OK {
        code = http.StatusServiceUnavailable
    }
    writeJSON(w, code, st)
}
