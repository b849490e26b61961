package config

import (
    "errors"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/spf13/viper"
)

// ErrMissingCredential is returned by Validate when a required setting is empty.
var ErrMissingCredential = errors.New("config: missing required credential")

type Config struct {
    Server struct {
        Port     string
        LogLevel string
    }
    Room struct {
        PublicURL   string
        TokenSecret string
        TokenTTLMin int
        TokenSkew   time.Duration
        InputRate   int
        TokenRPS    float64
        TokenBurst  int
    }
    Deepgram struct {
        APIKey        string
        URL           string
        Model         string
        Language      string
        EndpointingMs int
        UtteranceEnd  int
        DialTimeout   time.Duration
    }
    Eleven struct {
        APIKey     string
        URL        string
        Model      string
        Stability  float64
        Similarity float64
    }
    OpenAI struct {
        APIKey         string
        BaseURL        string
        Model          string
        EmbeddingModel string
    }
    Gemini struct {
        APIKey string
        Model  string
    }
    LLM struct {
        Provider    string
        MaxTokens   int
        Temperature float64
        Timeout     time.Duration
    }
    Agent struct {
        SystemPrompt       string
        Greeting           string
        VoiceProvider      string
        ForcedVoiceID      string
        DefaultVoiceID     string
        HistoryReloadTurns int
        DefaultUser        string
    }
    Turn struct {
        QueueCapacity    int
        BargeInMinFrames int
        BargeInGuard     time.Duration
        CancelGrace      time.Duration
        OpenTimeout      time.Duration
        PlaybackLead     time.Duration
    }
    VAD struct {
        MinRMS    float64
        Threshold float64
    }
    RAG struct {
        Backend    string
        IndexDir   string
        PersonaDir string
        TopK       int
        MaxK       int
        Timeout    time.Duration
        RedisIndex string
        Dimensions int
    }
    Store struct {
        Backend   string
        DSN       string
        BadgerDir string
    }
    Redis struct {
        Addr     string
        Password string
        DB       int
        Prefix   string
    }
    GRPC struct {
        Addr string
    }
}

func Load() Config {
    v := viper.New()
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    // Defaults
    v.SetDefault("server.port", 8080)
    v.SetDefault("server.log_level", "info")

    v.SetDefault("room.public_url", "ws://localhost:8080/ws/room")
    v.SetDefault("room.token_ttl_min", 60)
    v.SetDefault("room.token_skew", "30s")
    v.SetDefault("room.input_rate", 48000)
    v.SetDefault("room.token_rps", 2.0)
    v.SetDefault("room.token_burst", 5)

    v.SetDefault("deepgram.url", "wss://api.deepgram.com/v1/listen")
    v.SetDefault("deepgram.model", "nova-2")
    v.SetDefault("deepgram.language", "en-US")
    v.SetDefault("deepgram.endpointing_ms", 300)
    v.SetDefault("deepgram.utterance_end_ms", 1000)
    v.SetDefault("deepgram.dial_timeout", "5s")

    v.SetDefault("elevenlabs.url", "wss://api.elevenlabs.io/v1/text-to-speech")
    v.SetDefault("elevenlabs.model", "eleven_multilingual_v2")
    v.SetDefault("elevenlabs.stability", 0.4)
    v.SetDefault("elevenlabs.similarity", 0.7)

    v.SetDefault("openai.model", "gpt-4o-mini")
    v.SetDefault("openai.embedding_model", "text-embedding-3-small")
    v.SetDefault("gemini.model", "gemini-2.0-flash")

    v.SetDefault("llm.provider", "openai")
    v.SetDefault("llm.max_tokens", 300)
    v.SetDefault("llm.temperature", 0.6)
    v.SetDefault("llm.timeout", "15s")

    v.SetDefault("agent.system_prompt", "You are a helpful, concise voice agent.")
    v.SetDefault("agent.greeting", "Hello! I'm ready. Start speaking whenever you like.")
    v.SetDefault("agent.voice_provider", "elevenlabs")
    v.SetDefault("agent.default_voice_id", "Rachel")
    v.SetDefault("agent.history_reload_turns", 12)
    v.SetDefault("agent.default_user", "default")

    v.SetDefault("turn.queue_capacity", 32)
    v.SetDefault("turn.bargein_min_frames", 3)
    v.SetDefault("turn.bargein_guard", "300ms")
    v.SetDefault("turn.cancel_grace", "300ms")
    v.SetDefault("turn.open_timeout", "10s")
    v.SetDefault("turn.playback_lead", "60ms")

    v.SetDefault("vad.min_rms", 1200.0)
    v.SetDefault("vad.threshold", 0.5)

    v.SetDefault("rag.backend", "flat")
    v.SetDefault("rag.index_dir", "data/indexes")
    v.SetDefault("rag.persona_dir", "data/persona")
    v.SetDefault("rag.top_k", 4)
    v.SetDefault("rag.max_k", 4)
    v.SetDefault("rag.timeout", "3s")
    v.SetDefault("rag.redis_index", "persona")
    v.SetDefault("rag.dimensions", 1536)

    v.SetDefault("store.backend", "badger")
    v.SetDefault("store.badger_dir", "data/memory.badger")

    v.SetDefault("redis.addr", "localhost:6379")
    v.SetDefault("redis.prefix", "parley")

    v.SetDefault("grpc.addr", ":9090")

    // Map envs
    v.BindEnv("server.port", "PORT")
    v.BindEnv("server.log_level", "LOG_LEVEL")

    v.BindEnv("room.public_url", "ROOM_PUBLIC_URL")
    v.BindEnv("room.token_secret", "ROOM_TOKEN_SECRET")
    v.BindEnv("room.token_ttl_min", "ROOM_TOKEN_TTL_MIN")
    v.BindEnv("room.input_rate", "ROOM_INPUT_RATE")

    v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
    v.BindEnv("deepgram.url", "DEEPGRAM_WS_URL")
    v.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
    v.BindEnv("deepgram.language", "DEEPGRAM_LANGUAGE")
    v.BindEnv("deepgram.endpointing_ms", "DEEPGRAM_ENDPOINTING_MS")
    v.BindEnv("deepgram.utterance_end_ms", "DEEPGRAM_UTTERANCE_END_MS")

    v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
    v.BindEnv("elevenlabs.model", "ELEVENLABS_MODEL")

    v.BindEnv("openai.api_key", "OPENAI_API_KEY")
    v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
    v.BindEnv("openai.model", "OPENAI_MODEL")
    v.BindEnv("openai.embedding_model", "EMBEDDING_MODEL")
    v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
    v.BindEnv("gemini.model", "GEMINI_MODEL")

    v.BindEnv("llm.provider", "LLM_PROVIDER")
    v.BindEnv("llm.max_tokens", "LLM_MAX_TOKENS")
    v.BindEnv("llm.temperature", "LLM_TEMPERATURE")
    v.BindEnv("llm.timeout", "LLM_TIMEOUT")

    v.BindEnv("agent.system_prompt", "AGENT_SYSTEM_PROMPT")
    v.BindEnv("agent.greeting", "AGENT_GREETING")
    v.BindEnv("agent.voice_provider", "VOICE_PROVIDER")
    v.BindEnv("agent.voice_id", "AGENT_VOICE_ID")
    v.BindEnv("agent.default_voice_id", "DEFAULT_VOICE_ID")
    v.BindEnv("agent.history_reload_turns", "HISTORY_RELOAD_TURNS")

    v.BindEnv("turn.queue_capacity", "AUDIO_QUEUE_CAPACITY")
    v.BindEnv("turn.bargein_min_frames", "BARGEIN_MIN_FRAMES")
    v.BindEnv("turn.bargein_guard", "BARGEIN_GUARD")
    v.BindEnv("turn.cancel_grace", "CANCEL_GRACE")
    v.BindEnv("turn.playback_lead", "PLAYBACK_LEAD")

    v.BindEnv("vad.min_rms", "VAD_MIN_RMS")
    v.BindEnv("vad.threshold", "VAD_THRESHOLD")

    v.BindEnv("rag.backend", "RAG_BACKEND")
    v.BindEnv("rag.index_dir", "RAG_INDEX_DIR")
    v.BindEnv("rag.persona_dir", "PERSONA_DIR")
    v.BindEnv("rag.top_k", "RAG_TOP_K")

    v.BindEnv("store.backend", "STORE_BACKEND")
    v.BindEnv("store.dsn", "DB_URL")
    v.BindEnv("store.badger_dir", "BADGER_DIR")

    v.BindEnv("redis.addr", "REDIS_ADDR")
    v.BindEnv("redis.password", "REDIS_PASSWORD")
    v.BindEnv("redis.db", "REDIS_DB")

    v.BindEnv("grpc.addr", "GRPC_ADDR")

    if f := v.GetString("config_file"); f != "" {
        v.SetConfigFile(f)
        if err := v.ReadInConfig(); err != nil {
            log.Printf("config: read %s: %v", f, err)
        }
    }

    var c Config
    c.Server.Port = toString(v.Get("server.port"))
    c.Server.LogLevel = v.GetString("server.log_level")

    c.Room.PublicURL = v.GetString("room.public_url")
    c.Room.TokenSecret = v.GetString("room.token_secret")
    c.Room.TokenTTLMin = v.GetInt("room.token_ttl_min")
    c.Room.TokenSkew = v.GetDuration("room.token_skew")
    c.Room.InputRate = v.GetInt("room.input_rate")
    c.Room.TokenRPS = v.GetFloat64("room.token_rps")
    c.Room.TokenBurst = v.GetInt("room.token_burst")

    c.Deepgram.APIKey = v.GetString("deepgram.api_key")
    c.Deepgram.URL = v.GetString("deepgram.url")
    c.Deepgram.Model = v.GetString("deepgram.model")
    c.Deepgram.Language = v.GetString("deepgram.language")
    c.Deepgram.EndpointingMs = v.GetInt("deepgram.endpointing_ms")
    c.Deepgram.UtteranceEnd = v.GetInt("deepgram.utterance_end_ms")
    c.Deepgram.DialTimeout = v.GetDuration("deepgram.dial_timeout")

    c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
    c.Eleven.URL = v.GetString("elevenlabs.url")
    c.Eleven.Model = v.GetString("elevenlabs.model")
    c.Eleven.Stability = v.GetFloat64("elevenlabs.stability")
    c.Eleven.Similarity = v.GetFloat64("elevenlabs.similarity")

    c.OpenAI.APIKey = v.GetString("openai.api_key")
    c.OpenAI.BaseURL = v.GetString("openai.base_url")
    c.OpenAI.Model = v.GetString("openai.model")
    c.OpenAI.EmbeddingModel = v.GetString("openai.embedding_model")
    c.Gemini.APIKey = v.GetString("gemini.api_key")
    c.Gemini.Model = v.GetString("gemini.model")

    c.LLM.Provider = strings.ToLower(v.GetString("llm.provider"))
    c.LLM.MaxTokens = v.GetInt("llm.max_tokens")
    c.LLM.Temperature = v.GetFloat64("llm.temperature")
    c.LLM.Timeout = v.GetDuration("llm.timeout")

    c.Agent.SystemPrompt = v.GetString("agent.system_prompt")
    c.Agent.Greeting = v.GetString("agent.greeting")
    c.Agent.VoiceProvider = v.GetString("agent.voice_provider")
    c.Agent.ForcedVoiceID = v.GetString("agent.voice_id")
    c.Agent.DefaultVoiceID = v.GetString("agent.default_voice_id")
    c.Agent.HistoryReloadTurns = v.GetInt("agent.history_reload_turns")
    c.Agent.DefaultUser = v.GetString("agent.default_user")

    c.Turn.QueueCapacity = v.GetInt("turn.queue_capacity")
    c.Turn.BargeInMinFrames = v.GetInt("turn.bargein_min_frames")
    c.Turn.BargeInGuard = v.GetDuration("turn.bargein_guard")
    c.Turn.CancelGrace = v.GetDuration("turn.cancel_grace")
    c.Turn.OpenTimeout = v.GetDuration("turn.open_timeout")
    c.Turn.PlaybackLead = v.GetDuration("turn.playback_lead")

    c.VAD.MinRMS = v.GetFloat64("vad.min_rms")
    c.VAD.Threshold = v.GetFloat64("vad.threshold")

    c.RAG.Backend = strings.ToLower(v.GetString("rag.backend"))
    c.RAG.IndexDir = v.GetString("rag.index_dir")
    c.RAG.PersonaDir = v.GetString("rag.persona_dir")
    c.RAG.TopK = v.GetInt("rag.top_k")
    c.RAG.MaxK = v.GetInt("rag.max_k")
    c.RAG.Timeout = v.GetDuration("rag.timeout")
    c.RAG.RedisIndex = v.GetString("rag.redis_index")
    c.RAG.Dimensions = v.GetInt("rag.dimensions")

    c.Store.Backend = strings.ToLower(v.GetString("store.backend"))
    c.Store.DSN = v.GetString("store.dsn")
    c.Store.BadgerDir = v.GetString("store.badger_dir")

    c.Redis.Addr = v.GetString("redis.addr")
    c.Redis.Password = v.GetString("redis.password")
    c.Redis.DB = v.GetInt("redis.db")
    c.Redis.Prefix = v.GetString("redis.prefix")

    c.GRPC.Addr = v.GetString("grpc.addr")

    log.Printf("config loaded: port=%s store=%s rag=%s llm=%s", c.Server.Port, c.Store.Backend, c.RAG.Backend, c.LLM.Provider)
    return c
}

// Requirement names a setting a caller cannot run without.
type Requirement int

const (
    NeedTranscription Requirement = iota
    NeedSynthesis
    NeedGeneration
    NeedEmbeddings
    NeedRoomSecret
)

// Validate checks that the credentials behind each requirement are present.
func (c Config) Validate(reqs ...Requirement) error {
    var missing []string
    for _, r := range reqs {
        switch r {
        case NeedTranscription:
            if c.Deepgram.APIKey == "" {
                missing = append(missing, "DEEPGRAM_API_KEY")
            }
        case NeedSynthesis:
            if c.Eleven.APIKey == "" {
                missing = append(missing, "ELEVENLABS_API_KEY")
            }
        case NeedGeneration:
            if c.LLM.Provider == "gemini" {
                if c.Gemini.APIKey == "" {
                    missing = append(missing, "GEMINI_API_KEY")
                }
            } else if c.OpenAI.APIKey == "" {
                missing = append(missing, "OPENAI_API_KEY")
            }
        case NeedEmbeddings:
            if c.OpenAI.APIKey == "" {
                missing = append(missing, "OPENAI_API_KEY")
            }
        case NeedRoomSecret:
            if c.Room.TokenSecret == "" {
                missing = append(missing, "ROOM_TOKEN_SECRET")
            }
        }
    }
    if len(missing) > 0 {
        return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
    }
    return nil
}

func toString(v any) string { return fmt.Sprint(v) }
