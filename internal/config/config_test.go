package config

import (
    "errors"
    "testing"
    "time"
)

func TestLoadDefaults(t *testing.T) {
    for _, k := range []string{"PORT", "LOG_LEVEL", "HISTORY_RELOAD_TURNS", "DEFAULT_VOICE_ID", "AUDIO_QUEUE_CAPACITY", "RAG_BACKEND", "STORE_BACKEND"} {
        t.Setenv(k, "")
    }

    c := Load()

    if c.Server.Port != "8080" {
        t.Fatalf("expected default port 8080, got %q", c.Server.Port)
    }
    if c.Agent.HistoryReloadTurns != 12 {
        t.Fatalf("expected 12 history turns, got %d", c.Agent.HistoryReloadTurns)
    }
    if c.Agent.DefaultVoiceID != "Rachel" {
        t.Fatalf("expected default voice Rachel, got %q", c.Agent.DefaultVoiceID)
    }
    if c.Turn.QueueCapacity != 32 {
        t.Fatalf("expected queue capacity 32, got %d", c.Turn.QueueCapacity)
    }
    if c.Turn.BargeInMinFrames != 3 {
        t.Fatalf("expected 3 barge-in frames, got %d", c.Turn.BargeInMinFrames)
    }
    if c.LLM.MaxTokens != 300 || c.LLM.Timeout != 15*time.Second {
        t.Fatalf("unexpected llm defaults: %+v", c.LLM)
    }
    if c.RAG.TopK != 4 || c.RAG.MaxK != 4 {
        t.Fatalf("unexpected rag defaults: %+v", c.RAG)
    }
    if c.Store.Backend != "badger" {
        t.Fatalf("expected badger store, got %q", c.Store.Backend)
    }
}

func TestLoadEnvOverrides(t *testing.T) {
    t.Setenv("AGENT_VOICE_ID", "forced-voice")
    t.Setenv("BARGEIN_MIN_FRAMES", "5")
    t.Setenv("RAG_BACKEND", "REDIS")

    c := Load()
    if c.Agent.ForcedVoiceID != "forced-voice" {
        t.Fatalf("forced voice not bound: %q", c.Agent.ForcedVoiceID)
    }
    if c.Turn.BargeInMinFrames != 5 {
        t.Fatalf("expected 5, got %d", c.Turn.BargeInMinFrames)
    }
    if c.RAG.Backend != "redis" {
        t.Fatalf("expected lower-cased backend, got %q", c.RAG.Backend)
    }
}

func TestValidate(t *testing.T) {
    var c Config
    err := c.Validate(NeedTranscription, NeedSynthesis)
    if !errors.Is(err, ErrMissingCredential) {
        t.Fatalf("expected missing credential, got %v", err)
    }
    c.Deepgram.APIKey = "dg"
    c.Eleven.APIKey = "el"
    if err := c.Validate(NeedTranscription, NeedSynthesis); err != nil {
        t.Fatalf("unexpected: %v", err)
    }
    c.LLM.Provider = "gemini"
    c.OpenAI.APIKey = "sk"
    if err := c.Validate(NeedGeneration); !errors.Is(err, ErrMissingCredential) {
        t.Fatalf("gemini provider should require GEMINI_API_KEY, got %v", err)
    }
}
