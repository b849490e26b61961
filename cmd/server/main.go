package main

import (
    "context"
    "errors"
    "fmt"
    "log"
    "net"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/redis/go-redis/v9"
    "golang.org/x/sync/errgroup"
    "google.golang.org/grpc"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"

    "parley/agent/internal/api"
    "parley/agent/internal/config"
    "parley/agent/internal/events"
    hc "parley/agent/internal/health"
    "parley/agent/internal/llm"
    "parley/agent/internal/logging"
    "parley/agent/internal/orchestrator"
    "parley/agent/internal/rag"
    "parley/agent/internal/room"
    "parley/agent/internal/sessions"
    "parley/agent/internal/store"
    "parley/agent/internal/stt"
    "parley/agent/internal/tts"
    "parley/agent/internal/types"
    "parley/agent/internal/voice"
)

var logger = logging.New("parley/agent/cmd/server")

func main() {
    // Load .env file if present (ignored if missing)
    _ = godotenv.Load()

    cfg := config.Load()
    logging.Setup(cfg.Server.LogLevel)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if err := run(ctx, cfg); err != nil {
        log.Printf("server error: %v", err)
        os.Exit(1)
    }
}

func run(ctx context.Context, cfg config.Config) error {
    st, err := store.Open(ctx, cfg)
    if err != nil {
        return fmt.Errorf("open store: %w", err)
    }
    defer st.Close()

    var rdb *redis.Client
    if cfg.RAG.Backend == "redis" {
        rdb = rag.NewRedisClient(cfg)
        defer rdb.Close()
    }
    emb := rag.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel, 0)

    ev := events.NewStore(0)
    ss := sessions.NewStore()
    reg := room.NewRegistry()

    factory, err := newSessionFactory(ctx, cfg, st, emb, rdb)
    if err != nil {
        return err
    }
    reindex := func(ctx context.Context, user string) (types.IndexRecord, error) {
        return rag.Reindex(ctx, cfg, emb, rdb, user)
    }

    checks := []hc.Check{
        hc.Ping("store", st),
        hc.Deepgram(nil, "", cfg.Deepgram.APIKey),
        hc.ElevenLabs(nil, "", cfg.Eleven.APIKey),
        hc.Credential("room_tokens", "ROOM_TOKEN_SECRET", cfg.Room.TokenSecret),
    }
    h := api.NewHandlers(cfg, st, ev, ss, reindex, checks...)

    mux := http.NewServeMux()
    mux.Handle("/", api.NewRouter(h))
    mux.HandleFunc("/ws/room", room.NewServer(cfg, reg, ss, ev, factory).HandleRoomWS)
    mux.Handle("/metrics", promhttp.Handler())

    addr := ":" + cfg.Server.Port
    srv := &http.Server{
        Addr:              addr,
        Handler:           api.LogMiddleware(mux),
        ReadHeaderTimeout: 5 * time.Second,
        BaseContext:       func(net.Listener) context.Context { return ctx },
    }

    // gRPC health for orchestrators that probe over gRPC, with keepalive
    // for fast death detection.
    gs := grpc.NewServer(
        grpc.KeepaliveParams(keepalive.ServerParameters{
            MaxConnectionIdle: 2 * time.Minute,
            Time:              30 * time.Second,
            Timeout:           10 * time.Second,
        }),
        grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
            MinTime:             10 * time.Second,
            PermitWithoutStream: true,
        }),
    )
    hs := health.NewServer()
    healthpb.RegisterHealthServer(gs, hs)

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error {
        log.Printf("server starting on %s", addr)
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            return err
        }
        return nil
    })
    g.Go(func() error {
        l, err := net.Listen("tcp", cfg.GRPC.Addr)
        if err != nil {
            return fmt.Errorf("grpc listen: %w", err)
        }
        hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
        log.Printf("grpc health listening on %s", cfg.GRPC.Addr)
        return gs.Serve(l)
    })
    g.Go(func() error {
        <-gctx.Done()
        log.Printf("shutdown signal received; stopping server...")
        hs.Shutdown()
        sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        if n := reg.CloseAll("server shutting down"); n > 0 {
            log.Printf("closed %d live rooms", n)
        }
        err := srv.Shutdown(sctx)
        gs.GracefulStop()
        return err
    })
    err = g.Wait()
    log.Printf("server stopped")
    return err
}

// newSessionFactory builds one controller per room connection. Provider
// clients are shared; retrievers are per user.
func newSessionFactory(ctx context.Context, cfg config.Config, st store.Store, emb rag.Embedder, rdb *redis.Client) (room.SessionFactory, error) {
    gen, err := llm.New(ctx, cfg)
    if err != nil {
        return nil, fmt.Errorf("llm: %w", err)
    }
    transcriber := stt.NewDeepgram(stt.DGConfig{
        Model:         cfg.Deepgram.Model,
        Language:      cfg.Deepgram.Language,
        EndpointingMs: cfg.Deepgram.EndpointingMs,
        UtterEndMs:    cfg.Deepgram.UtteranceEnd,
        BaseURL:       cfg.Deepgram.URL,
        SampleRate:    types.PipelineRate,
        DialTimeout:   cfg.Deepgram.DialTimeout,
    }, cfg.Deepgram.APIKey)
    synth := tts.NewElevenLabs(tts.ElevenConfig{
        APIKey:     cfg.Eleven.APIKey,
        BaseURL:    cfg.Eleven.URL,
        Model:      cfg.Eleven.Model,
        Stability:  cfg.Eleven.Stability,
        Similarity: cfg.Eleven.Similarity,
        SampleRate: types.PipelineRate,
    })
    voices := voice.NewResolver(st, cfg.Agent.VoiceProvider, cfg.Agent.ForcedVoiceID, cfg.Agent.DefaultVoiceID)

    return func(ctx context.Context, roomName, userID string, sink orchestrator.Sink, observe func(types.Event)) (*orchestrator.Controller, error) {
        if err := cfg.Validate(config.NeedTranscription, config.NeedSynthesis, config.NeedGeneration); err != nil {
            return nil, fmt.Errorf("%w: %w", orchestrator.ErrConfiguration, err)
        }
        retriever, err := rag.New(ctx, cfg, userID, emb, rdb)
        if err != nil {
            logger.Warn("persona index unavailable, answering without context", "user", userID, "err", err)
            retriever = rag.Empty{}
        }
        return orchestrator.New(orchestrator.OptionsFromConfig(cfg, roomName, userID), orchestrator.Deps{
            Transcriber: transcriber,
            Synthesizer: synth,
            Retriever:   retriever,
            Generator:   gen,
            Store:       st,
            Voices:      voices,
            Sink:        sink,
            Observer:    observe,
        }), nil
    }, nil
}
