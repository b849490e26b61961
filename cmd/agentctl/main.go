// Command agentctl administers persona indexes, voice profiles and stored
// conversations for the agent server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"parley/agent/internal/config"
	"parley/agent/internal/logging"
	"parley/agent/internal/rag"
	"parley/agent/internal/store"
)

// app carries what every subcommand needs. Tests swap the embedder.
type app struct {
	cfg config.Config
	emb rag.Embedder
	out io.Writer
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, a.cfg)
}

func (a *app) redisClient() *redis.Client {
	if a.cfg.RAG.Backend != "redis" {
		return nil
	}
	return rag.NewRedisClient(a.cfg)
}

func (a *app) embedder() rag.Embedder {
	if a.emb != nil {
		return a.emb
	}
	return rag.NewOpenAIEmbedder(a.cfg.OpenAI.APIKey, a.cfg.OpenAI.BaseURL, a.cfg.OpenAI.EmbeddingModel, 0)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "agentctl",
		Short:         "Administer the voice agent's stores and persona indexes",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(a.out)
	root.AddCommand(newIndexCmd(a), newVoiceCmd(a), newHistoryCmd(a), newCheckCmd(a))
	return root
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Setup(cfg.Server.LogLevel)

	a := &app{cfg: cfg, out: os.Stdout}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentctl:", err)
		os.Exit(1)
	}
}
