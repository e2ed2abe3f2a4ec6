// Package main implements the answerd CLI: a document QA service with
// ingestion, querying, and serving commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/config"
	"github.com/fyrsmithlabs/answerd/internal/embeddings"
	"github.com/fyrsmithlabs/answerd/internal/extract"
	"github.com/fyrsmithlabs/answerd/internal/httpapi"
	"github.com/fyrsmithlabs/answerd/internal/llm"
	"github.com/fyrsmithlabs/answerd/internal/logging"
	"github.com/fyrsmithlabs/answerd/internal/pipeline"
	"github.com/fyrsmithlabs/answerd/internal/reranker"
	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "answerd",
	Short:   "Question answering over your PDF documents",
	Long:    "answerd indexes PDF documents into per-document vector collections and answers questions over all of them with cited sources.",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/answerd/config.yaml)")
	rootCmd.AddCommand(serveCmd, indexCmd, askCmd, listCmd, deleteCmd)
	askCmd.Flags().Int("top-k", 0, "number of chunks to retrieve (default from config)")
}

// setup loads config, builds the logger and the pipeline service. withChat
// controls whether the LLM client is constructed; commands that never call
// the model should not demand an API key.
func setup(withChat bool) (*config.Config, *zap.Logger, *pipeline.Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}

	embedder, err := embeddings.NewService(cfg.Embeddings, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating embedder: %w", err)
	}
	cached, err := embeddings.NewCachingProvider(embedder, cfg.Cache, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	store, err := vectorstore.NewStore(cfg.VectorStore, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating vector store: %w", err)
	}
	searcher := vectorstore.NewSearcher(store, cfg.Searcher, logger)

	var rr reranker.Reranker
	if cfg.Pipeline.RerankEnabled {
		rr = reranker.NewCrossEncoder(cfg.Reranker, logger)
	}

	var chat llm.ChatClient
	if withChat {
		chat, err = llm.NewGroqClient(cfg.LLM, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating llm client: %w", err)
		}
	}

	extractor := extract.NewHTTPExtractor(cfg.Extractor, logger)

	service, err := pipeline.NewService(cfg.Pipeline, extractor, cached, store, searcher, rr, chat, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, service, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, service, err := setup(true)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		server, err := httpapi.NewServer(service, cfg.Server, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <file.pdf> [more.pdf ...]",
	Short: "Index one or more PDF documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, service, err := setup(false)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			result, err := service.Index(cmd.Context(), data, filepath.Base(path))
			if err != nil {
				return fmt.Errorf("indexing %s: %w", path, err)
			}
			fmt.Printf("indexed %s into %s (%d chunks)\n", path, result.Collection, result.ChunkCount)
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question over all indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, service, err := setup(true)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		topK, err := cmd.Flags().GetInt("top-k")
		if err != nil {
			return err
		}
		answer, err := service.Answer(cmd.Context(), args[0], nil, topK)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, service, err := setup(false)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		docs, err := service.ListDocuments(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("no documents indexed")
			return nil
		}
		for _, doc := range docs {
			fmt.Printf("%s\t%s\t%d chunks\n", doc.Collection, doc.DisplayName, doc.ChunkCount)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an indexed document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, service, err := setup(false)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		deleted, err := service.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Printf("no document named %s\n", args[0])
			return nil
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}
