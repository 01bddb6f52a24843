package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ClarenceZzz/docpipe/internal/ai"
	"github.com/ClarenceZzz/docpipe/internal/chunker"
	"github.com/ClarenceZzz/docpipe/internal/chunkio"
	"github.com/ClarenceZzz/docpipe/internal/config"
	"github.com/ClarenceZzz/docpipe/internal/embedding"
	"github.com/ClarenceZzz/docpipe/internal/filestore"
	"github.com/ClarenceZzz/docpipe/internal/ingest"
	"github.com/ClarenceZzz/docpipe/internal/job"
	"github.com/ClarenceZzz/docpipe/internal/loader"
	"github.com/ClarenceZzz/docpipe/internal/model"
	"github.com/ClarenceZzz/docpipe/internal/schedule"
	"github.com/ClarenceZzz/docpipe/internal/store"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docpipe",
		Short: "docpipe document ingestion pipeline",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(newChunkCmd(&configPath))
	rootCmd.AddCommand(newLoadCmd(&configPath))
	rootCmd.AddCommand(newIngestCmd(&configPath))
	rootCmd.AddCommand(newWatchCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func newProvider(cfg *config.Config) (ai.IProvider, error) {
	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	return provider, nil
}

func newChunker(cfg *config.Config, provider ai.IProvider) (*chunker.Chunker, error) {
	titler := ai.NewGenerator(provider, cfg.AI.Model)
	return chunker.New(cfg.Chunker, titler, time.Duration(cfg.AI.TimeoutSeconds)*time.Second)
}

func newLoader(cfg *config.Config, db *sql.DB, provider ai.IProvider) (*loader.Loader, error) {
	embedder := ai.NewEmbedder(provider, cfg.AI.EmbedModel, cfg.AI.Dimensions)
	client, err := embedding.NewClient(embedder, embedding.Options{
		Dimensions:  cfg.AI.Dimensions,
		MaxAttempts: cfg.Loader.MaxAttempts,
		RetryDelay:  time.Duration(cfg.Loader.RetryDelayMS) * time.Millisecond,
		Timeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	fs, err := filestore.New(cfg.Loader.DeadLetter)
	if err != nil {
		return nil, fmt.Errorf("init dead letter store: %w", err)
	}
	writer := store.NewChunkRepo(db, cfg.AI.Dimensions)
	return loader.New(client, writer, loader.NewDeadLetterSink(fs), cfg.Loader.BatchSize), nil
}

func openStore(cfg *config.Config) (*sql.DB, error) {
	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := store.ApplyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

func newIngestService(cfg *config.Config, db *sql.DB) (*ingest.Service, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	ck, err := newChunker(cfg, provider)
	if err != nil {
		return nil, err
	}
	ld, err := newLoader(cfg, db, provider)
	if err != nil {
		return nil, err
	}
	return ingest.NewService(ck, ld, store.NewIngestRepo(db)), nil
}

func newChunkCmd(configPath *string) *cobra.Command {
	var input, output, docID, title string
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "split a document into chunks and write them as JSONL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if input == "" || output == "" {
				return fmt.Errorf("--input and --output are required")
			}
			if docID == "" {
				docID = ingest.DocumentIDFromPath(input)
			}
			if title == "" {
				title = docID
			}
			provider, err := newProvider(cfg)
			if err != nil {
				return err
			}
			ck, err := newChunker(cfg, provider)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			ctx := cmd.Context()
			chunks, err := ck.Chunk(ctx, string(raw), docID, model.Metadata{Title: title})
			if err != nil {
				return err
			}
			if err := chunkio.Write(output, chunks); err != nil {
				return err
			}
			logutil.GetLogger(ctx).Info("chunk file written",
				zap.String("output", output), zap.Int("chunks", len(chunks)))
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "path to the source document")
	cmd.Flags().StringVar(&output, "output", "", "path to the output chunk file")
	cmd.Flags().StringVar(&docID, "doc-id", "", "document id (default: derived from the file name)")
	cmd.Flags().StringVar(&title, "title", "", "document title (default: document id)")
	return cmd
}

func newLoadCmd(configPath *string) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "embed a chunk file and persist it into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			chunks, err := chunkio.Read(input)
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			provider, err := newProvider(cfg)
			if err != nil {
				return err
			}
			ld, err := newLoader(cfg, db, provider)
			if err != nil {
				return err
			}
			summary, err := ld.Run(cmd.Context(), chunks)
			if summary != nil {
				logSummary(cmd.Context(), summary)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "path to the chunk file")
	return cmd
}

func newIngestCmd(configPath *string) *cobra.Command {
	var input, docID, title string
	var force bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "run the full pipeline for one document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			svc, err := newIngestService(cfg, db)
			if err != nil {
				return err
			}
			summary, err := svc.IngestFile(cmd.Context(), input, docID, title, force)
			if summary != nil {
				logSummary(cmd.Context(), summary)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "path to the source document")
	cmd.Flags().StringVar(&docID, "doc-id", "", "document id (default: derived from the file name)")
	cmd.Flags().StringVar(&title, "title", "", "document title (default: file name)")
	cmd.Flags().BoolVar(&force, "force", false, "re-ingest even if the content is unchanged")
	return cmd
}

func newWatchCmd(configPath *string) *cobra.Command {
	var dir, cronSpec string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "periodically ingest every document in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if dir == "" {
				return fmt.Errorf("--dir is required")
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			svc, err := newIngestService(cfg, db)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := schedule.NewCronScheduler()
			if err := sched.AddJob(job.NewIngestJob(svc, dir), cronSpec); err != nil {
				return err
			}
			sched.Start(ctx)
			logutil.GetLogger(ctx).Info("watch started",
				zap.String("dir", dir), zap.String("cron", cronSpec))

			<-ctx.Done()
			logutil.GetLogger(context.Background()).Info("watch stopping...")
			sched.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to watch")
	cmd.Flags().StringVar(&cronSpec, "cron", "*/10 * * * *", "cron schedule for the ingest job")
	return cmd
}

func logSummary(ctx context.Context, s *loader.Summary) {
	logutil.GetLogger(ctx).Info("load summary",
		zap.String("document_id", s.DocumentID),
		zap.Int("total", s.Total),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Bool("persisted", s.Persisted),
		zap.Duration("elapsed", s.Elapsed),
	)
}
