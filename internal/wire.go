package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/threadbox/internal/classifier"
	"github.com/starford/threadbox/internal/ingest"
	"github.com/starford/threadbox/internal/noteservice"
	"github.com/starford/threadbox/internal/persist"
	"github.com/starford/threadbox/internal/search"
	"github.com/starford/threadbox/internal/seed"
	"github.com/starford/threadbox/internal/storage"
	"github.com/starford/threadbox/internal/store"
	"github.com/starford/threadbox/internal/summary"
)

// components is the wired object graph shared by the HTTP and MCP servers.
type components struct {
	db      *persist.DB
	index   *search.Index
	store   *store.Store
	svc     *noteservice.Service
	ingest  *ingest.Ingestor
	watcher *ingest.Watcher
}

// build wires persistence, suppliers, the search index and the store.
// Extra observers are registered after the search index.
func build(ctx context.Context, cfg *Config, logger *slog.Logger, onFile ingest.FileCallback, observers ...store.Observer) (*components, error) {
	c := &components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	snap, err := c.openState(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	cls, err := newClassifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	c.index, err = search.NewMemory(logger)
	if err != nil {
		return nil, fmt.Errorf("init search: %w", err)
	}
	if err := c.index.Rebuild(snap.Notes); err != nil {
		return nil, fmt.Errorf("build search index: %w", err)
	}

	storeOpts := []store.Option{
		store.WithSnapshot(snap),
		store.WithDeletePolicy(cfg.Store.DeletePolicy()),
		store.WithGenerator(newGenerator(cfg)),
		store.WithObserver(func(e store.Event) { c.index.Apply(e, c.store) }),
	}
	if c.db != nil {
		storeOpts = append(storeOpts, store.WithPersister(c.db))
	}
	for _, o := range observers {
		storeOpts = append(storeOpts, store.WithObserver(o))
	}
	c.store, err = store.New(storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	c.ingest = ingest.New(c.store,
		ingest.WithClassifier(cls),
		ingest.WithAutoApprove(cfg.Classifier.AutoApproveThreshold),
		ingest.WithLogger(logger),
	)

	svcOpts := []noteservice.Option{
		noteservice.WithClassifier(cls),
		noteservice.WithIngestor(c.ingest),
		noteservice.WithIndex(c.index),
		noteservice.WithLogger(logger),
	}
	if cfg.Summary.ExportDir != "" {
		exports, err := storage.OpenFS(cfg.Summary.ExportDir)
		if err != nil {
			return nil, fmt.Errorf("init export dir: %w", err)
		}
		svcOpts = append(svcOpts, noteservice.WithExports(exports))
	}
	c.svc = noteservice.New(c.store, svcOpts...)

	if cfg.Ingest.DropDir != "" {
		drop, err := storage.OpenFS(cfg.Ingest.DropDir)
		if err != nil {
			return nil, fmt.Errorf("init drop dir: %w", err)
		}
		c.watcher = ingest.NewWatcher(c.ingest, drop, logger, onFile)
	}

	ok = true
	return c, nil
}

// openState loads the initial snapshot, seeding an empty database when asked.
func (c *components) openState(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Snapshot, error) {
	if !cfg.Database.Persistent() {
		if !cfg.Store.Seed {
			return store.Snapshot{}, nil
		}
		return seed.Load()
	}

	if cfg.Database.Driver == DriverSQLite && !strings.HasPrefix(cfg.Database.DSN, "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return store.Snapshot{}, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := persist.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("init database: %w", err)
	}
	c.db = db

	snap, err := db.Load(ctx)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("load state: %w", err)
	}
	if len(snap.Threads) > 0 || len(snap.Notes) > 0 || !cfg.Store.Seed {
		return snap, nil
	}

	snap, err = seed.Load()
	if err != nil {
		return store.Snapshot{}, err
	}
	if err := db.Import(ctx, snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("import seed: %w", err)
	}
	logger.Info("Seeded empty database",
		slog.Int("threads", len(snap.Threads)),
		slog.Int("notes", len(snap.Notes)))
	return snap, nil
}

func newClassifier(cfg *Config, logger *slog.Logger) (classifier.Classifier, error) {
	switch cfg.Classifier.Mode {
	case ClassifierKeyword:
		return classifier.NewKeyword(cfg.Classifier.MinConfidence), nil
	case ClassifierOpenAI:
		return classifier.NewGPT(classifier.GPTConfig{
			APIKey:        cfg.OpenAI.APIKey,
			BaseURL:       cfg.OpenAI.BaseURL,
			Model:         cfg.OpenAI.Model,
			MaxTokens:     cfg.OpenAI.MaxTokens,
			Temperature:   cfg.OpenAI.Temperature,
			MinConfidence: cfg.Classifier.MinConfidence,
		}, logger)
	default:
		return classifier.None{}, nil
	}
}

func newGenerator(cfg *Config) summary.Generator {
	if cfg.Summary.Generator == GeneratorOpenAI {
		return summary.NewOpenAI(summary.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		})
	}
	return summary.NewTemplate("")
}

// Close releases the search index and the database.
func (c *components) Close() error {
	var errs []error
	if c.index != nil {
		errs = append(errs, c.index.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}
