package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/becomeliminal/bridge-go-sdk/config"
	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/engine"
	"github.com/becomeliminal/bridge-go-sdk/logging"
	"github.com/becomeliminal/bridge-go-sdk/memory"
	"github.com/becomeliminal/bridge-go-sdk/memory/embedder/mock"
	"github.com/becomeliminal/bridge-go-sdk/memory/store/chromem"
	"github.com/becomeliminal/bridge-go-sdk/memory/store/file"
	"github.com/becomeliminal/bridge-go-sdk/memory/store/sqlite"
	"github.com/becomeliminal/bridge-go-sdk/memory/summarizer/anthropic"
	"github.com/becomeliminal/bridge-go-sdk/transport"
)

// app holds everything a command needs, built from configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers []func() error
}

// loadApp reads .env, the config file and builds the logger.
func loadApp(configPath, logLevel string) (*app, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) transport() (transport.Transport, error) {
	api := a.cfg.API
	creds := transport.Credentials{APIKey: api.APIKey, BearerToken: api.BearerToken}

	switch api.Transport {
	case "websocket":
		t, err := transport.NewWebSocket(transport.WebSocketConfig{
			URL:         api.WebSocketURL,
			Credentials: creds,
			Timeout:     api.Timeout,
			Logger:      a.logger,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case "grpc":
		t, err := transport.NewGRPC(transport.GRPCConfig{
			Target:      api.GRPCTarget,
			Service:     api.GRPCService,
			Credentials: creds,
			Timeout:     api.Timeout,
			Logger:      a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(t.Close)
		return t, nil
	default:
		t, err := transport.NewHTTP(transport.HTTPConfig{
			BaseURL:     api.BaseURL,
			Credentials: creds,
			Timeout:     api.Timeout,
			Logger:      a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("api.base_url: %w", err)
		}
		return t, nil
	}
}

func (a *app) storage(ctx context.Context) (memory.Storage, error) {
	mc := a.cfg.Memory
	switch mc.Backend {
	case "sqlite":
		s, err := sqlite.Open(ctx, mc.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.onClose(s.Close)
		return s, nil
	case "none":
		return nil, nil
	default:
		return file.New(mc.Dir), nil
	}
}

// memory builds the Manager, or returns nil when memory is disabled.
func (a *app) memory(ctx context.Context) (*memory.Manager, error) {
	mc := a.cfg.Memory
	if !mc.Enabled {
		return nil, nil
	}

	alg, err := core.ParseSignatureAlgorithm(a.cfg.Bridge.SignatureAlgorithm)
	if err != nil {
		return nil, err
	}

	log := a.logger.Named("memory")
	opts := []memory.Option{memory.WithLogger(log)}

	store, err := a.storage(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, memory.WithStorage(store))
	}

	if mc.Summarizer == "anthropic" {
		opts = append(opts, memory.WithSummarizer(anthropic.NewFromAPIKey(mc.AnthropicAPIKey, anthropic.Config{
			Model:  mc.AnthropicModel,
			Logger: log.Named("summarizer"),
		})))
	}

	if mc.IndexPath != "" {
		idx, err := chromem.New(mock.New(), filepath.Clean(mc.IndexPath), true, chromem.WithLogger(log.Named("index")))
		if err != nil {
			return nil, err
		}
		opts = append(opts, memory.WithIndex(idx))
	}

	return memory.NewManager(ctx, memory.Config{
		Owner:              mc.Owner,
		MaxInteractions:    mc.MaxInteractions,
		MaxSummaries:       mc.MaxSummaries,
		SignatureAlgorithm: alg,
	}, opts...)
}

func (a *app) engine(ctx context.Context, mem *memory.Manager) (*engine.Engine, error) {
	t, err := a.transport()
	if err != nil {
		return nil, err
	}
	alg, err := core.ParseSignatureAlgorithm(a.cfg.Bridge.SignatureAlgorithm)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(a.logger.Named("engine")),
		engine.WithMaxRetries(a.cfg.Bridge.MaxRetries),
		engine.WithAutoRetry(a.cfg.Bridge.AutoRetry),
		engine.WithSignatureAlgorithm(alg),
		engine.WithConcurrency(a.cfg.Bridge.Concurrency),
	}
	if mem != nil {
		opts = append(opts, engine.WithMemory(mem))
	}
	if ttl := a.cfg.Bridge.SchemaCacheTTL; ttl > 0 {
		cache, err := engine.NewSchemaCache(0, ttl)
		if err != nil {
			return nil, err
		}
		a.onClose(func() error { cache.Close(); return nil })
		opts = append(opts, engine.WithSchemaCache(cache))
	}

	e, err := engine.New(t, opts...)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return e, nil
}
