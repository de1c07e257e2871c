// Package app wires configuration into the running pipeline. The HTTP
// server and the CLI share it.
package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"formautofill/browser"
	"formautofill/config"
	"formautofill/coordinator"
	"formautofill/database"
	"formautofill/detector"
	"formautofill/executor"
	"formautofill/mapper"
	"formautofill/middleware"
	"formautofill/oracle"
	"formautofill/store"
	"formautofill/utils"
)

type App struct {
	Config      config.AppConfig
	Logger      *utils.Logger
	KV          store.KV
	Profiles    *store.ProfileStore
	Domains     *store.DomainMappingStore
	Archive     *store.S3Archive // nil when S3 is not configured
	Executor    *executor.Executor
	Coordinator *coordinator.Coordinator
	Sessions    *coordinator.Registry
	Auth        *middleware.JWTService

	mu      sync.Mutex
	browser *browser.Browser
}

// New builds every component described by cfg. The returned App owns the
// storage connection and must be closed.
func New(ctx context.Context, cfg config.AppConfig, logger *utils.Logger) (*App, error) {
	if logger == nil {
		logger = utils.GlobalLogger()
	}

	kv, err := openKV(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider, err := oracle.NewProvider(ctx, oracle.ProviderConfig{
		Name:              cfg.Oracle.Provider,
		AzureEndpoint:     cfg.Oracle.AzureEndpoint,
		AzureAPIKey:       cfg.Oracle.AzureAPIKey,
		HuggingFaceKey:    cfg.Oracle.HuggingFaceKey,
		HuggingFaceModel:  cfg.Oracle.HuggingFaceModel,
		HuggingFaceURL:    cfg.Oracle.HuggingFaceURL,
		GeminiAPIKey:      cfg.Oracle.GeminiAPIKey,
		GeminiModel:       cfg.Oracle.GeminiModel,
		RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
	})
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to create oracle provider: %w", err)
	}
	if provider == nil {
		logger.Info("no oracle provider configured, using heuristics only")
	} else {
		logger.Info("oracle provider ready", map[string]interface{}{"provider": provider.Name()})
	}

	classifier := oracle.NewClassifier(provider, taskOptions(cfg.Oracle.Classification), logger).
		WithCacheTTL(cfg.Oracle.CacheTTL)
	answers := oracle.NewAnswerMatcher(provider, taskOptions(cfg.Oracle.AnswerMatching), logger)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		KV:       kv,
		Profiles: store.NewProfileStore(kv, logger),
		Domains:  store.NewDomainMappingStore(kv),
		Executor: executor.New(logger),
		Auth:     middleware.NewJWTService(cfg.JWTSecret, cfg.OperatorSecretHash),
	}

	if cfg.S3.Bucket != "" {
		archive, err := store.NewS3Archive(store.S3Config{
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			logger.Warn("S3 archive disabled", map[string]interface{}{"error": err.Error()})
		} else {
			a.Archive = archive
		}
	}

	det := detector.New(logger)
	a.Coordinator = coordinator.New(coordinator.Deps{
		Detector:   det,
		Classifier: classifier,
		Mapper:     mapper.New(answers, logger),
		Filler:     a.Executor,
		Profiles:   a.Profiles,
		Domains:    a.Domains,
		Logger:     logger,
	}, coordinator.Options{
		FillTimeout:      cfg.Fill.Timeout,
		HighlightClass:   cfg.Fill.HighlightClass,
		ChallengeMarkers: cfg.Fill.ChallengeMarkers,
		Classify:         true,
	})
	a.Sessions = coordinator.NewRegistry(det, classifier, logger)
	return a, nil
}

func taskOptions(t config.TaskConfig) oracle.TaskOptions {
	return oracle.TaskOptions{
		Enabled:     t.Enabled,
		Temperature: t.Temperature,
		MaxTokens:   t.MaxTokens,
		Timeout:     t.Timeout,
		Threshold:   t.Threshold,
	}
}

func openKV(ctx context.Context, cfg config.AppConfig) (store.KV, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryKV(cfg.Store.MemoryQuota), nil
	case "sqlite", "":
		db, err := database.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		kv, err := store.NewSQLKV(ctx, db, store.DialectSQLite)
		if err != nil {
			db.Close()
			return nil, err
		}
		return kv, nil
	case "postgres":
		d := cfg.Database
		db, err := database.Connect(d.Host, strconv.Itoa(d.Port), d.User, d.Password, d.DBName, d.SSLMode)
		if err != nil {
			return nil, err
		}
		kv, err := store.NewSQLKV(ctx, db, store.DialectPostgres)
		if err != nil {
			db.Close()
			return nil, err
		}
		return kv, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Browser launches the shared headless browser on first use.
func (a *App) Browser() (*browser.Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser != nil {
		return a.browser, nil
	}
	b, err := browser.Launch(browser.Options{Headless: true}, a.Logger)
	if err != nil {
		return nil, err
	}
	a.browser = b
	return b, nil
}

// OpenLive opens url in the browser and registers a session mirroring it.
func (a *App) OpenLive(ctx context.Context, url, activeProfile string) (*coordinator.Session, error) {
	b, err := a.Browser()
	if err != nil {
		return nil, err
	}
	page, err := b.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	s, err := a.Sessions.OpenPage(ctx, page, activeProfile)
	if err != nil {
		_ = page.Close()
		return nil, err
	}
	return s, nil
}

func (a *App) Close() error {
	for _, s := range a.Sessions.List() {
		a.Sessions.Close(s.ID)
	}
	a.mu.Lock()
	b := a.browser
	a.browser = nil
	a.mu.Unlock()
	if b != nil {
		if err := b.Close(); err != nil {
			a.Logger.Warn("browser close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return a.KV.Close()
}
