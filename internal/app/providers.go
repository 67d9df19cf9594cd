package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/api/server"
	"github.com/dmlat/STT-Telegram/internal/api/v1/handlers"
	v1routes "github.com/dmlat/STT-Telegram/internal/api/v1/routes"
	"github.com/dmlat/STT-Telegram/internal/app/analytics"
	"github.com/dmlat/STT-Telegram/internal/app/api"
	"github.com/dmlat/STT-Telegram/internal/app/api/openai"
	"github.com/dmlat/STT-Telegram/internal/app/api/openai/whisper"
	"github.com/dmlat/STT-Telegram/internal/app/archive"
	"github.com/dmlat/STT-Telegram/internal/app/audio"
	"github.com/dmlat/STT-Telegram/internal/app/billing"
	"github.com/dmlat/STT-Telegram/internal/app/filestore"
	"github.com/dmlat/STT-Telegram/internal/app/ledger"
	"github.com/dmlat/STT-Telegram/internal/app/pipeline"
	"github.com/dmlat/STT-Telegram/internal/app/repository"
	"github.com/dmlat/STT-Telegram/internal/app/repository/pg"
	"github.com/dmlat/STT-Telegram/internal/app/repository/sqlite"
	"github.com/dmlat/STT-Telegram/internal/config"
	"github.com/dmlat/STT-Telegram/internal/metrics"
)

// fetchTimeout bounds a single remote audio download.
const fetchTimeout = 2 * time.Minute

// App bundles everything the serve command runs: the HTTP server plus
// the collaborators that need their own lifecycle.
type App struct {
	Config    *config.Config
	Store     repository.Store
	Ledger    *ledger.Ledger
	Pipeline  *pipeline.Pipeline
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Analytics *analytics.Dispatcher

	// Watcher is nil when no payment gateway is configured.
	Watcher *billing.Watcher

	Server *server.Server
}

func provideStore(cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Database.Backend {
	case "postgres":
		store, err := pg.NewPostgresDB(cfg.Database.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		store, err := sqlite.NewSQLiteDB(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}

func provideLedger(cfg *config.Config, store repository.Store, logger *zap.Logger) *ledger.Ledger {
	return ledger.New(store, cfg.Quota.FreeAllowanceSeconds, logger)
}

func provideTranscriber(cfg *config.Config) api.Transcriber {
	client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	return whisper.NewRemoteTranscriber(client)
}

func provideCompressor(cfg *config.Config, logger *zap.Logger) pipeline.Compressor {
	return audio.NewCompressor(cfg.Audio.BitrateKbps, cfg.Audio.Channels, logger)
}

func provideFileStore() filestore.FileStore {
	return filestore.NewAuto(fetchTimeout)
}

func provideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provideMetrics(registry *prometheus.Registry) *metrics.Metrics {
	return metrics.New(registry)
}

// provideDispatcher always hands the pipeline a live dispatcher so the
// shutdown path is uniform; without a workbook it drains into a no-op.
func provideDispatcher(cfg *config.Config, logger *zap.Logger) *analytics.Dispatcher {
	var sink analytics.Sink = analytics.Nop{}
	if cfg.Analytics.Enabled() {
		sink = analytics.NewWorkbook(cfg.Analytics.WorkbookPath, logger)
	}
	return analytics.NewDispatcher(sink, cfg.Analytics.BufferSize, logger)
}

func provideArchiver(cfg *config.Config, logger *zap.Logger) (archive.Archiver, error) {
	if !cfg.Archive.Enabled() {
		return archive.Nop{}, nil
	}
	return archive.NewMinIO(
		cfg.Archive.Endpoint,
		cfg.Archive.AccessKey,
		cfg.Archive.SecretKey,
		cfg.Archive.Bucket,
		cfg.Archive.UseSSL,
		logger,
	)
}

func providePipeline(
	cfg *config.Config,
	store repository.Store,
	quotas *ledger.Ledger,
	transcriber api.Transcriber,
	compressor pipeline.Compressor,
	files filestore.FileStore,
	dispatcher *analytics.Dispatcher,
	archiver archive.Archiver,
	m *metrics.Metrics,
	logger *zap.Logger,
) *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{
		MaxRawSizeBytes:   cfg.Audio.MaxRawSizeBytes,
		TempDir:           cfg.App.TempDir,
		TranscribeTimeout: cfg.Audio.TranscribeTimeout,
	}, pipeline.Deps{
		Ledger:      quotas,
		Users:       store,
		Jobs:        store,
		Files:       files,
		Transcriber: transcriber,
		Compressor:  compressor,
		Analytics:   dispatcher,
		Archive:     archiver,
		Metrics:     m,
		Logger:      logger,
	})
}

func providePricing(cfg *config.Config, logger *zap.Logger) *billing.Pricing {
	if cfg.Payments.TariffsPath == "" {
		return billing.DefaultPricing()
	}
	pricing, err := billing.LoadPricing(cfg.Payments.TariffsPath)
	if err != nil {
		logger.Warn("tariffs file unusable, using built-in pricing",
			zap.String("path", cfg.Payments.TariffsPath),
			zap.Error(err))
		return billing.DefaultPricing()
	}
	return pricing
}

func provideGateway(cfg *config.Config) billing.PaymentGateway {
	if !cfg.Payments.Enabled() {
		return nil
	}
	return billing.NewYooKassa(cfg.Payments.ShopID, cfg.Payments.SecretKey, cfg.Payments.ReturnURL)
}

func provideTransactionStore(store repository.Store, quotas *ledger.Ledger, logger *zap.Logger) *billing.TransactionStore {
	return billing.NewTransactionStore(store, quotas, logger)
}

func provideWatcher(
	txns *billing.TransactionStore,
	gateway billing.PaymentGateway,
	cfg *config.Config,
	logger *zap.Logger,
) *billing.Watcher {
	if gateway == nil {
		return nil
	}
	return billing.NewWatcher(txns, gateway, cfg.Payments.PollInterval, logger)
}

func provideHandlers(
	p *pipeline.Pipeline,
	quotas *ledger.Ledger,
	store repository.Store,
	pricing *billing.Pricing,
	txns *billing.TransactionStore,
	gateway billing.PaymentGateway,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *v1routes.HandlerContainer {
	return &v1routes.HandlerContainer{
		Jobs:     handlers.NewJobsHandler(p, cfg.App.TempDir, logger),
		Users:    handlers.NewUsersHandler(quotas, store),
		Payments: handlers.NewPaymentsHandler(pricing, txns, gateway, m, logger),
	}
}

func provideServer(
	cfg *config.Config,
	container *v1routes.HandlerContainer,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *server.Server {
	// Job requests stay open for the whole pipeline run, so the write
	// timeout tracks the transcription bound instead of a fixed value.
	writeTimeout := time.Duration(0)
	if cfg.Audio.TranscribeTimeout > 0 {
		writeTimeout = cfg.Audio.TranscribeTimeout + 2*time.Minute
	}

	return server.NewServer(server.Config{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  2 * time.Minute,
		Environment:  cfg.App.Env,
	}, container, registry, logger)
}
