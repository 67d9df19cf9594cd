//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/config"
)

// InitializeApp assembles the serving graph from configuration. Rerun
// `wire ./internal/app` after changing the provider set.
func InitializeApp(cfg *config.Config, logger *zap.Logger) (*App, func(), error) {
	wire.Build(
		provideStore,
		provideLedger,
		provideTranscriber,
		provideCompressor,
		provideFileStore,
		provideRegistry,
		provideMetrics,
		provideDispatcher,
		provideArchiver,
		providePipeline,
		providePricing,
		provideGateway,
		provideTransactionStore,
		provideWatcher,
		provideHandlers,
		provideServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
