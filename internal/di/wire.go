//go:build wireinject
// +build wireinject

package di

import (
	"Confluence/pkg/config"
	"Confluence/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideLocation,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideQueue,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Decision pipeline
		ProvideKellySizer,
		ProvideRunner,
		ProvideSynthesizer,
		ProvideKnowledgeStore,
		ProvideRecorder,
		ProvidePublisher,
		ProvideCycleRunner,
		ProvidePipeline,
		ProvideStream,

		// Outcome side
		ProvideScorer,
		ProvideDistiller,
		ProvideReviewer,
		ProvideOutcomeHandler,

		// HTTP and application server
		ProvideReplayEngine,
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
