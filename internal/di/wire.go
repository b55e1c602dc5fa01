//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideSQLDB,
	ProvideSQLStore,
	ProvideClickHouseClient,
	ProvideCHStore,
	ProvideRedisClient,
	ProvideCache,
)

var forecastSet = wire.NewSet(
	ProvidePriceStore,
	ProvideForecastStore,
	ProvideForecastReader,
	ProvideForecastPublisher,
	ProvideModelFactory,
	ProvideEngine,
	ProvideReclaimer,
	ProvideBatchPredictor,
)

// InitializeApp wires the API process: read API, refresh queue and scheduled batch.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		forecastSet,
		ProvideQueue,
		ProvidePredictions,
		ProvideHTTPServer,
		ProvideScheduler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializePredictor wires a one-shot batch run.
func InitializePredictor(cfg *config.Config) (*PredictCLI, func(), error) {
	wire.Build(
		infraSet,
		forecastSet,
		wire.Struct(new(PredictCLI), "*"),
	)
	return nil, nil, nil
}

// InitializeSync wires the market-data sync.
func InitializeSync(cfg *config.Config) (*SyncCLI, func(), error) {
	wire.Build(
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideRegistry,
		ProvideSQLDB,
		ProvideSQLStore,
		ProvideFinnhubClient,
		ProvideMarketSync,
		wire.Struct(new(SyncCLI), "*"),
	)
	return nil, nil, nil
}
