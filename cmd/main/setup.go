package main

import (
	"context"
	"time"

	"quote-observer/src/config"
	"quote-observer/src/interfaces"
	"quote-observer/src/logger"
	"quote-observer/src/metrics"
	"quote-observer/src/network"
	"quote-observer/src/pipeline"
	"quote-observer/src/publish"
	"quote-observer/src/storage"
	"quote-observer/src/stream"
	"quote-observer/src/utils"
)

const cleanupInterval = time.Hour

// -----------------------------------------------------------------------------

// setupDatabase opens the snapshot mirror, if configured. On postgres the
// symbol list may reference a table column; it is resolved here, before the
// supervisor reads it.
func setupDatabase(conf *config.Config, appLogger *logger.Logger) (interfaces.IDatabase, error) {
	db, err := storage.Open(conf.Storage, appLogger.Named("storage"))
	if err != nil || db == nil {
		return nil, err
	}

	if pg, ok := db.(*storage.PostgresDB); ok {
		symbols, err := pg.ResolveSymbols(conf.Stream.Symbols)
		if err != nil {
			appLogger.Error("Symbol resolution failed: %v", err)
		}
		if len(symbols) > 0 {
			conf.Stream.Symbols = symbols
		}
	}
	return db, nil
}

// -----------------------------------------------------------------------------

// setupSupervisor wires the websocket dialer, market calendar and metrics
// around the stream supervisor.
func setupSupervisor(conf *config.Config, queue *pipeline.Queue, m *metrics.Metrics, appLogger *logger.Logger) *stream.Supervisor {
	streamLogger := appLogger.Named("stream")

	dialer := network.NewWebsocketDialer(conf.Stream, conf.Network, appLogger.Named("network"))
	supervisor := stream.NewSupervisor(stream.OptionsFromConfig(conf.Stream), dialer, queue, streamLogger)
	supervisor.Scheduler = utils.NewMarketScheduler(conf.Stream.Symbols, streamLogger)

	m.WatchStream(supervisor)
	supervisor.OnTransition(func(t stream.Transition) {
		m.StreamState.Set(float64(t.To))
	})
	return supervisor
}

// -----------------------------------------------------------------------------

// setupSinks builds the optional snapshot consumers: the database mirror
// and the Redis or Kafka publisher.
func setupSinks(ctx context.Context, conf *config.Config, db interfaces.IDatabase, appLogger *logger.Logger) []interfaces.ISnapshotSink {
	var sinks []interfaces.ISnapshotSink

	if db != nil {
		mirror := storage.NewMirror(db, conf.Storage.WriteTimeout, appLogger.Named("storage"))
		go mirror.RunCleanup(ctx, cleanupInterval)
		sinks = append(sinks, mirror)
	}

	pub, err := publish.New(conf.Publish, appLogger.Named("publish"))
	if err != nil {
		appLogger.Error("Snapshot publisher disabled: %v", err)
		return sinks
	}
	if pub == nil {
		return sinks
	}

	if rp, ok := pub.(*publish.RedisPublisher); ok {
		if err := rp.Ping(ctx); err != nil {
			appLogger.Warning("Redis at %s not reachable yet: %v", conf.Publish.RedisAddr, err)
		}
	}
	appLogger.Info("Publishing snapshots via %s", pub.Name())
	return append(sinks, pub)
}
