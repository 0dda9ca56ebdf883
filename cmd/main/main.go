package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quote-observer/src/analysis"
	"quote-observer/src/config"
	"quote-observer/src/helpers"
	"quote-observer/src/journal"
	"quote-observer/src/logger"
	"quote-observer/src/metrics"
	"quote-observer/src/pipeline"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// -----------------------------------------------------------------------------

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	writeConfig := flag.String("write-config", "", "write the effective config, without the token, to this path and exit")
	flag.Parse()

	// 2. Load config. Nothing starts on a configuration error.
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		var cfgErr *helpers.ConfigurationError
		if errors.As(err, &cfgErr) {
			return 2
		}
		return 1
	}

	if *writeConfig != "" {
		if err := conf.Save(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			return 1
		}
		return 0
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)
	defer appLogger.Sync()

	if limit := helpers.ApplyMemoryLimit(helpers.GetRecommendedMemoryLimit()); limit > 0 {
		appLogger.Info("Memory Limit set to: %d MB", limit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Optional snapshot mirror. May rewrite the symbol list.
	db, err := setupDatabase(conf, appLogger)
	if err != nil {
		appLogger.Error("Snapshot mirror disabled: %v", err)
	}

	// 5. Durable writer
	writer, err := journal.Open(journal.OptionsFromConfig(conf.Journal), appLogger.Named("journal"))
	if err != nil {
		appLogger.Error("Failed to open journal: %v", err)
		return 1
	}
	defer func() {
		if err := writer.Close(); err != nil {
			appLogger.Error("Failed to close journal: %v", err)
		}
	}()

	// 6. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 7. Pipeline
	queue := pipeline.NewQueue(conf.Pipeline.QueueCapacity, pipeline.OverflowPolicy(conf.Pipeline.OverflowPolicy))
	analyzer := analysis.NewAnalyzer(conf.WindowDurations(), appLogger.Named("analyzer"))
	supervisor := setupSupervisor(conf, queue, m, appLogger)

	coordinator := pipeline.NewCoordinator(
		pipeline.Options{
			ShutdownGrace: conf.Pipeline.ShutdownGrace,
			CheckInterval: conf.Analysis.CheckInterval,
		},
		queue, analyzer, writer, supervisor, m, appLogger.Named("pipeline"),
	)

	// 8. Sinks and servers
	sinks := setupSinks(ctx, conf, db, appLogger)
	servers := startServers(conf, supervisor, coordinator, reg, appLogger)
	sinks = append(sinks, servers.sinks()...)
	for _, sink := range sinks {
		coordinator.AddSink(sink)
	}

	// 9. Run until SIGINT/SIGTERM, then drain
	appLogger.Info("Observing %d symbols over windows %v", len(conf.Stream.Symbols), conf.Analysis.Windows)
	if err := coordinator.Run(ctx); err != nil {
		appLogger.Error("Pipeline failed: %v", err)
	}

	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			appLogger.Warning("Closing %s sink: %v", sink.Name(), err)
		}
	}
	servers.stop()

	appLogger.Info("Shutdown complete.")
	return 0
}
