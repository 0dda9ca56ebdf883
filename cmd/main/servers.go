package main

import (
	"quote-observer/src/config"
	"quote-observer/src/control"
	"quote-observer/src/interfaces"
	"quote-observer/src/logger"
	"quote-observer/src/pipeline"
	"quote-observer/src/server"
	"quote-observer/src/stream"

	"github.com/prometheus/client_golang/prometheus"
)

// runningServers holds whichever status endpoints are enabled.
type runningServers struct {
	status *server.StatusServer
	health *control.HealthServer
}

// -----------------------------------------------------------------------------

// startServers orchestrates the startup of all server components
func startServers(
	conf *config.Config,
	supervisor *stream.Supervisor,
	coordinator *pipeline.Coordinator,
	gatherer prometheus.Gatherer,
	appLogger *logger.Logger,
) *runningServers {
	rs := &runningServers{}

	// 1. HTTP status server and websocket hub
	if conf.Server.Enabled {
		rs.status = server.NewStatusServer(conf.MConfig, supervisor, coordinator, gatherer, appLogger.Named("server"))
		go func() {
			if err := rs.status.Start(); err != nil {
				appLogger.Error("Status server failed: %v", err)
			}
		}()
	}

	// 2. gRPC health
	if conf.Grpc.Enabled {
		rs.health = control.NewHealthServer(conf.Grpc, appLogger.Named("grpc"))
		supervisor.OnTransition(rs.health.OnTransition)
		go func() {
			if err := rs.health.Start(); err != nil {
				appLogger.Error("gRPC health server failed: %v", err)
			}
		}()
	}

	return rs
}

// -----------------------------------------------------------------------------

// sinks returns the servers that consume snapshots.
func (rs *runningServers) sinks() []interfaces.ISnapshotSink {
	if rs.status == nil {
		return nil
	}
	return []interfaces.ISnapshotSink{rs.status}
}

func (rs *runningServers) stop() {
	if rs.status != nil {
		rs.status.Stop()
	}
	if rs.health != nil {
		rs.health.Stop()
	}
}
