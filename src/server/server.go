package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"quote-observer/src/interfaces"
	"quote-observer/src/logger"
	"quote-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StreamStatus is the read side of the stream supervisor.
type StreamStatus interface {
	Status() models.MStreamStatus
}

// PipelineView is the read side of the pipeline coordinator.
type PipelineView interface {
	Stats() models.MPipelineMetrics
	LatestData() models.MLatestData
}

var (
	_ interfaces.IDataExchanger = (*StatusServer)(nil)
	_ interfaces.ISnapshotSink  = (*StatusServer)(nil)
)

// -----------------------------------------------------------------------------
// StatusServer
// -----------------------------------------------------------------------------

type StatusServer struct {
	Config  models.MServerConfig
	Symbols []string
	Windows []string
	Logger  *logger.Logger

	engine     *gin.Engine
	httpServer *http.Server
	stream     StreamStatus
	pipeline   PipelineView
	gatherer   prometheus.Gatherer

	// WebSocket clients, owned by the hub goroutine
	clients     map[*Client]struct{}
	clientCount atomic.Int64
	broadcast   chan *models.MLatestData
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	stopped     atomic.Bool
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewStatusServer(
	cfg *models.MConfig,
	stream StreamStatus,
	pipeline PipelineView,
	gatherer prometheus.Gatherer,
	log *logger.Logger,
) *StatusServer {
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &StatusServer{
		Config:   cfg.Server,
		Symbols:  cfg.Stream.Symbols,
		Windows:  cfg.Analysis.Windows,
		Logger:   log,
		engine:   gin.New(),
		stream:   stream,
		pipeline: pipeline,
		gatherer: gatherer,
		clients:  make(map[*Client]struct{}),
		// Absorbs bursts of window closes across many symbols
		broadcast:  make(chan *models.MLatestData, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *StatusServer) setupRoutes() {
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/metrics", s.getMetrics)
	s.engine.GET("/api/config", s.getConfig)

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the routes, for tests.
func (s *StatusServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and serves HTTP until Stop is called.
func (s *StatusServer) Start() error {
	s.StartHub()

	s.Logger.Info("Starting status server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartHub runs only the websocket hub. Start calls it.
func (s *StatusServer) StartHub() {
	go s.handleWebsockets()
}

// -----------------------------------------------------------------------------

func (s *StatusServer) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	close(s.done)
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *StatusServer) getHealth(c *gin.Context) {
	status := s.stream.Status()
	latest := s.pipeline.LatestData()

	health := "ok"
	if status.State != "streaming" {
		health = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        health,
		"stream":        status,
		"connections":   s.clientCount.Load(),
		"latest_update": latestSnapshotTime(latest.Snapshots),
	})
}

// -----------------------------------------------------------------------------

func (s *StatusServer) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.Stats())
}

// -----------------------------------------------------------------------------

func (s *StatusServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"symbols": s.Symbols,
		"windows": s.Windows,
	})
}
