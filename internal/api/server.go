// Package api exposes the HTTP surface: market data, screening snapshots,
// the paper-trading engine and a websocket event stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"altcoin-screener/config"
	"altcoin-screener/internal/binance"
	"altcoin-screener/internal/cache"
	"altcoin-screener/internal/database"
	"altcoin-screener/internal/events"
	"altcoin-screener/internal/marketdata"
	"altcoin-screener/internal/screener"
	"altcoin-screener/internal/simtrading"
	"altcoin-screener/internal/tsdb"
)

// RateLimiter is a small in-memory sliding-window limiter keyed by client IP.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server is the HTTP API server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         config.ServerConfig
	client      *binance.Client
	provider    *marketdata.Provider
	store       *tsdb.Store
	db          *database.DB
	repo        *database.Repository
	screener    *screener.Screener
	engine      *simtrading.Engine
	hotCache    *cache.Service
	bus         *events.Bus
	hub         *WSHub
	rateLimiter *RateLimiter
	log         zerolog.Logger

	screenMu sync.Mutex
}

func NewServer(cfg config.ServerConfig, client *binance.Client, provider *marketdata.Provider,
	store *tsdb.Store, db *database.DB, repo *database.Repository, scr *screener.Screener,
	engine *simtrading.Engine, hotCache *cache.Service, bus *events.Bus, logger zerolog.Logger) *Server {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		cfg:         cfg,
		client:      client,
		provider:    provider,
		store:       store,
		db:          db,
		repo:        repo,
		screener:    scr,
		engine:      engine,
		hotCache:    hotCache,
		bus:         bus,
		rateLimiter: NewRateLimiter(120, time.Minute),
		log:         logger.With().Str("component", "api").Logger(),
	}

	s.hub = NewWSHub(logger)
	go s.hub.Run()
	bus.SubscribeAll(func(event events.Event) {
		s.hub.BroadcastEvent(event)
	})

	s.setupRoutes()
	return s
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"detail": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.GET("/health", s.handleHealth)
		api.GET("/symbols", s.handleGetSymbols)
		api.GET("/market-overview", s.handleGetMarketOverview)

		api.GET("/screening/results", s.handleGetScreeningResults)
		api.POST("/screening/run", s.handleRunScreening)
		api.GET("/screening/top", s.handleGetTopOpportunities)
		api.GET("/screening/history", s.handleGetScreeningHistory)

		api.GET("/klines/:symbol", s.handleGetKlines)
		api.GET("/indicators/:symbol", s.handleGetIndicators)

		sim := api.Group("/sim")
		{
			sim.POST("/accounts", s.handleCreateAccount)
			sim.GET("/accounts", s.handleListAccounts)
			sim.GET("/accounts/:id", s.handleGetAccount)
			sim.PUT("/accounts/:id", s.handleUpdateAccount)
			sim.DELETE("/accounts/:id", s.handleDeleteAccount)
			sim.GET("/accounts/:id/summary", s.handleGetAccountSummary)
			sim.GET("/accounts/:id/positions", s.handleListPositions)
			sim.GET("/accounts/:id/trades", s.handleListTrades)
			sim.GET("/accounts/:id/logs", s.handleListAutoTradeLogs)
			sim.POST("/accounts/:id/positions", s.handleOpenPosition)
			sim.POST("/accounts/:id/check-exits", s.handleCheckExits)
			sim.POST("/accounts/:id/auto-trade", s.handleAutoTrade)
			sim.POST("/positions/:id/close", s.handleClosePosition)
		}

		api.GET("/notifications/settings", s.handleGetNotificationSettings)
		api.PUT("/notifications/settings", s.handleUpdateNotificationSettings)

		api.GET("/alerts", s.handleListAlerts)
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("http server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("error starting server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func errorDetail(c *gin.Context, status int, format string, args ...interface{}) {
	c.JSON(status, gin.H{"detail": fmt.Sprintf(format, args...)})
}
