package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"altcoin-screener/internal/binance"
	"altcoin-screener/internal/cache"
	"altcoin-screener/internal/database"
	"altcoin-screener/internal/indicator"
	"altcoin-screener/internal/tsdb"
)

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbHealthy := s.db.Pool.Ping(ctx) == nil
	tsdbHealthy := s.store.Pool.Ping(ctx) == nil

	status := "healthy"
	code := http.StatusOK
	if !dbHealthy || !tsdbHealthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	hits, misses := s.client.CacheStats()
	body := gin.H{
		"status":    status,
		"database":  dbHealthy,
		"timescale": tsdbHealthy,
		"cache":     gin.H{"hits": hits, "misses": misses},
	}
	if s.hotCache != nil {
		body["redis"] = s.hotCache.GetStats()
	}
	c.JSON(code, body)
}

func (s *Server) handleGetSymbols(c *gin.Context) {
	symbols, err := s.client.GetSpotSymbols(c.Request.Context())
	if err != nil {
		errorDetail(c, http.StatusBadGateway, "error loading symbols: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols, "count": len(symbols)})
}

func (s *Server) handleGetMarketOverview(c *gin.Context) {
	ctx := c.Request.Context()

	if s.hotCache != nil {
		var cached binance.MarketOverview
		if err := s.hotCache.GetJSON(ctx, cache.KeyMarketOverview, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	overview, err := s.client.GetMarketOverview(ctx)
	if err != nil {
		errorDetail(c, http.StatusBadGateway, "error loading market overview: %v", err)
		return
	}

	if s.hotCache != nil {
		if err := s.hotCache.SetJSON(ctx, cache.KeyMarketOverview, overview, cache.MarketOverviewTTL); err != nil {
			s.log.Debug().Err(err).Msg("market overview cache write skipped")
		}
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) handleGetScreeningResults(c *gin.Context) {
	timeframe := c.DefaultQuery("timeframe", tsdb.BaseTimeframe)
	if !tsdb.ValidTimeframe(timeframe) {
		errorDetail(c, http.StatusBadRequest, "unsupported timeframe %q", timeframe)
		return
	}
	minScore := queryFloat(c, "min_score", 0)
	limit := queryInt(c, "limit", 50)

	if s.hotCache != nil {
		var cached []database.ScreeningResult
		if err := s.hotCache.GetJSON(c.Request.Context(), cache.TopResultsKey(timeframe), &cached); err == nil {
			results := filterLeaderboard(cached, minScore, limit)
			c.JSON(http.StatusOK, gin.H{"timeframe": timeframe, "results": results, "count": len(results)})
			return
		}
	}

	results, err := s.repo.GetScreeningResults(c.Request.Context(), timeframe, minScore, limit)
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error loading screening results: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeframe": timeframe, "results": results, "count": len(results)})
}

// filterLeaderboard applies the request's score floor and limit to a cached
// leaderboard, which is already sorted by total score descending.
func filterLeaderboard(results []database.ScreeningResult, minScore float64, limit int) []database.ScreeningResult {
	out := make([]database.ScreeningResult, 0, len(results))
	for _, r := range results {
		if r.TotalScore < minScore {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// handleRunScreening runs an on-demand pass. Only one manual pass runs at a
// time; concurrent requests get a 409.
func (s *Server) handleRunScreening(c *gin.Context) {
	var req struct {
		Timeframe string `json:"timeframe"`
	}
	// An empty body is fine; it means the default timeframe.
	_ = c.ShouldBindJSON(&req)
	if req.Timeframe == "" {
		req.Timeframe = tsdb.BaseTimeframe
	}
	if !tsdb.ValidTimeframe(req.Timeframe) {
		errorDetail(c, http.StatusBadRequest, "unsupported timeframe %q", req.Timeframe)
		return
	}

	if !s.screenMu.TryLock() {
		errorDetail(c, http.StatusConflict, "a screening pass is already running")
		return
	}
	defer s.screenMu.Unlock()

	results, err := s.screener.Screen(c.Request.Context(), req.Timeframe)
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "screening pass failed: %v", err)
		return
	}
	s.hotCache.StoreTopResults(c.Request.Context(), req.Timeframe, results)
	c.JSON(http.StatusOK, gin.H{"timeframe": req.Timeframe, "results": results, "count": len(results)})
}

func (s *Server) handleGetTopOpportunities(c *gin.Context) {
	ctx := c.Request.Context()
	limit := queryInt(c, "limit", 10)
	since := time.Now().Add(-time.Hour)

	results, err := s.repo.GetTopOpportunities(ctx, since, limit)
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error loading top opportunities: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func (s *Server) handleGetKlines(c *gin.Context) {
	symbol := c.Param("symbol")
	timeframe := c.DefaultQuery("timeframe", tsdb.BaseTimeframe)
	if !tsdb.ValidTimeframe(timeframe) {
		errorDetail(c, http.StatusBadRequest, "unsupported timeframe %q", timeframe)
		return
	}
	limit := queryInt(c, "limit", 200)

	klines, err := s.provider.GetCandles(c.Request.Context(), symbol, timeframe, limit)
	if err != nil {
		errorDetail(c, http.StatusBadGateway, "error loading klines for %s: %v", symbol, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": timeframe,
		"klines":    klines,
		"count":     len(klines),
	})
}

// handleGetIndicators computes the indicator snapshot for one symbol on
// demand, without persisting anything.
func (s *Server) handleGetIndicators(c *gin.Context) {
	symbol := c.Param("symbol")
	timeframe := c.DefaultQuery("timeframe", tsdb.BaseTimeframe)
	if !tsdb.ValidTimeframe(timeframe) {
		errorDetail(c, http.StatusBadRequest, "unsupported timeframe %q", timeframe)
		return
	}

	klines, err := s.provider.GetCandles(c.Request.Context(), symbol, timeframe, binance.DefaultKlineLimit)
	if err != nil {
		errorDetail(c, http.StatusBadGateway, "error loading klines for %s: %v", symbol, err)
		return
	}

	analysis, err := indicator.Analyze(klines, s.screener.AnomalyThreshold())
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			errorDetail(c, http.StatusUnprocessableEntity, "not enough history for %s on %s", symbol, timeframe)
			return
		}
		errorDetail(c, http.StatusInternalServerError, "error analyzing %s: %v", symbol, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":     symbol,
		"timeframe":  timeframe,
		"indicators": analysis.Sanitized(),
		"signals":    analysis.Signals(),
	})
}

// handleGetScreeningHistory lists past snapshots for one symbol.
func (s *Server) handleGetScreeningHistory(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		errorDetail(c, http.StatusBadRequest, "symbol query parameter is required")
		return
	}
	timeframe := c.Query("timeframe")
	if timeframe != "" && !tsdb.ValidTimeframe(timeframe) {
		errorDetail(c, http.StatusBadRequest, "unsupported timeframe %q", timeframe)
		return
	}
	hours := queryInt(c, "hours", 24)
	limit := queryInt(c, "limit", 100)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	results, err := s.repo.GetSymbolHistory(c.Request.Context(), symbol, timeframe, since, limit)
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error loading history for %s: %v", symbol, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "results": results, "count": len(results)})
}

func (s *Server) handleListAlerts(c *gin.Context) {
	alerts, err := s.repo.ListAlerts(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error loading alerts: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func queryFloat(c *gin.Context, name string, fallback float64) float64 {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}
