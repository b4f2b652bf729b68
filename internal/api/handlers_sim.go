package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"altcoin-screener/internal/database"
	"altcoin-screener/internal/simtrading"
)

func (s *Server) handleCreateAccount(c *gin.Context) {
	var req struct {
		Name              string    `json:"name" binding:"required"`
		InitialBalance    float64   `json:"initial_balance"`
		MaxPositions      int       `json:"max_positions"`
		PositionPct       float64   `json:"position_pct"`
		StopLossPct       float64   `json:"stop_loss_pct"`
		TakeProfitLevels  []float64 `json:"take_profit_levels"`
		EntryScoreMin     float64   `json:"entry_score_min"`
		EntryTechnicalMin float64   `json:"entry_technical_min"`
		AutoTrade         bool      `json:"auto_trade"`
		Timeframe         string    `json:"timeframe"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorDetail(c, http.StatusBadRequest, "invalid account payload: %v", err)
		return
	}

	account := &database.SimAccount{
		Name:              req.Name,
		InitialBalance:    req.InitialBalance,
		MaxPositions:      req.MaxPositions,
		PositionPct:       req.PositionPct,
		StopLossPct:       req.StopLossPct,
		TakeProfitLevels:  req.TakeProfitLevels,
		EntryScoreMin:     req.EntryScoreMin,
		EntryTechnicalMin: req.EntryTechnicalMin,
		AutoTrade:         req.AutoTrade,
		Timeframe:         req.Timeframe,
	}
	if err := s.engine.CreateAccount(c.Request.Context(), account); err != nil {
		errorDetail(c, http.StatusInternalServerError, "error creating account: %v", err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (s *Server) handleListAccounts(c *gin.Context) {
	accounts, err := s.repo.ListAccounts(c.Request.Context())
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error listing accounts: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts, "count": len(accounts)})
}

func (s *Server) handleGetAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	account, err := s.repo.GetAccount(c.Request.Context(), s.db.Pool, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorDetail(c, http.StatusNotFound, "account %d not found", id)
			return
		}
		errorDetail(c, http.StatusInternalServerError, "error loading account: %v", err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// handleUpdateAccount applies partial updates to the tunable account
// parameters. Balances and counters are engine-owned and not writable here.
func (s *Server) handleUpdateAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	account, err := s.repo.GetAccount(c.Request.Context(), s.db.Pool, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorDetail(c, http.StatusNotFound, "account %d not found", id)
			return
		}
		errorDetail(c, http.StatusInternalServerError, "error loading account: %v", err)
		return
	}

	var req struct {
		Name              *string    `json:"name"`
		MaxPositions      *int       `json:"max_positions"`
		PositionPct       *float64   `json:"position_pct"`
		StopLossPct       *float64   `json:"stop_loss_pct"`
		TakeProfitLevels  *[]float64 `json:"take_profit_levels"`
		EntryScoreMin     *float64   `json:"entry_score_min"`
		EntryTechnicalMin *float64   `json:"entry_technical_min"`
		AutoTrade         *bool      `json:"auto_trade"`
		Timeframe         *string    `json:"timeframe"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorDetail(c, http.StatusBadRequest, "invalid account payload: %v", err)
		return
	}

	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.MaxPositions != nil {
		account.MaxPositions = *req.MaxPositions
	}
	if req.PositionPct != nil {
		account.PositionPct = *req.PositionPct
	}
	if req.StopLossPct != nil {
		account.StopLossPct = *req.StopLossPct
	}
	if req.TakeProfitLevels != nil {
		account.TakeProfitLevels = *req.TakeProfitLevels
	}
	if req.EntryScoreMin != nil {
		account.EntryScoreMin = *req.EntryScoreMin
	}
	if req.EntryTechnicalMin != nil {
		account.EntryTechnicalMin = *req.EntryTechnicalMin
	}
	if req.AutoTrade != nil {
		account.AutoTrade = *req.AutoTrade
	}
	if req.Timeframe != nil {
		account.Timeframe = *req.Timeframe
	}

	if err := s.repo.UpdateAccountSettings(c.Request.Context(), account); err != nil {
		errorDetail(c, http.StatusInternalServerError, "error updating account: %v", err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.repo.DeleteAccount(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorDetail(c, http.StatusNotFound, "account %d not found", id)
			return
		}
		errorDetail(c, http.StatusInternalServerError, "error deleting account: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// handleCheckExits evaluates the exit rules on the account's open positions
// at current prices and returns any fills executed.
func (s *Server) handleCheckExits(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if _, err := s.repo.GetAccount(c.Request.Context(), s.db.Pool, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorDetail(c, http.StatusNotFound, "account %d not found", id)
			return
		}
		errorDetail(c, http.StatusInternalServerError, "error loading account: %v", err)
		return
	}

	trades, err := s.engine.CheckExits(c.Request.Context(), id)
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error checking exits: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// handleAutoTrade runs one auto-trade pass for the account on demand: exits
// first, then entry evaluation over the recent candidates.
func (s *Server) handleAutoTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	account, err := s.repo.GetAccount(c.Request.Context(), s.db.Pool, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorDetail(c, http.StatusNotFound, "account %d not found", id)
			return
		}
		errorDetail(c, http.StatusInternalServerError, "error loading account: %v", err)
		return
	}

	if err := s.engine.AutoTrade(c.Request.Context(), account); err != nil {
		errorDetail(c, http.StatusInternalServerError, "auto-trade pass failed: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "status": "completed"})
}

func (s *Server) handleGetAccountSummary(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	summary, err := s.engine.GetAccountSummary(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorDetail(c, http.StatusNotFound, "account %d not found", id)
			return
		}
		errorDetail(c, http.StatusInternalServerError, "error building summary: %v", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleListPositions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	positions, err := s.repo.ListPositions(c.Request.Context(), id,
		c.Query("status"), queryInt(c, "limit", 100))
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error listing positions: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

func (s *Server) handleListTrades(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	trades, err := s.repo.ListTrades(c.Request.Context(), id, queryInt(c, "limit", 100))
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error listing trades: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handleListAutoTradeLogs(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	logs, err := s.repo.ListAutoTradeLogs(c.Request.Context(), id, queryInt(c, "limit", 100))
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error listing auto-trade logs: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

func (s *Server) handleOpenPosition(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Symbol string  `json:"symbol" binding:"required"`
		Price  float64 `json:"price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorDetail(c, http.StatusBadRequest, "invalid open payload: %v", err)
		return
	}

	pos, err := s.engine.OpenPosition(c.Request.Context(), id, req.Symbol, req.Price, 0, nil)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			errorDetail(c, http.StatusNotFound, "account %d not found", id)
		case errors.Is(err, simtrading.ErrDuplicatePosition):
			errorDetail(c, http.StatusConflict, "position already open for %s", req.Symbol)
		case errors.Is(err, simtrading.ErrMaxPositions):
			errorDetail(c, http.StatusConflict, "max open positions reached")
		case errors.Is(err, simtrading.ErrInsufficientBalance):
			errorDetail(c, http.StatusUnprocessableEntity, "insufficient balance")
		default:
			errorDetail(c, http.StatusInternalServerError, "error opening position: %v", err)
		}
		return
	}
	c.JSON(http.StatusCreated, pos)
}

func (s *Server) handleClosePosition(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Price float64 `json:"price"`
		Pct   float64 `json:"pct"`
	}
	// Empty body means a full close at the current market price.
	_ = c.ShouldBindJSON(&req)

	trade, err := s.engine.ClosePosition(c.Request.Context(), id, req.Price, req.Pct, "MANUAL")
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			errorDetail(c, http.StatusNotFound, "position %d not found", id)
		case errors.Is(err, simtrading.ErrPositionClosed):
			errorDetail(c, http.StatusConflict, "position %d is already closed", id)
		default:
			errorDetail(c, http.StatusInternalServerError, "error closing position: %v", err)
		}
		return
	}
	c.JSON(http.StatusOK, trade)
}

// pathID parses the :id path parameter, writing the error response itself.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorDetail(c, http.StatusBadRequest, "invalid id %q", c.Param("id"))
		return 0, false
	}
	return id, true
}
