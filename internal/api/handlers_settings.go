package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleGetNotificationSettings(c *gin.Context) {
	settings, err := s.repo.GetNotificationSettings(c.Request.Context())
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error loading notification settings: %v", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) handleUpdateNotificationSettings(c *gin.Context) {
	settings, err := s.repo.GetNotificationSettings(c.Request.Context())
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, "error loading notification settings: %v", err)
		return
	}

	var req struct {
		Enabled            *bool    `json:"enabled"`
		MinScore           *float64 `json:"min_score"`
		QuietStart         *string  `json:"quiet_start"`
		QuietEnd           *string  `json:"quiet_end"`
		MaxPerDay          *int     `json:"max_per_day"`
		MinIntervalMinutes *int     `json:"min_interval_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorDetail(c, http.StatusBadRequest, "invalid settings payload: %v", err)
		return
	}

	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	if req.MinScore != nil {
		settings.MinScore = *req.MinScore
	}
	if req.QuietStart != nil {
		settings.QuietStart = *req.QuietStart
	}
	if req.QuietEnd != nil {
		settings.QuietEnd = *req.QuietEnd
	}
	if req.MaxPerDay != nil {
		settings.MaxPerDay = *req.MaxPerDay
	}
	if req.MinIntervalMinutes != nil {
		settings.MinIntervalMinutes = *req.MinIntervalMinutes
	}

	if err := s.repo.UpdateNotificationSettings(c.Request.Context(), settings); err != nil {
		errorDetail(c, http.StatusInternalServerError, "error updating notification settings: %v", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
