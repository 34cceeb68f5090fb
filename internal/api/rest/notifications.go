package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MarcoGruber/ShiftCore/internal/shift"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
	"github.com/MarcoGruber/ShiftCore/internal/types"
)

// GET /api/v1/notifications/settings
func (s *Server) getNotificationSettings(c *gin.Context) {
	settings, err := s.store.GetNotificationSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Failed to load settings", err.Error()))
		return
	}

	c.JSON(http.StatusOK, settings)
}

// PUT /api/v1/notifications/settings
func (s *Server) updateNotificationSettings(c *gin.Context) {
	var settings storage.NotificationSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeSettingsBad, "Invalid settings body", err.Error()))
		return
	}

	// Reject settings where no entry at all is usable; individually
	// broken entries are skipped at schedule-build time
	if settings.ShiftSettings.Enabled && len(settings.ShiftSettings.ShiftTimes) > 0 {
		valid := 0
		for _, entry := range settings.ShiftSettings.ShiftTimes {
			if _, _, err := shift.ParseShiftTime(entry); err == nil {
				valid++
			}
		}
		if valid == 0 {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeSettingsBad,
				"No valid shift time in shiftTimes",
				strings.Join(settings.ShiftSettings.ShiftTimes, ", ")))
			return
		}
	}

	if err := s.store.UpdateNotificationSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Failed to save settings", err.Error()))
		return
	}

	// Rebuild the trigger set from the new settings
	s.scheduler.UpdateSchedule(c.Request.Context(), settings)

	c.JSON(http.StatusOK, settings)
}

// GET /api/v1/notifications/scheduler-status
func (s *Server) getSchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.scheduler.Status())
}

// POST /api/v1/notifications/trigger-shift-report
func (s *Server) triggerShiftReport(c *gin.Context) {
	var req struct {
		ShiftTime string `json:"shiftTime" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeBadRequest, "Invalid request body", err.Error()))
		return
	}

	result, err := s.scheduler.TriggerReport(c.Request.Context(), req.ShiftTime)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Report re-run failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, result)
}
