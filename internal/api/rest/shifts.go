package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MarcoGruber/ShiftCore/internal/shift"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
	"github.com/MarcoGruber/ShiftCore/internal/types"
)

// POST /api/v1/shifts/end
func (s *Server) endShift(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}

	// Body is optional, notes default to empty
	_ = c.ShouldBindJSON(&req)

	active, err := s.store.GetActiveShift(c.Request.Context())
	if err != nil {
		if errors.Is(err, storage.ErrShiftNotFound) {
			c.JSON(http.StatusConflict, types.NewErrorResponse(types.CodeConflict, "No active shift to end", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Failed to load active shift", err.Error()))
		return
	}

	summary, err := s.scheduler.EndShift(c.Request.Context(), active.ID, shift.EndShiftOptions{
		Manual: true,
		Notes:  req.Notes,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Shift transition failed", err.Error()))
		return
	}

	if !summary.ShiftEnded {
		c.JSON(http.StatusConflict, types.NewErrorResponse(types.CodeConflict, "Shift is already ending or ended", nil))
		return
	}

	c.JSON(http.StatusOK, summary)
}

// POST /api/v1/shifts/start
func (s *Server) startShift(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	_ = c.ShouldBindJSON(&req)

	created, err := s.scheduler.StartShift(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, shift.ErrShiftAlreadyActive) {
			c.JSON(http.StatusConflict, types.NewErrorResponse(types.CodeConflict, "A shift is already active", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Failed to start shift", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GET /api/v1/shifts/current
func (s *Server) getCurrentShift(c *gin.Context) {
	active, err := s.store.GetActiveShift(c.Request.Context())
	if err != nil {
		if errors.Is(err, storage.ErrShiftNotFound) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeNotFound, "No active shift", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Failed to load active shift", err.Error()))
		return
	}

	c.JSON(http.StatusOK, active)
}

// GET /api/v1/shifts/:id
func (s *Server) getShift(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeBadRequest, "Invalid shift id", err.Error()))
		return
	}

	loaded, err := s.store.GetShift(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrShiftNotFound) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeNotFound, "Shift not found", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Failed to load shift", err.Error()))
		return
	}

	c.JSON(http.StatusOK, loaded)
}

// GET /api/v1/events
func (s *Server) listLiveEvents(c *gin.Context) {
	limit := 500

	events, err := s.store.ListLiveEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Failed to load events", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}
