package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MarcoGruber/ShiftCore/internal/storage"
	"github.com/MarcoGruber/ShiftCore/internal/types"
)

// GET /api/v1/archives?type=EVENTS&limit=50
func (s *Server) listArchives(c *gin.Context) {
	archiveType := storage.ArchiveType(c.Query("type"))

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeArchiveBad, "Invalid limit", raw))
			return
		}
		limit = parsed
	}

	archives, err := s.store.ListArchives(c.Request.Context(), archiveType, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Failed to list archives", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"archives": archives,
		"count":    len(archives),
	})
}

// GET /api/v1/archives/:id
func (s *Server) getArchive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeArchiveBad, "Invalid archive id", err.Error()))
		return
	}

	archive, err := s.store.GetArchive(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrArchiveNotFound) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeArchiveMissing, "Archive not found", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Failed to load archive", err.Error()))
		return
	}

	c.JSON(http.StatusOK, archive)
}

// POST /api/v1/archives/:id/verify
func (s *Server) verifyArchive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeArchiveBad, "Invalid archive id", err.Error()))
		return
	}

	result, err := s.verifier.VerifyArchiveIntegrity(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrArchiveNotFound) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeArchiveMissing, "Archive not found", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Verification failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, result)
}
