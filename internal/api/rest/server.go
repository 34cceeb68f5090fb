package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarcoGruber/ShiftCore/internal/api/websocket"
	archivepkg "github.com/MarcoGruber/ShiftCore/internal/archive"
	"github.com/MarcoGruber/ShiftCore/internal/config"
	"github.com/MarcoGruber/ShiftCore/internal/interfaces"
	"github.com/MarcoGruber/ShiftCore/internal/report"
	"github.com/MarcoGruber/ShiftCore/internal/shift"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

// Scheduler is the shift lifecycle surface the API exposes.
type Scheduler interface {
	EndShift(ctx context.Context, shiftID uuid.UUID, opts shift.EndShiftOptions) (shift.TransitionSummary, error)
	StartShift(ctx context.Context, name string) (*storage.Shift, error)
	TriggerReport(ctx context.Context, shiftTime string) (*report.Result, error)
	UpdateSchedule(ctx context.Context, settings storage.NotificationSettings)
	Status() shift.RegistryStatus
}

// Store is the read/settings surface the API exposes.
type Store interface {
	GetActiveShift(ctx context.Context) (*storage.Shift, error)
	GetShift(ctx context.Context, id uuid.UUID) (*storage.Shift, error)
	ListLiveEvents(ctx context.Context, limit int) ([]storage.Event, error)
	ListArchives(ctx context.Context, archiveType storage.ArchiveType, limit int) ([]storage.Archive, error)
	GetArchive(ctx context.Context, id uuid.UUID) (*storage.Archive, error)
	GetNotificationSettings(ctx context.Context) (storage.NotificationSettings, error)
	UpdateNotificationSettings(ctx context.Context, settings storage.NotificationSettings) error
}

// Verifier audits archive integrity.
type Verifier interface {
	VerifyArchiveIntegrity(ctx context.Context, archiveID uuid.UUID) (archivepkg.VerificationResult, error)
}

type Server struct {
	router    *gin.Engine
	lm        interfaces.LifecycleManager
	scheduler Scheduler
	store     Store
	verifier  Verifier
	wsHub     *websocket.Hub
	logger    *zap.Logger
	server    *http.Server
}

func NewServer(
	cfg *config.Config,
	lm interfaces.LifecycleManager,
	scheduler Scheduler,
	store Store,
	verifier Verifier,
	wsHub *websocket.Hub,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:    gin.New(),
		lm:        lm,
		scheduler: scheduler,
		store:     store,
		verifier:  verifier,
		wsHub:     wsHub,
		logger:    logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== SHIFTS ====================
		shifts := v1.Group("/shifts")
		{
			shifts.POST("/end", s.endShift)
			shifts.POST("/start", s.startShift)
			shifts.GET("/current", s.getCurrentShift)
			shifts.GET("/:id", s.getShift)
		}

		// ==================== EVENTS (LIVE VIEW) ====================
		v1.GET("/events", s.listLiveEvents)

		// ==================== ARCHIVES ====================
		archives := v1.Group("/archives")
		{
			archives.GET("", s.listArchives)
			archives.GET("/:id", s.getArchive)
			archives.POST("/:id/verify", s.verifyArchive)
		}

		// ==================== NOTIFICATIONS / SCHEDULE ====================
		notifications := v1.Group("/notifications")
		{
			notifications.GET("/settings", s.getNotificationSettings)
			notifications.PUT("/settings", s.updateNotificationSettings)
			notifications.GET("/scheduler-status", s.getSchedulerStatus)
			notifications.POST("/trigger-shift-report", s.triggerShiftReport)
		}

		// ==================== SYSTEM ====================
		system := v1.Group("/system")
		{
			system.GET("/status", s.getSystemStatus)
			system.POST("/shutdown", s.shutdown)
		}

		// ==================== WEBSOCKET ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.GetCurrentStatus())
}

// POST /api/v1/system/shutdown
func (s *Server) shutdown(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Shutdown initiated",
	})

	// Trigger shutdown in background
	go func() {
		s.lm.Shutdown(context.Background())
	}()
}
