package reset

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/MarcoGruber/ShiftCore/internal/api/websocket"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

const assetCacheKey = "assets"

// Store is the storage surface the resetter needs.
type Store interface {
	ListAssets(ctx context.Context) ([]storage.Asset, error)
	ResetLiveEvents(ctx context.Context, assets []storage.Asset, at time.Time) error
}

// Broadcaster pushes messages to connected dashboard clients.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// Resetter clears the live event view between shifts and tells
// dashboards to start over.
type Resetter struct {
	store  Store
	hub    Broadcaster
	assets *gocache.Cache
	logger *zap.Logger
}

// NewResetter creates a resetter. hub may be nil when no realtime
// transport is wired; broadcasts then degrade to a warning.
func NewResetter(store Store, hub Broadcaster, logger *zap.Logger) *Resetter {
	return &Resetter{
		store:  store,
		hub:    hub,
		assets: gocache.New(5*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

// ResetEventsTable wipes the live event view and seeds one SHIFT_START
// marker per known asset, so dashboards show a clean baseline instead
// of an empty gap.
func (r *Resetter) ResetEventsTable(ctx context.Context) error {
	assets, err := r.listAssets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list assets: %w", err)
	}

	if err := r.store.ResetLiveEvents(ctx, assets, time.Now()); err != nil {
		return fmt.Errorf("failed to reset live events: %w", err)
	}

	r.logger.Info("Live event view reset",
		zap.Int("seeded_markers", len(assets)))

	return nil
}

// TriggerDashboardReset notifies all connected clients about the shift
// handover. Safe to call without a transport.
func (r *Resetter) TriggerDashboardReset(newShift *storage.Shift) {
	if r.hub == nil {
		r.logger.Warn("No realtime transport available, dashboard reset skipped")
		return
	}

	if newShift != nil {
		r.hub.Broadcast(websocket.NewDashboardResetMessage("shift_change", &newShift.ID))
		r.hub.Broadcast(websocket.NewShiftUpdateMessage(
			newShift.ID, newShift.Name, string(newShift.Status),
			newShift.StartTime, newShift.EndTime))
	} else {
		r.hub.Broadcast(websocket.NewDashboardResetMessage("shift_change", nil))
	}

	r.hub.Broadcast(websocket.NewEventsUpdateMessage("reset", 0))

	r.logger.Info("Dashboard reset broadcast sent")
}

func (r *Resetter) listAssets(ctx context.Context) ([]storage.Asset, error) {
	if cached, ok := r.assets.Get(assetCacheKey); ok {
		return cached.([]storage.Asset), nil
	}

	assets, err := r.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}

	r.assets.Set(assetCacheKey, assets, gocache.DefaultExpiration)
	return assets, nil
}
