package interfaces

import (
	"context"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string `json:"state"`
	ActiveShiftID    string `json:"active_shift_id,omitempty"`
	ActiveShiftName  string `json:"active_shift_name,omitempty"`
	SchedulerJobs    int    `json:"scheduler_jobs"`
	ConnectedClients int    `json:"connected_clients"`
}

// LifecycleManager is what the REST layer needs from the system core.
type LifecycleManager interface {
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
