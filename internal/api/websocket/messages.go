package websocket

import (
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Shift lifecycle messages
	MessageTypeDashboardReset MessageType = "dashboard_reset"
	MessageTypeShiftUpdate    MessageType = "shift_update"
	MessageTypeEventsUpdate   MessageType = "events_update"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// DashboardResetData tells clients to drop cached events and reload
type DashboardResetData struct {
	Reason     string     `json:"reason"`
	NewShiftID *uuid.UUID `json:"new_shift_id,omitempty"`
}

// ShiftUpdateData carries the shift now shown on dashboards
type ShiftUpdateData struct {
	ShiftID   uuid.UUID  `json:"shift_id"`
	ShiftName string     `json:"shift_name"`
	Status    string     `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// EventsUpdateData signals that the live event view changed
type EventsUpdateData struct {
	Action string `json:"action"` // "reset" or "append"
	Count  int    `json:"count"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewDashboardResetMessage(reason string, newShiftID *uuid.UUID) Message {
	return NewMessage(MessageTypeDashboardReset, DashboardResetData{
		Reason:     reason,
		NewShiftID: newShiftID,
	})
}

func NewShiftUpdateMessage(shiftID uuid.UUID, name, status string, start time.Time, end *time.Time) Message {
	return NewMessage(MessageTypeShiftUpdate, ShiftUpdateData{
		ShiftID:   shiftID,
		ShiftName: name,
		Status:    status,
		StartTime: start,
		EndTime:   end,
	})
}

func NewEventsUpdateMessage(action string, count int) Message {
	return NewMessage(MessageTypeEventsUpdate, EventsUpdateData{
		Action: action,
		Count:  count,
	})
}
