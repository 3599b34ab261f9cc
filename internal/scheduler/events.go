package scheduler

import "time"

// EventType identifies a state change announced on the event feed
type EventType string

const (
	// Event types
	EventOrderAssigned    EventType = "order_assigned"
	EventOrderStarted     EventType = "order_started"
	EventOrderCompleted   EventType = "order_completed"
	EventOrderRequeued    EventType = "order_requeued"
	EventOrderFailed      EventType = "order_failed"
	EventOrderPaused      EventType = "order_paused"
	EventOrderResumed     EventType = "order_resumed"
	EventOrderCancelled   EventType = "order_cancelled"
	EventMachineFailed    EventType = "machine_failed"
	EventMachineWarning   EventType = "machine_warning"
	EventMachineRecovered EventType = "machine_recovered"
	EventMachineOperator  EventType = "machine_operator"
)

// Event describes a scheduling or health state change for dashboards.
type Event struct {
	Type      EventType `json:"type"`
	OrderID   string    `json:"order_id,omitempty"`
	MachineID string    `json:"machine_id,omitempty"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// Notifier receives engine events. Implementations must not block; the
// engine publishes while holding no locks but from its tick path.
type Notifier interface {
	Notify(Event)
}

// NopNotifier discards events; used when no feed is attached.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(Event) {}
