package models

import "time"

// Priority represents the scheduling priority of a production order
type Priority string

const (
	// Order priorities, highest first
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// priorityRank orders priorities for scheduling; a larger rank schedules first.
var priorityRank = map[Priority]int{
	PriorityUrgent: 4,
	PriorityHigh:   3,
	PriorityMedium: 2,
	PriorityLow:    1,
}

// Rank returns the numeric scheduling rank of the priority. Unknown
// priorities rank below low so malformed records never jump the queue.
func (p Priority) Rank() int {
	return priorityRank[p]
}

// Valid reports whether the priority is one of the four known tiers.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// OrderState represents the lifecycle state of a production order
type OrderState string

const (
	// Order states
	OrderStatePending    OrderState = "pending"
	OrderStateAssigned   OrderState = "assigned"
	OrderStateInProgress OrderState = "in_progress"
	OrderStatePaused     OrderState = "paused"
	OrderStateCompleted  OrderState = "completed"
	OrderStateFailed     OrderState = "failed"
)

// orderTransitions is the closed transition table for order states.
// assigned/in_progress/paused may fall back to pending on machine failure
// while retries remain; completed and failed are terminal.
var orderTransitions = map[OrderState][]OrderState{
	OrderStatePending:    {OrderStateAssigned},
	OrderStateAssigned:   {OrderStateInProgress, OrderStatePending, OrderStateFailed},
	OrderStateInProgress: {OrderStatePaused, OrderStateCompleted, OrderStatePending, OrderStateFailed},
	OrderStatePaused:     {OrderStateInProgress, OrderStatePending, OrderStateFailed},
	OrderStateCompleted:  {},
	OrderStateFailed:     {},
}

// CanTransition reports whether an order may move from one state to another.
func (s OrderState) CanTransition(to OrderState) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Bound reports whether an order in this state holds a machine binding.
func (s OrderState) Bound() bool {
	return s == OrderStateAssigned || s == OrderStateInProgress || s == OrderStatePaused
}

// Terminal reports whether the state ends the order lifecycle.
func (s OrderState) Terminal() bool {
	return s == OrderStateCompleted || s == OrderStateFailed
}

// Order represents a production order submitted to the scheduling engine.
// Invariant: AssignedMachineID is set if and only if State is one of
// assigned/in_progress/paused, and the named machine's CurrentOrderID
// points back at this order. The scheduler is the sole writer of both ends.
type Order struct {
	ID                 string     `json:"id"`
	Product            string     `json:"product"`
	Quantity           int        `json:"quantity"`
	Priority           Priority   `json:"priority"`
	RequiredCapability string     `json:"required_capability"`
	State              OrderState `json:"state"`
	AssignedMachineID  string     `json:"assigned_machine_id,omitempty"`
	ProgressPct        int        `json:"progress_pct"`
	RetryCount         int        `json:"retry_count"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}
