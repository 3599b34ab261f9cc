package scheduler

import (
	"time"

	"shopfloor/internal/models"
)

// Stats summarizes the fleet and order book for dashboard stat cards.
type Stats struct {
	Machines map[models.MachineState]int `json:"machines"`
	Orders   map[models.OrderState]int   `json:"orders"`
}

// Snapshot is a point-in-time consistent view of all machines and orders.
type Snapshot struct {
	TakenAt  time.Time        `json:"taken_at"`
	Machines []models.Machine `json:"machines"`
	Orders   []models.Order   `json:"orders"`
	Stats    Stats            `json:"stats"`
}

// Snapshot returns a consistent read of the whole engine. It is taken under
// the scheduler lock — the only writer of cross-entity fields — so no
// machine/order pair violating pointer integrity can ever be observed, even
// while ticks and failure handling run concurrently.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TakenAt:  time.Now(),
		Machines: s.registry.List(),
		Orders:   s.store.List(),
		Stats: Stats{
			Machines: make(map[models.MachineState]int),
			Orders:   make(map[models.OrderState]int),
		},
	}
	for _, m := range snap.Machines {
		snap.Stats.Machines[m.State]++
	}
	for _, o := range snap.Orders {
		snap.Stats.Orders[o.State]++
	}
	return snap
}

// GetOrder returns a single order by ID.
func (s *Scheduler) GetOrder(id string) (models.Order, error) {
	return s.store.Get(id)
}

// GetMachine returns a single machine by ID.
func (s *Scheduler) GetMachine(id string) (models.Machine, error) {
	return s.registry.Get(id)
}
