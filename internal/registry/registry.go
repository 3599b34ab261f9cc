package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"shopfloor/internal/models"
)

var (
	// ErrMachineNotFound indicates an unknown machine ID
	ErrMachineNotFound = errors.New("machine not found")
	// ErrConflict indicates a compare-and-set transition observed a stale state
	ErrConflict = errors.New("machine state conflict")
	// ErrDuplicateMachine indicates a machine ID was registered twice
	ErrDuplicateMachine = errors.New("machine already registered")
)

// Registry owns the canonical state of every machine on the floor.
//
// All mutations go through compare-and-set operations: a caller that
// observed a stale state gets ErrConflict and no partial update. State and
// CurrentOrderID are always written jointly under the registry lock, so the
// pair can never be read in a contradictory combination.
type Registry struct {
	mu       sync.RWMutex
	machines map[string]*models.Machine
	// insertion order of machine IDs; gives ListAvailable its deterministic
	// tie-break order.
	order []string
}

// NewRegistry creates an empty machine registry.
func NewRegistry() *Registry {
	return &Registry{
		machines: make(map[string]*models.Machine),
	}
}

// Register adds a machine to the pool at bootstrap. Machines start idle
// with no order bound.
func (r *Registry) Register(m models.Machine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.machines[m.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMachine, m.ID)
	}

	m.State = models.MachineStateIdle
	m.CurrentOrderID = ""
	m.UpdatedAt = time.Now()

	r.machines[m.ID] = &m
	r.order = append(r.order, m.ID)
	return nil
}

// Get returns a copy of the machine with the given ID.
func (r *Registry) Get(id string) (models.Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.machines[id]
	if !exists {
		return models.Machine{}, fmt.Errorf("%w: %s", ErrMachineNotFound, id)
	}
	return *m, nil
}

// Claim atomically takes an idle machine for an order: idle -> busy with
// CurrentOrderID set in one step. Returns ErrConflict if the machine is no
// longer idle, which callers treat as "retry on the next tick".
func (r *Registry) Claim(id, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.machines[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrMachineNotFound, id)
	}
	if m.State != models.MachineStateIdle {
		return fmt.Errorf("%w: machine %s is %s, not idle", ErrConflict, id, m.State)
	}

	m.State = models.MachineStateBusy
	m.CurrentOrderID = orderID
	m.UpdatedAt = time.Now()
	return nil
}

// Release clears a machine's order binding after the job ends normally.
// A busy machine returns to idle; a machine that degraded to warning while
// running stays in warning (with the binding cleared) until its readings
// come back to nominal.
func (r *Registry) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.machines[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrMachineNotFound, id)
	}
	if m.CurrentOrderID == "" {
		return fmt.Errorf("%w: machine %s holds no order", ErrConflict, id)
	}

	m.CurrentOrderID = ""
	if m.State == models.MachineStateBusy {
		m.State = models.MachineStateIdle
	}
	m.UpdatedAt = time.Now()
	return nil
}

// Vacate forcibly moves a machine into error, maintenance or offline,
// clearing any order binding in the same step. It returns the ID of the
// order the machine was holding ("" if none) so the scheduler can requeue it.
func (r *Registry) Vacate(id string, to models.MachineState) (string, error) {
	if to != models.MachineStateError && to != models.MachineStateMaintenance && to != models.MachineStateOffline {
		return "", fmt.Errorf("%w: vacate target must be error, maintenance or offline, got %s", ErrConflict, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.machines[id]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrMachineNotFound, id)
	}
	if m.State == to {
		return "", fmt.Errorf("%w: machine %s already %s", ErrConflict, id, to)
	}
	if !m.State.CanTransition(to) {
		return "", fmt.Errorf("%w: machine %s cannot go %s -> %s", ErrConflict, id, m.State, to)
	}

	vacated := m.CurrentOrderID
	m.CurrentOrderID = ""
	m.State = to
	m.UpdatedAt = time.Now()
	return vacated, nil
}

// Transition performs a compare-and-set state change that does not touch
// the order binding: health transitions (idle/busy <-> warning) and operator
// restores (maintenance/offline/error -> idle). Transitions that bind or
// vacate an order must go through Claim, Release or Vacate instead.
func (r *Registry) Transition(id string, from, to models.MachineState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.machines[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrMachineNotFound, id)
	}
	if m.State != from {
		return fmt.Errorf("%w: machine %s is %s, expected %s", ErrConflict, id, m.State, from)
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: machine %s cannot go %s -> %s", ErrConflict, id, from, to)
	}

	// Keep the binding and the state consistent: a machine reverting out of
	// warning goes back to busy iff it still holds its order, and a machine
	// holding an order can only leave via Release or Vacate.
	switch {
	case to == models.MachineStateBusy && m.CurrentOrderID == "":
		return fmt.Errorf("%w: machine %s has no order to resume", ErrConflict, id)
	case to == models.MachineStateIdle && m.CurrentOrderID != "":
		return fmt.Errorf("%w: machine %s still holds order %s", ErrConflict, id, m.CurrentOrderID)
	case (to == models.MachineStateMaintenance || to == models.MachineStateOffline || to == models.MachineStateError) && m.CurrentOrderID != "":
		return fmt.Errorf("%w: machine %s holds an order, use Vacate", ErrConflict, id)
	}

	m.State = to
	m.UpdatedAt = time.Now()
	return nil
}

// SetTelemetry records the latest sensor readings for a machine. Telemetry
// never changes state or order binding here; health transitions are derived
// separately by the monitor.
func (r *Registry) SetTelemetry(id string, t models.Telemetry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.machines[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrMachineNotFound, id)
	}
	m.Telemetry = t
	return nil
}

// ListAvailable returns copies of the idle machines supporting the given
// capability, in registry insertion order. An empty capability matches all
// idle machines.
func (r *Registry) ListAvailable(capability string) []models.Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var available []models.Machine
	for _, id := range r.order {
		m := r.machines[id]
		if !m.State.Assignable() {
			continue
		}
		if capability != "" && !m.HasCapability(capability) {
			continue
		}
		available = append(available, *m)
	}
	return available
}

// List returns copies of all machines in insertion order.
func (r *Registry) List() []models.Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	machines := make([]models.Machine, 0, len(r.order))
	for _, id := range r.order {
		machines = append(machines, *r.machines[id])
	}
	return machines
}
