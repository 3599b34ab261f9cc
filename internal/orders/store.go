package orders

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"shopfloor/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrInvalidOrder indicates a submission that never enters the store
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOrderNotFound indicates an unknown order ID
	ErrOrderNotFound = errors.New("order not found")
	// ErrConflict indicates a compare-and-set transition observed a stale state
	ErrConflict = errors.New("order state conflict")
	// ErrRetriesExhausted indicates an order failed more times than allowed
	ErrRetriesExhausted = errors.New("order retries exhausted")
)

// Store owns the canonical state of every production order. It follows the
// same compare-and-set discipline as the machine registry: state changes
// validate the expected prior state under the store lock and fail with
// ErrConflict when a concurrent mutation got there first.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
	// submission sequence per order ID; tie-break for orders created within
	// the same clock tick.
	seq     map[string]uint64
	nextSeq uint64
}

// NewStore creates an empty order store.
func NewStore() *Store {
	return &Store{
		orders: make(map[string]*models.Order),
		seq:    make(map[string]uint64),
	}
}

// Submit validates and stores a new order in pending state, assigning its
// ID and creation timestamp. Rejected submissions never enter the store.
func (s *Store) Submit(product string, quantity int, priority models.Priority, capability string) (models.Order, error) {
	if quantity <= 0 {
		return models.Order{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, quantity)
	}
	if capability == "" {
		return models.Order{}, fmt.Errorf("%w: required capability is empty", ErrInvalidOrder)
	}
	if !priority.Valid() {
		return models.Order{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidOrder, priority)
	}

	now := time.Now()
	order := &models.Order{
		ID:                 uuid.NewString(),
		Product:            product,
		Quantity:           quantity,
		Priority:           priority,
		RequiredCapability: capability,
		State:              models.OrderStatePending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.ID] = order
	s.nextSeq++
	s.seq[order.ID] = s.nextSeq
	return *order, nil
}

// Get returns a copy of the order with the given ID.
func (s *Store) Get(id string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[id]
	if !exists {
		return models.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return *o, nil
}

// Assign atomically binds a pending order to a machine: pending -> assigned
// with AssignedMachineID set in one step.
func (s *Store) Assign(id, machineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if o.State != models.OrderStatePending {
		return fmt.Errorf("%w: order %s is %s, not pending", ErrConflict, id, o.State)
	}

	o.State = models.OrderStateAssigned
	o.AssignedMachineID = machineID
	o.UpdatedAt = time.Now()
	return nil
}

// Transition performs a compare-and-set state change that keeps the machine
// binding untouched: assigned -> in_progress and in_progress <-> paused.
// Binding and unbinding changes go through Assign, Requeue, Complete or Fail.
func (s *Store) Transition(id string, from, to models.OrderState) error {
	if !to.Bound() {
		return fmt.Errorf("%w: order %s transition %s -> %s must release the binding", ErrConflict, id, from, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if o.State != from {
		return fmt.Errorf("%w: order %s is %s, expected %s", ErrConflict, id, o.State, from)
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: order %s cannot go %s -> %s", ErrConflict, id, from, to)
	}

	o.State = to
	o.UpdatedAt = time.Now()
	return nil
}

// Progress advances an in-progress order by delta percent, clamped at 100.
// Progress is monotone: a negative delta is rejected. Returns the updated
// progress value.
func (s *Store) Progress(id string, delta int) (int, error) {
	if delta < 0 {
		return 0, fmt.Errorf("%w: progress delta must be non-negative", ErrConflict)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if o.State != models.OrderStateInProgress {
		return 0, fmt.Errorf("%w: order %s is %s, not in_progress", ErrConflict, id, o.State)
	}

	o.ProgressPct += delta
	if o.ProgressPct > 100 {
		o.ProgressPct = 100
	}
	o.UpdatedAt = time.Now()
	return o.ProgressPct, nil
}

// Complete finishes an in-progress order at 100% and releases its binding.
func (s *Store) Complete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if o.State != models.OrderStateInProgress {
		return fmt.Errorf("%w: order %s is %s, not in_progress", ErrConflict, id, o.State)
	}

	now := time.Now()
	o.State = models.OrderStateCompleted
	o.AssignedMachineID = ""
	o.ProgressPct = 100
	o.UpdatedAt = now
	o.CompletedAt = &now
	return nil
}

// Requeue returns a bound order to pending after its machine was lost,
// preserving progress as the resume point and counting the retry. Once the
// order has been retried more than maxRetries times it transitions to
// failed instead and reports ErrRetriesExhausted.
func (s *Store) Requeue(id string, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if !o.State.Bound() {
		return fmt.Errorf("%w: order %s is %s, not bound to a machine", ErrConflict, id, o.State)
	}

	o.AssignedMachineID = ""
	o.RetryCount++
	o.UpdatedAt = time.Now()

	if o.RetryCount > maxRetries {
		o.State = models.OrderStateFailed
		return fmt.Errorf("%w: order %s failed after %d attempts", ErrRetriesExhausted, id, o.RetryCount)
	}

	o.State = models.OrderStatePending
	return nil
}

// Fail terminates a bound order and releases its binding. Used for explicit
// operator cancellation of running work.
func (s *Store) Fail(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if !o.State.Bound() {
		return fmt.Errorf("%w: order %s is %s, not bound to a machine", ErrConflict, id, o.State)
	}

	o.State = models.OrderStateFailed
	o.AssignedMachineID = ""
	o.UpdatedAt = time.Now()
	return nil
}

// Remove deletes a pending order from the store. Orders in any other state
// cannot be removed; running work is cancelled through the scheduler.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if o.State != models.OrderStatePending {
		return fmt.Errorf("%w: order %s is %s, only pending orders can be removed", ErrConflict, id, o.State)
	}

	delete(s.orders, id)
	delete(s.seq, id)
	return nil
}

// ListPending returns copies of all pending orders ordered by priority
// (highest first) and creation time (oldest first) within a tier. This
// ordering is the scheduling invariant the assignment policy iterates in.
func (s *Store) ListPending() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []models.Order
	for _, o := range s.orders {
		if o.State == models.OrderStatePending {
			pending = append(pending, *o)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority.Rank() != pending[j].Priority.Rank() {
			return pending[i].Priority.Rank() > pending[j].Priority.Rank()
		}
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return s.seq[pending[i].ID] < s.seq[pending[j].ID]
	})
	return pending
}

// List returns copies of all orders, newest submissions last.
func (s *Store) List() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		all = append(all, *o)
	}
	sort.Slice(all, func(i, j int) bool {
		return s.seq[all[i].ID] < s.seq[all[j].ID]
	})
	return all
}
