package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"shopfloor/internal/models"
	"shopfloor/internal/monitoring"
	"shopfloor/internal/orders"
	"shopfloor/internal/registry"
)

// Scheduler drives the assignment loop and owns every cross-entity
// transition, so the machine/order pointer invariants hold at all times.
//
// All mutating entry points serialize on one mutex: assignment decisions are
// never parallelized across ticks, and telemetry-driven failures funnel
// through HandleMachineFailure under the same lock. Individual registry and
// store operations still validate their expected prior state, so a pairing
// invalidated by a concurrent submission or cancellation is simply dropped
// and retried on the next tick.
type Scheduler struct {
	registry   *registry.Registry
	store      *orders.Store
	metrics    *monitoring.Metrics
	notifier   Notifier
	maxRetries int

	mu sync.Mutex
}

// NewScheduler creates a scheduler over the given registry and store.
// maxRetries bounds how often an order is requeued after losing its machine
// before it is forced to failed.
func NewScheduler(reg *registry.Registry, store *orders.Store, maxRetries int, metrics *monitoring.Metrics, notifier Notifier) *Scheduler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Scheduler{
		registry:   reg,
		store:      store,
		metrics:    metrics,
		notifier:   notifier,
		maxRetries: maxRetries,
	}
}

// Submit validates and stores a new production order.
func (s *Scheduler) Submit(product string, quantity int, priority models.Priority, capability string) (models.Order, error) {
	order, err := s.store.Submit(product, quantity, priority, capability)
	if err != nil {
		return models.Order{}, err
	}
	s.metrics.OrderSubmitted()
	return order, nil
}

// Tick runs one assignment pass: snapshot pending orders and available
// machines, match them, and commit each pair with a both-or-neither pair of
// CAS transitions. A pair whose machine or order moved under a concurrent
// mutation is dropped without partial state and retried on the next tick.
// Returns the number of assignments committed.
func (s *Scheduler) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	matches := Select(s.store.ListPending(), s.registry.ListAvailable(""))

	committed := 0
	for _, match := range matches {
		// Claim the machine first, then bind the order; if the order moved
		// (cancelled, or assigned by an earlier conflict path) the machine
		// claim is rolled back so neither side commits.
		if err := s.registry.Claim(match.MachineID, match.OrderID); err != nil {
			s.metrics.AssignConflict()
			continue
		}
		if err := s.store.Assign(match.OrderID, match.MachineID); err != nil {
			if relErr := s.registry.Release(match.MachineID); relErr != nil {
				log.Printf("Failed to roll back machine claim %s: %v", match.MachineID, relErr)
			}
			s.metrics.AssignConflict()
			continue
		}

		committed++
		s.metrics.OrderAssigned()
		s.notifier.Notify(Event{
			Type:      EventOrderAssigned,
			OrderID:   match.OrderID,
			MachineID: match.MachineID,
			Message:   fmt.Sprintf("order %s assigned to machine %s", match.OrderID, match.MachineID),
			Time:      time.Now(),
		})
	}

	s.metrics.ObserveTick(time.Since(start))
	s.metrics.UpdateMachineStates(s.registry.List())
	return committed
}

// Advance reports job progress from the floor. The first call moves an
// assigned order to in_progress; reaching 100% completes the order and
// releases its machine.
func (s *Scheduler) Advance(orderID string, delta int) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.store.Get(orderID)
	if err != nil {
		return models.Order{}, err
	}

	if order.State == models.OrderStateAssigned {
		if err := s.store.Transition(orderID, models.OrderStateAssigned, models.OrderStateInProgress); err != nil {
			return models.Order{}, err
		}
		s.notifier.Notify(Event{
			Type:      EventOrderStarted,
			OrderID:   orderID,
			MachineID: order.AssignedMachineID,
			Message:   fmt.Sprintf("order %s started on machine %s", orderID, order.AssignedMachineID),
			Time:      time.Now(),
		})
	}

	progress, err := s.store.Progress(orderID, delta)
	if err != nil {
		return models.Order{}, err
	}

	if progress >= 100 {
		if err := s.store.Complete(orderID); err != nil {
			return models.Order{}, err
		}
		if err := s.registry.Release(order.AssignedMachineID); err != nil {
			log.Printf("Failed to release machine %s after order %s completed: %v", order.AssignedMachineID, orderID, err)
		}
		s.metrics.OrderCompleted()
		s.notifier.Notify(Event{
			Type:      EventOrderCompleted,
			OrderID:   orderID,
			MachineID: order.AssignedMachineID,
			Message:   fmt.Sprintf("order %s completed", orderID),
			Time:      time.Now(),
		})
	}

	return s.store.Get(orderID)
}

// HandleMachineFailure vacates a failed machine into error state and
// requeues the order it was holding, preserving its progress as the resume
// point. Called by the telemetry monitor on escalation and usable directly
// for externally reported faults.
func (s *Scheduler) HandleMachineFailure(machineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vacated, err := s.registry.Vacate(machineID, models.MachineStateError)
	if err != nil {
		return err
	}

	s.notifier.Notify(Event{
		Type:      EventMachineFailed,
		MachineID: machineID,
		OrderID:   vacated,
		Message:   fmt.Sprintf("machine %s entered error state", machineID),
		Time:      time.Now(),
	})

	if vacated != "" {
		s.requeueVacated(vacated, machineID)
	}
	return nil
}

// SetMaintenance moves a machine into or out of maintenance. Taking a busy
// machine down for maintenance vacates it and requeues its order through
// the same path as a failure.
func (s *Scheduler) SetMaintenance(machineID string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !on {
		if err := s.registry.Transition(machineID, models.MachineStateMaintenance, models.MachineStateIdle); err != nil {
			return err
		}
		s.notifyOperator(machineID, "maintenance cleared")
		return nil
	}

	vacated, err := s.registry.Vacate(machineID, models.MachineStateMaintenance)
	if err != nil {
		return err
	}
	s.notifyOperator(machineID, "maintenance started")
	if vacated != "" {
		s.requeueVacated(vacated, machineID)
	}
	return nil
}

// SetPower takes a machine offline or restores it. Powering off a busy
// machine vacates it and requeues its order.
func (s *Scheduler) SetPower(machineID string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if on {
		if err := s.registry.Transition(machineID, models.MachineStateOffline, models.MachineStateIdle); err != nil {
			return err
		}
		s.notifyOperator(machineID, "powered on")
		return nil
	}

	vacated, err := s.registry.Vacate(machineID, models.MachineStateOffline)
	if err != nil {
		return err
	}
	s.notifyOperator(machineID, "powered off")
	if vacated != "" {
		s.requeueVacated(vacated, machineID)
	}
	return nil
}

// Reset returns a machine from error to idle after operator intervention.
func (s *Scheduler) Reset(machineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Transition(machineID, models.MachineStateError, models.MachineStateIdle); err != nil {
		return err
	}
	s.notifyOperator(machineID, "error cleared")
	return nil
}

// Pause suspends an in-progress order. The machine is not released: pausing
// holds the resource, unlike a failure-triggered requeue.
func (s *Scheduler) Pause(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Transition(orderID, models.OrderStateInProgress, models.OrderStatePaused); err != nil {
		return err
	}
	s.notifier.Notify(Event{
		Type:    EventOrderPaused,
		OrderID: orderID,
		Message: fmt.Sprintf("order %s paused", orderID),
		Time:    time.Now(),
	})
	return nil
}

// Resume continues a paused order on the machine it still holds.
func (s *Scheduler) Resume(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Transition(orderID, models.OrderStatePaused, models.OrderStateInProgress); err != nil {
		return err
	}
	s.notifier.Notify(Event{
		Type:    EventOrderResumed,
		OrderID: orderID,
		Message: fmt.Sprintf("order %s resumed", orderID),
		Time:    time.Now(),
	})
	return nil
}

// Cancel terminates an order. A pending order is removed from the store
// immediately; a bound order transitions to failed and its machine is
// released.
func (s *Scheduler) Cancel(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.store.Get(orderID)
	if err != nil {
		return err
	}

	switch {
	case order.State == models.OrderStatePending:
		if err := s.store.Remove(orderID); err != nil {
			return err
		}
	case order.State.Bound():
		if err := s.store.Fail(orderID); err != nil {
			return err
		}
		if err := s.registry.Release(order.AssignedMachineID); err != nil {
			log.Printf("Failed to release machine %s after cancelling order %s: %v", order.AssignedMachineID, orderID, err)
		}
		s.metrics.OrderFailed()
	default:
		return fmt.Errorf("%w: order %s is already %s", orders.ErrConflict, orderID, order.State)
	}

	s.notifier.Notify(Event{
		Type:    EventOrderCancelled,
		OrderID: orderID,
		Message: fmt.Sprintf("order %s cancelled", orderID),
		Time:    time.Now(),
	})
	return nil
}

// Run executes assignment passes on a fixed interval until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Scheduler loop started (interval %s)", interval)
	for {
		select {
		case <-ticker.C:
			if n := s.Tick(); n > 0 {
				log.Printf("Scheduler committed %d assignment(s)", n)
			}
		case <-ctx.Done():
			log.Println("Scheduler loop stopped")
			return
		}
	}
}

// requeueVacated returns an order to pending after its machine was lost, or
// forces it to failed once retries are exhausted. Caller holds s.mu.
func (s *Scheduler) requeueVacated(orderID, machineID string) {
	err := s.store.Requeue(orderID, s.maxRetries)
	switch {
	case err == nil:
		s.metrics.OrderRequeued()
		s.notifier.Notify(Event{
			Type:      EventOrderRequeued,
			OrderID:   orderID,
			MachineID: machineID,
			Message:   fmt.Sprintf("order %s requeued after losing machine %s", orderID, machineID),
			Time:      time.Now(),
		})
	case errors.Is(err, orders.ErrRetriesExhausted):
		s.metrics.OrderFailed()
		s.notifier.Notify(Event{
			Type:      EventOrderFailed,
			OrderID:   orderID,
			MachineID: machineID,
			Message:   fmt.Sprintf("order %s failed: retries exhausted", orderID),
			Time:      time.Now(),
		})
	default:
		log.Printf("Failed to requeue order %s from machine %s: %v", orderID, machineID, err)
	}
}

func (s *Scheduler) notifyOperator(machineID, message string) {
	s.notifier.Notify(Event{
		Type:      EventMachineOperator,
		MachineID: machineID,
		Message:   fmt.Sprintf("machine %s: %s", machineID, message),
		Time:      time.Now(),
	})
}
