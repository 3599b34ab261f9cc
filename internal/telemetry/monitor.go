package telemetry

import (
	"fmt"
	"log"
	"sync"
	"time"

	"shopfloor/internal/models"
	"shopfloor/internal/monitoring"
	"shopfloor/internal/registry"
	"shopfloor/internal/scheduler"
)

// Reading is one sensor sample reported for a machine.
type Reading struct {
	MachineID     string    `json:"machine_id"`
	Temperature   float64   `json:"temperature"`
	EfficiencyPct float64   `json:"efficiency_pct"`
	Vibration     float64   `json:"vibration"`
	Pressure      float64   `json:"pressure"`
	Timestamp     time.Time `json:"timestamp"`
}

// Thresholds configures the health rules applied to readings.
type Thresholds struct {
	// MaxTemperature marks a machine warning when exceeded.
	MaxTemperature float64
	// MinEfficiencyPct marks a machine warning when efficiency drops below it.
	// Low efficiency never escalates to error.
	MinEfficiencyPct float64
	// GraceWindow is how long a machine may run a job over temperature
	// before it is failed and vacated.
	GraceWindow time.Duration
}

// FailureHandler escalates a machine that overheated past the grace window.
// The scheduler implements it; escalation requeues the order the machine
// was holding.
type FailureHandler interface {
	HandleMachineFailure(machineID string) error
}

// Monitor consumes raw sensor readings and derives machine health
// transitions. It only ever writes machine state and telemetry — order
// bindings stay with the scheduler, which the monitor reaches solely
// through the failure handler.
//
// maintenance and offline are sticky: no reading moves a machine out of
// them. error is likewise left for an explicit operator reset.
type Monitor struct {
	registry   *registry.Registry
	thresholds Thresholds
	metrics    *monitoring.Metrics
	notifier   scheduler.Notifier
	failures   FailureHandler

	mu sync.Mutex
	// first over-temperature timestamp per machine that was running a job,
	// for the grace-window escalation.
	hotSince map[string]time.Time
	// bounded ring of recent readings per machine, for trend charts.
	history     map[string][]Reading
	historySize int
}

// NewMonitor creates a health monitor over the given registry.
func NewMonitor(reg *registry.Registry, thresholds Thresholds, historySize int, metrics *monitoring.Metrics, notifier scheduler.Notifier, failures FailureHandler) *Monitor {
	if notifier == nil {
		notifier = scheduler.NopNotifier{}
	}
	return &Monitor{
		registry:    reg,
		thresholds:  thresholds,
		metrics:     metrics,
		notifier:    notifier,
		failures:    failures,
		hotSince:    make(map[string]time.Time),
		history:     make(map[string][]Reading),
		historySize: historySize,
	}
}

// Report ingests one reading: records it, then applies the threshold rules
// to derive the machine's health state. Fire-and-forget for callers; an
// unknown machine is the only reported error.
func (m *Monitor) Report(r Reading) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	m.metrics.TelemetryReading()

	machine, err := m.registry.Get(r.MachineID)
	if err != nil {
		return fmt.Errorf("telemetry for unknown machine: %w", err)
	}

	if err := m.registry.SetTelemetry(r.MachineID, models.Telemetry{
		Temperature:   r.Temperature,
		EfficiencyPct: r.EfficiencyPct,
		Vibration:     r.Vibration,
		Pressure:      r.Pressure,
		ObservedAt:    r.Timestamp,
	}); err != nil {
		return err
	}
	m.record(r)

	m.applyRules(machine, r)
	return nil
}

// GetHistory returns the recent readings recorded for a machine, oldest
// first.
func (m *Monitor) GetHistory(machineID string) []Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	readings := m.history[machineID]
	out := make([]Reading, len(readings))
	copy(out, readings)
	return out
}

// applyRules derives the health transition for one reading. Lost CAS races
// against the scheduler are benign: the next reading reconciles.
func (m *Monitor) applyRules(machine models.Machine, r Reading) {
	switch machine.State {
	case models.MachineStateMaintenance, models.MachineStateOffline, models.MachineStateError:
		// Sticky states: readings are recorded but never transition out.
		m.clearHotSince(r.MachineID)
		return
	}

	overheat := r.Temperature > m.thresholds.MaxTemperature
	degraded := overheat || r.EfficiencyPct < m.thresholds.MinEfficiencyPct

	if overheat && machine.CurrentOrderID != "" {
		if m.escalate(r) {
			return
		}
	} else {
		m.clearHotSince(r.MachineID)
	}

	switch {
	case degraded && (machine.State == models.MachineStateIdle || machine.State == models.MachineStateBusy):
		if err := m.registry.Transition(r.MachineID, machine.State, models.MachineStateWarning); err != nil {
			log.Printf("Telemetry warning transition for machine %s dropped: %v", r.MachineID, err)
			return
		}
		m.notifier.Notify(scheduler.Event{
			Type:      scheduler.EventMachineWarning,
			MachineID: r.MachineID,
			Message:   fmt.Sprintf("machine %s degraded (temp %.1f, efficiency %.1f%%)", r.MachineID, r.Temperature, r.EfficiencyPct),
			Time:      r.Timestamp,
		})

	case !degraded && machine.State == models.MachineStateWarning:
		// Revert to whichever side of warning the machine came from: busy if
		// it still holds its order, idle otherwise. Never to error or
		// maintenance — those need operator action.
		target := models.MachineStateIdle
		if machine.CurrentOrderID != "" {
			target = models.MachineStateBusy
		}
		if err := m.registry.Transition(r.MachineID, models.MachineStateWarning, target); err != nil {
			log.Printf("Telemetry recovery transition for machine %s dropped: %v", r.MachineID, err)
			return
		}
		m.notifier.Notify(scheduler.Event{
			Type:      scheduler.EventMachineRecovered,
			MachineID: r.MachineID,
			Message:   fmt.Sprintf("machine %s back to nominal", r.MachineID),
			Time:      r.Timestamp,
		})
	}
}

// escalate tracks sustained over-temperature on a machine holding a job and
// fails the machine once the grace window is exceeded. Reports whether the
// machine was escalated.
func (m *Monitor) escalate(r Reading) bool {
	m.mu.Lock()
	since, tracking := m.hotSince[r.MachineID]
	if !tracking {
		m.hotSince[r.MachineID] = r.Timestamp
		m.mu.Unlock()
		return false
	}
	expired := r.Timestamp.Sub(since) > m.thresholds.GraceWindow
	if expired {
		delete(m.hotSince, r.MachineID)
	}
	m.mu.Unlock()

	if !expired {
		return false
	}

	log.Printf("Machine %s over temperature for more than %s, failing it", r.MachineID, m.thresholds.GraceWindow)
	if err := m.failures.HandleMachineFailure(r.MachineID); err != nil {
		log.Printf("Failed to escalate machine %s: %v", r.MachineID, err)
		return false
	}
	return true
}

func (m *Monitor) clearHotSince(machineID string) {
	m.mu.Lock()
	delete(m.hotSince, machineID)
	m.mu.Unlock()
}

func (m *Monitor) record(r Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()

	readings := append(m.history[r.MachineID], r)
	if len(readings) > m.historySize {
		readings = readings[len(readings)-m.historySize:]
	}
	m.history[r.MachineID] = readings
}
