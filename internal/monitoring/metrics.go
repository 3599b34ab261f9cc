package monitoring

import (
	"net/http"
	"time"

	"shopfloor/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects scheduling engine metrics on a private Prometheus
// registry, served on the dedicated metrics port.
type Metrics struct {
	registry *prometheus.Registry

	ordersSubmitted   prometheus.Counter
	ordersAssigned    prometheus.Counter
	ordersCompleted   prometheus.Counter
	ordersRequeued    prometheus.Counter
	ordersFailed      prometheus.Counter
	assignConflicts   prometheus.Counter
	telemetryReadings prometheus.Counter
	machineStates     *prometheus.GaugeVec
	tickDuration      prometheus.Histogram
}

// NewMetrics creates and registers all engine collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_submitted_total",
			Help: "Production orders accepted into the store",
		}),
		ordersAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_assigned_total",
			Help: "Order-to-machine assignments committed by the scheduler",
		}),
		ordersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_completed_total",
			Help: "Orders that reached 100% progress",
		}),
		ordersRequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_requeued_total",
			Help: "Orders returned to pending after losing their machine",
		}),
		ordersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Orders that exhausted retries or were cancelled mid-run",
		}),
		assignConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assignment_conflicts_total",
			Help: "Assignment pairs dropped because a CAS transition lost a race",
		}),
		telemetryReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_readings_total",
			Help: "Sensor readings ingested by the health monitor",
		}),
		machineStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "machines_by_state",
			Help: "Machines currently in each operational state",
		}, []string{"state"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_tick_duration_seconds",
			Help:    "Duration of scheduler assignment passes",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.ordersSubmitted,
		m.ordersAssigned,
		m.ordersCompleted,
		m.ordersRequeued,
		m.ordersFailed,
		m.assignConflicts,
		m.telemetryReadings,
		m.machineStates,
		m.tickDuration,
	)
	return m
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OrderSubmitted counts an accepted submission.
func (m *Metrics) OrderSubmitted() { m.ordersSubmitted.Inc() }

// OrderAssigned counts a committed assignment.
func (m *Metrics) OrderAssigned() { m.ordersAssigned.Inc() }

// OrderCompleted counts a finished order.
func (m *Metrics) OrderCompleted() { m.ordersCompleted.Inc() }

// OrderRequeued counts a requeue after machine loss.
func (m *Metrics) OrderRequeued() { m.ordersRequeued.Inc() }

// OrderFailed counts a terminal failure.
func (m *Metrics) OrderFailed() { m.ordersFailed.Inc() }

// AssignConflict counts an assignment pair dropped on a lost CAS race.
func (m *Metrics) AssignConflict() { m.assignConflicts.Inc() }

// TelemetryReading counts an ingested sensor reading.
func (m *Metrics) TelemetryReading() { m.telemetryReadings.Inc() }

// ObserveTick records the duration of one assignment pass.
func (m *Metrics) ObserveTick(d time.Duration) { m.tickDuration.Observe(d.Seconds()) }

// UpdateMachineStates refreshes the per-state machine gauge from a fleet
// snapshot.
func (m *Metrics) UpdateMachineStates(machines []models.Machine) {
	counts := map[models.MachineState]int{
		models.MachineStateIdle:        0,
		models.MachineStateBusy:        0,
		models.MachineStateWarning:     0,
		models.MachineStateMaintenance: 0,
		models.MachineStateOffline:     0,
		models.MachineStateError:       0,
	}
	for _, machine := range machines {
		counts[machine.State]++
	}
	for state, n := range counts {
		m.machineStates.WithLabelValues(string(state)).Set(float64(n))
	}
}
