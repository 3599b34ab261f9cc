package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopfloor/internal/models"
	"shopfloor/internal/monitoring"
	"shopfloor/internal/orders"
	"shopfloor/internal/registry"
	"shopfloor/internal/scheduler"
	"shopfloor/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	api   *FloorAPI
	sched *scheduler.Scheduler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(models.Machine{ID: "M001", Name: "Mill A1", Capabilities: []string{"milling"}}))
	store := orders.NewStore()
	metrics := monitoring.NewMetrics()
	hub := NewHub()
	sched := scheduler.NewScheduler(reg, store, 3, metrics, hub)
	monitor := telemetry.NewMonitor(reg, telemetry.Thresholds{
		MaxTemperature:   90,
		MinEfficiencyPct: 40,
		GraceWindow:      30 * time.Second,
	}, 60, metrics, hub, sched)

	return &testAPI{api: NewFloorAPI(sched, monitor, hub), sched: sched}
}

func (ta *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	ta.api.Router.ServeHTTP(w, req)
	return w
}

func (ta *testAPI) submitOrder(t *testing.T, priority string) models.Order {
	t.Helper()

	w := ta.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"product":             "Engine Block",
		"quantity":            500,
		"priority":            priority,
		"required_capability": "milling",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	return order
}

func TestHealthEndpoint(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestSubmitAndGetOrder(t *testing.T) {
	ta := newTestAPI(t)

	order := ta.submitOrder(t, "high")
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderStatePending, order.State)

	w := ta.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, models.PriorityHigh, got.Priority)
}

func TestSubmitOrderValidation(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"product":             "Engine Block",
		"quantity":            0,
		"priority":            "high",
		"required_capability": "milling",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ta.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"product":             "Engine Block",
		"quantity":            100,
		"priority":            "critical",
		"required_capability": "milling",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrderNotFound(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodGet, "/api/v1/orders/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdvanceOrderLifecycle(t *testing.T) {
	ta := newTestAPI(t)

	order := ta.submitOrder(t, "high")
	require.Equal(t, 1, ta.sched.Tick())

	w := ta.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/advance", order.ID), gin.H{"delta": 60})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.OrderStateInProgress, got.State)
	assert.Equal(t, 60, got.ProgressPct)

	w = ta.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/advance", order.ID), gin.H{"delta": 50})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.OrderStateCompleted, got.State)
	assert.Equal(t, 100, got.ProgressPct)
}

func TestPauseResumeConflicts(t *testing.T) {
	ta := newTestAPI(t)

	order := ta.submitOrder(t, "high")

	// Pausing a pending order is a stale-state conflict.
	w := ta.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/pause", order.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Equal(t, 1, ta.sched.Tick())
	_, err := ta.sched.Advance(order.ID, 30)
	require.NoError(t, err)

	w = ta.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/pause", order.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ta.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/resume", order.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelOrder(t *testing.T) {
	ta := newTestAPI(t)

	order := ta.submitOrder(t, "medium")
	w := ta.do(t, http.MethodDelete, "/api/v1/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ta.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetMachineWithHistory(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodPost, "/api/v1/telemetry", gin.H{
		"machine_id":     "M001",
		"temperature":    70.5,
		"efficiency_pct": 85,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = ta.do(t, http.MethodGet, "/api/v1/machines/M001", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Machine models.Machine      `json:"machine"`
		History []telemetry.Reading `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "M001", resp.Machine.ID)
	assert.Equal(t, 70.5, resp.Machine.Telemetry.Temperature)
	require.Len(t, resp.History, 1)
}

func TestTelemetryValidation(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodPost, "/api/v1/telemetry", gin.H{"temperature": 70})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ta.do(t, http.MethodPost, "/api/v1/telemetry", gin.H{"machine_id": "M999", "temperature": 70})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMachineOperations(t *testing.T) {
	ta := newTestAPI(t)

	w := ta.do(t, http.MethodPost, "/api/v1/machines/M001/maintenance", gin.H{"on": true})
	assert.Equal(t, http.StatusOK, w.Code)

	// Already in maintenance: repeat is a conflict.
	w = ta.do(t, http.MethodPost, "/api/v1/machines/M001/maintenance", gin.H{"on": true})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ta.do(t, http.MethodPost, "/api/v1/machines/M001/maintenance", gin.H{"on": false})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ta.do(t, http.MethodPost, "/api/v1/machines/M001/power", gin.H{"on": false})
	assert.Equal(t, http.StatusOK, w.Code)
	w = ta.do(t, http.MethodPost, "/api/v1/machines/M001/power", gin.H{"on": true})
	assert.Equal(t, http.StatusOK, w.Code)

	// Reset only applies to machines in error state.
	w = ta.do(t, http.MethodPost, "/api/v1/machines/M001/reset", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ta.do(t, http.MethodPost, "/api/v1/machines/M999/reset", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	ta := newTestAPI(t)

	order := ta.submitOrder(t, "urgent")
	require.Equal(t, 1, ta.sched.Tick())

	w := ta.do(t, http.MethodGet, "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap scheduler.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Machines, 1)
	require.Len(t, snap.Orders, 1)

	assert.Equal(t, models.MachineStateBusy, snap.Machines[0].State)
	assert.Equal(t, order.ID, snap.Machines[0].CurrentOrderID)
	assert.Equal(t, snap.Machines[0].ID, snap.Orders[0].AssignedMachineID)
	assert.Equal(t, 1, snap.Stats.Machines["busy"])
	assert.Equal(t, 1, snap.Stats.Orders["assigned"])
}
