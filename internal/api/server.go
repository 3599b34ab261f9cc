package api

import (
	"errors"
	"net/http"

	"shopfloor/internal/models"
	"shopfloor/internal/orders"
	"shopfloor/internal/registry"
	"shopfloor/internal/scheduler"
	"shopfloor/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// FloorAPI represents the REST surface of the scheduling engine, consumed
// by dashboards and floor collaborators.
type FloorAPI struct {
	Router    *gin.Engine
	scheduler *scheduler.Scheduler
	monitor   *telemetry.Monitor
	hub       *Hub
}

// NewFloorAPI creates the API over a running engine.
func NewFloorAPI(sched *scheduler.Scheduler, monitor *telemetry.Monitor, hub *Hub) *FloorAPI {
	api := &FloorAPI{
		Router:    gin.Default(),
		scheduler: sched,
		monitor:   monitor,
		hub:       hub,
	}
	api.setupRoutes()
	return api
}

// setupRoutes configures all API endpoints
func (f *FloorAPI) setupRoutes() {
	// Health check
	f.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "shopfloor scheduling engine is running"})
	})

	// Live event feed
	f.Router.GET("/ws", f.hub.HandleWebSocket)

	v1 := f.Router.Group("/api/v1")
	{
		// Order management
		v1.POST("/orders", f.SubmitOrder)
		v1.GET("/orders/:id", f.GetOrder)
		v1.DELETE("/orders/:id", f.CancelOrder)
		v1.POST("/orders/:id/pause", f.PauseOrder)
		v1.POST("/orders/:id/resume", f.ResumeOrder)
		v1.POST("/orders/:id/advance", f.AdvanceOrder)

		// Machine operations
		v1.GET("/machines/:id", f.GetMachine)
		v1.POST("/machines/:id/maintenance", f.SetMaintenance)
		v1.POST("/machines/:id/power", f.SetPower)
		v1.POST("/machines/:id/reset", f.ResetMachine)

		// Telemetry ingestion
		v1.POST("/telemetry", f.ReportTelemetry)

		// Read API
		v1.GET("/snapshot", f.GetSnapshot)
	}
}

// SubmitOrder accepts a new production order into the queue.
func (f *FloorAPI) SubmitOrder(c *gin.Context) {
	var req struct {
		Product            string          `json:"product"`
		Quantity           int             `json:"quantity"`
		Priority           models.Priority `json:"priority"`
		RequiredCapability string          `json:"required_capability"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := f.scheduler.Submit(req.Product, req.Quantity, req.Priority, req.RequiredCapability)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrder returns a single order by ID.
func (f *FloorAPI) GetOrder(c *gin.Context) {
	order, err := f.scheduler.GetOrder(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder cancels a pending or running order.
func (f *FloorAPI) CancelOrder(c *gin.Context) {
	if err := f.scheduler.Cancel(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully"})
}

// PauseOrder suspends an in-progress order without releasing its machine.
func (f *FloorAPI) PauseOrder(c *gin.Context) {
	if err := f.scheduler.Pause(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order paused"})
}

// ResumeOrder continues a paused order.
func (f *FloorAPI) ResumeOrder(c *gin.Context) {
	if err := f.scheduler.Resume(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order resumed"})
}

// AdvanceOrder reports progress from the floor collaborator running the job.
func (f *FloorAPI) AdvanceOrder(c *gin.Context) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := f.scheduler.Advance(c.Param("id"), req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetMachine returns a machine with its recent telemetry history.
func (f *FloorAPI) GetMachine(c *gin.Context) {
	machine, err := f.scheduler.GetMachine(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"machine": machine,
		"history": f.monitor.GetHistory(machine.ID),
	})
}

// SetMaintenance moves a machine into or out of maintenance.
func (f *FloorAPI) SetMaintenance(c *gin.Context) {
	var req struct {
		On bool `json:"on"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := f.scheduler.SetMaintenance(c.Param("id"), req.On); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance state updated"})
}

// SetPower takes a machine offline or restores it.
func (f *FloorAPI) SetPower(c *gin.Context) {
	var req struct {
		On bool `json:"on"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := f.scheduler.SetPower(c.Param("id"), req.On); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Power state updated"})
}

// ResetMachine clears a machine's error state after operator intervention.
func (f *FloorAPI) ResetMachine(c *gin.Context) {
	if err := f.scheduler.Reset(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Machine reset"})
}

// ReportTelemetry ingests one sensor reading. Fire-and-forget for the
// monitoring collaborator: accepted readings return 202 immediately.
func (f *FloorAPI) ReportTelemetry(c *gin.Context) {
	var reading telemetry.Reading
	if err := c.ShouldBindJSON(&reading); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if reading.MachineID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "machine_id required"})
		return
	}

	if err := f.monitor.Report(reading); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Reading accepted"})
}

// GetSnapshot returns the consistent engine snapshot with fleet and order
// statistics.
func (f *FloorAPI) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, f.scheduler.Snapshot())
}

// respondError maps engine error classes to HTTP statuses: invalid input is
// 400, unknown IDs are 404 and stale-state conflicts are 409.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orders.ErrInvalidOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, registry.ErrMachineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrConflict), errors.Is(err, registry.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
