package database

import (
	"strings"
	"time"

	"shopfloor/internal/models"

	"github.com/jinzhu/gorm"
)

// MachineRecord is the persisted row for a machine.
type MachineRecord struct {
	gorm.Model
	MachineID      string `gorm:"unique_index"`
	Name           string
	Type           string
	Location       string
	State          string
	CurrentOrderID string
	Capabilities   string // comma-separated tags
	Temperature    float64
	EfficiencyPct  float64
	Vibration      float64
	Pressure       float64
	ObservedAt     time.Time
}

// OrderRecord is the persisted row for a production order.
type OrderRecord struct {
	gorm.Model
	OrderID            string `gorm:"unique_index"`
	Product            string
	Quantity           int
	Priority           string
	RequiredCapability string
	State              string
	AssignedMachineID  string
	ProgressPct        int
	RetryCount         int
	SubmittedAt        time.Time
	CompletedAt        *time.Time
}

// NewMachineRecord flattens an engine machine into its persisted row.
func NewMachineRecord(m models.Machine) MachineRecord {
	return MachineRecord{
		MachineID:      m.ID,
		Name:           m.Name,
		Type:           m.Type,
		Location:       m.Location,
		State:          string(m.State),
		CurrentOrderID: m.CurrentOrderID,
		Capabilities:   strings.Join(m.Capabilities, ","),
		Temperature:    m.Telemetry.Temperature,
		EfficiencyPct:  m.Telemetry.EfficiencyPct,
		Vibration:      m.Telemetry.Vibration,
		Pressure:       m.Telemetry.Pressure,
		ObservedAt:     m.Telemetry.ObservedAt,
	}
}

// NewOrderRecord flattens an engine order into its persisted row.
func NewOrderRecord(o models.Order) OrderRecord {
	return OrderRecord{
		OrderID:            o.ID,
		Product:            o.Product,
		Quantity:           o.Quantity,
		Priority:           string(o.Priority),
		RequiredCapability: o.RequiredCapability,
		State:              string(o.State),
		AssignedMachineID:  o.AssignedMachineID,
		ProgressPct:        o.ProgressPct,
		RetryCount:         o.RetryCount,
		SubmittedAt:        o.CreatedAt,
		CompletedAt:        o.CompletedAt,
	}
}
