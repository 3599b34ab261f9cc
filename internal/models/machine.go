package models

import "time"

// MachineState represents the operational state of a production machine
type MachineState string

const (
	// Machine states
	MachineStateIdle        MachineState = "idle"
	MachineStateBusy        MachineState = "busy"
	MachineStateWarning     MachineState = "warning"
	MachineStateMaintenance MachineState = "maintenance"
	MachineStateOffline     MachineState = "offline"
	MachineStateError       MachineState = "error"
)

// machineTransitions is the closed transition table for machine states.
// Telemetry may only move machines between idle/busy/warning/error;
// maintenance and offline are entered and exited by operator calls alone.
var machineTransitions = map[MachineState][]MachineState{
	MachineStateIdle:        {MachineStateBusy, MachineStateWarning, MachineStateMaintenance, MachineStateOffline, MachineStateError},
	MachineStateBusy:        {MachineStateIdle, MachineStateWarning, MachineStateMaintenance, MachineStateOffline, MachineStateError},
	MachineStateWarning:     {MachineStateIdle, MachineStateBusy, MachineStateMaintenance, MachineStateOffline, MachineStateError},
	MachineStateMaintenance: {MachineStateIdle},
	MachineStateOffline:     {MachineStateIdle},
	MachineStateError:       {MachineStateIdle, MachineStateMaintenance, MachineStateOffline},
}

// CanTransition reports whether a machine may move from one state to another.
func (s MachineState) CanTransition(to MachineState) bool {
	for _, next := range machineTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Assignable reports whether the assignment policy may select a machine in
// this state. Only idle machines accept new work; warning blocks new
// assignment without interrupting a running job.
func (s MachineState) Assignable() bool {
	return s == MachineStateIdle
}

// Telemetry holds the last observed sensor readings for a machine.
type Telemetry struct {
	Temperature   float64   `json:"temperature"`
	EfficiencyPct float64   `json:"efficiency_pct"`
	Vibration     float64   `json:"vibration"`
	Pressure      float64   `json:"pressure"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Machine represents a production machine on the factory floor.
// Invariant: CurrentOrderID is set if and only if State == busy. The
// registry updates the two fields jointly so no reader can observe a
// contradictory combination.
type Machine struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Type           string       `json:"type"`
	Location       string       `json:"location,omitempty"`
	State          MachineState `json:"state"`
	CurrentOrderID string       `json:"current_order_id,omitempty"`
	Capabilities   []string     `json:"capabilities"`
	Telemetry      Telemetry    `json:"telemetry"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// HasCapability reports whether the machine can perform the given job type.
func (m *Machine) HasCapability(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
