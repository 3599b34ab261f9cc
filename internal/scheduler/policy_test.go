package scheduler

import (
	"reflect"
	"testing"
	"time"

	"shopfloor/internal/models"
)

func pendingOrder(id string, priority models.Priority, capability string, age time.Duration) models.Order {
	return models.Order{
		ID:                 id,
		Priority:           priority,
		RequiredCapability: capability,
		State:              models.OrderStatePending,
		CreatedAt:          time.Now().Add(-age),
	}
}

func idleMachine(id string, capabilities ...string) models.Machine {
	return models.Machine{ID: id, State: models.MachineStateIdle, Capabilities: capabilities}
}

func TestSelectFirstFit(t *testing.T) {
	pending := []models.Order{
		pendingOrder("O1", models.PriorityUrgent, "milling", 2*time.Minute),
		pendingOrder("O2", models.PriorityHigh, "milling", time.Minute),
	}
	available := []models.Machine{
		idleMachine("M001", "milling"),
		idleMachine("M002", "milling"),
	}

	got := Select(pending, available)
	want := []Assignment{
		{OrderID: "O1", MachineID: "M001"},
		{OrderID: "O2", MachineID: "M002"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestSelectPriorityWinsContestedMachine(t *testing.T) {
	// One milling machine, urgent and medium both want it.
	pending := []models.Order{
		pendingOrder("urgent", models.PriorityUrgent, "milling", time.Minute),
		pendingOrder("medium", models.PriorityMedium, "milling", 2*time.Minute),
	}
	available := []models.Machine{idleMachine("M001", "milling")}

	got := Select(pending, available)
	if len(got) != 1 || got[0].OrderID != "urgent" {
		t.Errorf("Select() = %v, want the urgent order on M001", got)
	}
}

func TestSelectSkipsIncompatibleWithoutBlocking(t *testing.T) {
	// The high-priority order has no compatible machine; it must not block
	// the lower-priority order targeting a different capability.
	pending := []models.Order{
		pendingOrder("O1", models.PriorityHigh, "molding", time.Minute),
		pendingOrder("O2", models.PriorityLow, "pressing", 2*time.Minute),
	}
	available := []models.Machine{idleMachine("M001", "pressing")}

	got := Select(pending, available)
	if len(got) != 1 || got[0].OrderID != "O2" || got[0].MachineID != "M001" {
		t.Errorf("Select() = %v, want O2 on M001", got)
	}
}

func TestSelectNeverDoubleClaims(t *testing.T) {
	pending := []models.Order{
		pendingOrder("O1", models.PriorityUrgent, "milling", 3*time.Minute),
		pendingOrder("O2", models.PriorityHigh, "milling", 2*time.Minute),
		pendingOrder("O3", models.PriorityMedium, "drilling", time.Minute),
	}
	// M001 supports both capabilities; once claimed for O1 it may not be
	// reused for O3.
	available := []models.Machine{idleMachine("M001", "milling", "drilling")}

	got := Select(pending, available)
	if len(got) != 1 {
		t.Fatalf("Select() returned %d assignments, want 1", len(got))
	}
	if got[0].OrderID != "O1" {
		t.Errorf("Select() assigned %s, want O1", got[0].OrderID)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	pending := []models.Order{
		pendingOrder("O1", models.PriorityUrgent, "milling", 4*time.Minute),
		pendingOrder("O2", models.PriorityUrgent, "milling", 3*time.Minute),
		pendingOrder("O3", models.PriorityLow, "pressing", 2*time.Minute),
		pendingOrder("O4", models.PriorityMedium, "drilling", time.Minute),
	}
	available := []models.Machine{
		idleMachine("M001", "milling", "drilling"),
		idleMachine("M002", "milling"),
		idleMachine("M003", "pressing"),
	}

	first := Select(pending, available)
	second := Select(pending, available)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Select() is not deterministic: %v vs %v", first, second)
	}
}

func TestSelectEmptyInputs(t *testing.T) {
	if got := Select(nil, []models.Machine{idleMachine("M001", "milling")}); len(got) != 0 {
		t.Errorf("Select() with no orders = %v, want empty", got)
	}
	if got := Select([]models.Order{pendingOrder("O1", models.PriorityHigh, "milling", 0)}, nil); len(got) != 0 {
		t.Errorf("Select() with no machines = %v, want empty", got)
	}
}
