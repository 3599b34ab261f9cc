package scheduler

import "shopfloor/internal/models"

// Assignment pairs an order with the machine selected to run it.
type Assignment struct {
	OrderID   string
	MachineID string
}

// Select matches pending orders to available machines in a single greedy
// pass. It is a pure function of its snapshot arguments: called twice on
// identical input it returns the identical match set.
//
// Orders are visited in the store's scheduling order (priority desc,
// createdAt asc); each order takes the first compatible machine in registry
// insertion order that has not been claimed earlier in the same pass. An
// order with no compatible machine is skipped and does not block orders for
// other capabilities, so starvation is scoped per capability.
func Select(pending []models.Order, available []models.Machine) []Assignment {
	var matches []Assignment
	claimed := make(map[string]bool, len(available))

	for _, order := range pending {
		for i := range available {
			m := &available[i]
			if claimed[m.ID] || !m.HasCapability(order.RequiredCapability) {
				continue
			}
			claimed[m.ID] = true
			matches = append(matches, Assignment{OrderID: order.ID, MachineID: m.ID})
			break
		}
	}
	return matches
}
