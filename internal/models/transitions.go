package models

// kitchenTransitions lists the allowed target statuses per source status.
// Terminal statuses have no entry.
var kitchenTransitions = map[KitchenStatus]map[KitchenStatus]bool{
	KitchenNew: {
		KitchenPreparing: true,
		KitchenCancelled: true,
	},
	KitchenPreparing: {
		KitchenInProgress: true,
		KitchenReady:      true,
		KitchenCancelled:  true,
	},
	KitchenInProgress: {
		KitchenReady:     true,
		KitchenCancelled: true,
	},
	KitchenReady: {
		KitchenServed:    true,
		KitchenCompleted: true,
	},
}

// IsValidTransition reports whether a kitchen order may move from one status to another
func IsValidTransition(from, to KitchenStatus) bool {
	return kitchenTransitions[from][to]
}

// IsTerminal reports whether the status has no outgoing transitions
func (s KitchenStatus) IsTerminal() bool {
	switch s {
	case KitchenCancelled, KitchenServed, KitchenCompleted:
		return true
	}
	return false
}
