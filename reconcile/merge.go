// Package reconcile merges the backend and chain views of the review queue.
package reconcile

import (
	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/store"
)

// MergePendingViolations returns the union of both lists keyed by id. When an id
// appears in both, the backend record wins. The result is newest first, then by id
// descending, so identical inputs always give identical output.
func MergePendingViolations(backend, chain []models.Violation) []models.Violation {
	byID := make(map[int64]models.Violation, len(backend)+len(chain))
	for _, v := range chain {
		if _, seen := byID[v.ID]; !seen {
			byID[v.ID] = v
		}
	}
	backendSeen := make(map[int64]bool, len(backend))
	for _, v := range backend {
		if backendSeen[v.ID] {
			continue
		}
		backendSeen[v.ID] = true
		byID[v.ID] = v
	}

	merged := make([]models.Violation, 0, len(byID))
	for _, v := range byID {
		merged = append(merged, v)
	}
	store.SortNewestFirst(merged)
	return merged
}
