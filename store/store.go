// Package store holds violation and vehicle records behind swappable interfaces.
package store

import (
	"context"
	"sort"
	"strings"

	"github.com/Jwl06/civicledger360/models"
)

// Filter narrows ListViolations. Zero values mean "any".
type Filter struct {
	Status        models.ViolationStatus
	Reporter      string // case-insensitive
	ViolationType models.ViolationType
	VehicleID     int64
	Limit         int
}

// Matches reports whether v passes every set criterion.
func (f Filter) Matches(v models.Violation) bool {
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.Reporter != "" && !strings.EqualFold(v.Reporter, f.Reporter) {
		return false
	}
	if f.ViolationType != "" && v.ViolationType != f.ViolationType {
		return false
	}
	if f.VehicleID != 0 && v.VehicleID != f.VehicleID {
		return false
	}
	return true
}

// UpdateFunc computes the next version of a record. Returning an error aborts the write.
type UpdateFunc func(current models.Violation) (models.Violation, error)

// ViolationStore is one independently writable collection of violations.
type ViolationStore interface {
	CreateViolation(ctx context.Context, v models.Violation) (models.Violation, error)
	GetViolation(ctx context.Context, id int64) (models.Violation, error)
	// ListViolations returns matches newest first; Limit is applied after sorting.
	ListViolations(ctx context.Context, f Filter) ([]models.Violation, error)
	// UpdateViolation applies fn to the current record as a single write.
	UpdateViolation(ctx context.Context, id int64, fn UpdateFunc) (models.Violation, error)
}

// VehicleStore holds registered vehicles. There is no update or delete path.
type VehicleStore interface {
	CreateVehicle(ctx context.Context, v models.Vehicle) (models.Vehicle, error)
	GetVehicle(ctx context.Context, id int64) (models.Vehicle, error)
	ListVehicles(ctx context.Context, owner string) ([]models.Vehicle, error)
}

// Store is the full backend store.
type Store interface {
	ViolationStore
	VehicleStore
}

// SortNewestFirst orders by submission time, newest first, then by id descending.
func SortNewestFirst(list []models.Violation) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].SubmittedAt.Equal(list[j].SubmittedAt) {
			return list[i].SubmittedAt.After(list[j].SubmittedAt)
		}
		return list[i].ID > list[j].ID
	})
}
