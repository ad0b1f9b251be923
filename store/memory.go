package store

import (
	"context"
	"strings"
	"sync"

	"github.com/Jwl06/civicledger360/models"
)

// MemoryStore keeps records for the lifetime of the process in an ordered map keyed by id.
// Writes are serialized by a mutex so a review is observed either fully or not at all.
type MemoryStore struct {
	mu sync.RWMutex

	violations      map[int64]models.Violation
	violationOrder  []int64
	nextViolationID int64

	vehicles      map[int64]models.Vehicle
	vehicleOrder  []int64
	nextVehicleID int64
}

// NewMemoryStore creates an empty store. Ids start at 1 and are never reused.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		violations: make(map[int64]models.Violation),
		vehicles:   make(map[int64]models.Vehicle),
	}
}

// CreateViolation assigns the next id and appends v.
func (s *MemoryStore) CreateViolation(_ context.Context, v models.Violation) (models.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextViolationID++
	v.ID = s.nextViolationID
	v.Source = ""
	s.violations[v.ID] = v
	s.violationOrder = append(s.violationOrder, v.ID)
	return withSource(v), nil
}

// GetViolation returns the record with id.
func (s *MemoryStore) GetViolation(_ context.Context, id int64) (models.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.violations[id]
	if !ok {
		return models.Violation{}, models.ErrNotFound
	}
	return withSource(v), nil
}

// ListViolations returns matching records newest first.
func (s *MemoryStore) ListViolations(_ context.Context, f Filter) ([]models.Violation, error) {
	s.mu.RLock()
	out := make([]models.Violation, 0, len(s.violationOrder))
	for _, id := range s.violationOrder {
		v := s.violations[id]
		if f.Matches(v) {
			out = append(out, withSource(v))
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// UpdateViolation runs fn under the write lock and stores its result.
func (s *MemoryStore) UpdateViolation(_ context.Context, id int64, fn UpdateFunc) (models.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.violations[id]
	if !ok {
		return models.Violation{}, models.ErrNotFound
	}
	next, err := fn(withSource(current))
	if err != nil {
		return withSource(current), err
	}
	next.ID = id
	next.Source = ""
	s.violations[id] = next
	return withSource(next), nil
}

// CreateVehicle assigns the next vehicle id and appends v.
func (s *MemoryStore) CreateVehicle(_ context.Context, v models.Vehicle) (models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextVehicleID++
	v.ID = s.nextVehicleID
	s.vehicles[v.ID] = v
	s.vehicleOrder = append(s.vehicleOrder, v.ID)
	return v, nil
}

// GetVehicle returns the vehicle with id.
func (s *MemoryStore) GetVehicle(_ context.Context, id int64) (models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return models.Vehicle{}, models.ErrNotFound
	}
	return v, nil
}

// ListVehicles returns vehicles in registration order, optionally for one owner.
func (s *MemoryStore) ListVehicles(_ context.Context, owner string) ([]models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Vehicle, 0, len(s.vehicleOrder))
	for _, id := range s.vehicleOrder {
		v := s.vehicles[id]
		if owner != "" && !strings.EqualFold(v.OwnerAddress, owner) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func withSource(v models.Violation) models.Violation {
	v.Source = models.SourceBackend
	return v
}
