package reconcile

import (
	"sort"

	"github.com/Jwl06/civicledger360/models"
)

// Mismatch pairs the two copies of a record that disagree.
type Mismatch struct {
	ID      int64            `json:"id"`
	Backend models.Violation `json:"backend"`
	Chain   models.Violation `json:"chain"`
}

// Report lists how the two stores diverge. Ids are ascending.
type Report struct {
	OnlyBackend    []int64    `json:"onlyBackend"`
	OnlyChain      []int64    `json:"onlyChain"`
	StatusMismatch []Mismatch `json:"statusMismatch"`
	FineMismatch   []Mismatch `json:"fineMismatch"`
}

// Divergent reports whether anything differs.
func (r Report) Divergent() bool {
	return len(r.OnlyBackend) > 0 || len(r.OnlyChain) > 0 || len(r.StatusMismatch) > 0 || len(r.FineMismatch) > 0
}

// Diff compares two full listings without changing either store.
func Diff(backend, chain []models.Violation) Report {
	b := index(backend)
	c := index(chain)

	var r Report
	for id, bv := range b {
		cv, ok := c[id]
		if !ok {
			r.OnlyBackend = append(r.OnlyBackend, id)
			continue
		}
		if bv.Status != cv.Status {
			r.StatusMismatch = append(r.StatusMismatch, Mismatch{ID: id, Backend: bv, Chain: cv})
		} else if !bv.FineAmount.Equal(cv.FineAmount) {
			r.FineMismatch = append(r.FineMismatch, Mismatch{ID: id, Backend: bv, Chain: cv})
		}
	}
	for id := range c {
		if _, ok := b[id]; !ok {
			r.OnlyChain = append(r.OnlyChain, id)
		}
	}

	sortIDs(r.OnlyBackend)
	sortIDs(r.OnlyChain)
	sort.Slice(r.StatusMismatch, func(i, j int) bool { return r.StatusMismatch[i].ID < r.StatusMismatch[j].ID })
	sort.Slice(r.FineMismatch, func(i, j int) bool { return r.FineMismatch[i].ID < r.FineMismatch[j].ID })
	return r
}

func index(list []models.Violation) map[int64]models.Violation {
	m := make(map[int64]models.Violation, len(list))
	for _, v := range list {
		if _, ok := m[v.ID]; !ok {
			m[v.ID] = v
		}
	}
	return m
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
