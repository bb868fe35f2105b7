// Package memory is an in-process installment store for development and
// tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"escola/internal/core"
	"escola/internal/storage"
)

type Store struct {
	mu     sync.RWMutex
	nextID core.InstallmentID
	items  map[core.InstallmentID]core.Installment
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1, items: make(map[core.InstallmentID]core.Installment)}
}

// NewFromFile seeds the store from a JSON array of installments. A missing
// file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed []core.Installment
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for _, inst := range seed {
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("seed installment %d: %w", inst.ID, err)
		}
		s.insertLocked(inst)
	}
	return s, nil
}

// insertLocked keeps a caller-supplied id, otherwise assigns the next one.
func (s *Store) insertLocked(inst core.Installment) core.Installment {
	if inst.ID == 0 {
		inst.ID = s.nextID
	}
	if inst.ID >= s.nextID {
		s.nextID = inst.ID + 1
	}
	if inst.Status == "" {
		inst.Status = core.StatusPending
	}
	s.items[inst.ID] = inst
	return inst
}

func (s *Store) Create(_ context.Context, inst core.Installment) (core.Installment, error) {
	if err := inst.Validate(); err != nil {
		return core.Installment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inst.ID = 0
	return s.insertLocked(inst), nil
}

// CreateMany validates the whole batch before inserting any of it.
func (s *Store) CreateMany(_ context.Context, insts []core.Installment) ([]core.Installment, error) {
	for i, inst := range insts {
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("installment %d of %d: %w", i+1, len(insts), err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := make([]core.Installment, 0, len(insts))
	for _, inst := range insts {
		inst.ID = 0
		created = append(created, s.insertLocked(inst))
	}
	return created, nil
}

func (s *Store) AppendToGroup(_ context.Context, inst core.Installment) (core.Installment, bool, error) {
	if err := inst.Validate(); err != nil {
		return core.Installment{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := core.KeyOf(inst)
	for _, existing := range s.items {
		if core.KeyOf(existing) == key && !existing.DueDate.Before(inst.DueDate) {
			return core.Installment{}, false, nil
		}
	}
	inst.ID = 0
	return s.insertLocked(inst), true, nil
}

func (s *Store) Get(_ context.Context, id core.InstallmentID) (core.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.items[id]
	if !ok {
		return core.Installment{}, fmt.Errorf("get installment %d: %w", id, storage.ErrNotFound)
	}
	return inst, nil
}

func (s *Store) ListByRecord(_ context.Context, recordID string) ([]core.Installment, error) {
	return s.filter(func(i core.Installment) bool { return i.RecordID == recordID }), nil
}

func (s *Store) ListGroup(_ context.Context, key core.GroupKey) ([]core.Installment, error) {
	return s.filter(func(i core.Installment) bool { return core.KeyOf(i) == key }), nil
}

func (s *Store) ListGroups(_ context.Context) ([]core.GroupKey, error) {
	s.mu.RLock()
	seen := make(map[core.GroupKey]bool)
	for _, inst := range s.items {
		seen[core.KeyOf(inst)] = true
	}
	s.mu.RUnlock()

	keys := make([]core.GroupKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].RecordID != keys[b].RecordID {
			return keys[a].RecordID < keys[b].RecordID
		}
		return keys[a].ItemType < keys[b].ItemType
	})
	return keys, nil
}

func (s *Store) MarkPaid(_ context.Context, id core.InstallmentID, on core.Date) (core.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.items[id]
	if !ok {
		return core.Installment{}, fmt.Errorf("mark installment %d paid: %w", id, storage.ErrNotFound)
	}
	if err := inst.MarkPaid(on); err != nil {
		return inst, err
	}
	s.items[id] = inst
	return inst, nil
}

func (s *Store) Close() error { return nil }

// filter returns matches ordered by item type, due date and id, the same
// order the sqlite repository uses.
func (s *Store) filter(keep func(core.Installment) bool) []core.Installment {
	s.mu.RLock()
	var out []core.Installment
	for _, inst := range s.items {
		if keep(inst) {
			out = append(out, inst)
		}
	}
	s.mu.RUnlock()

	core.SortByDueDate(out)
	sort.SliceStable(out, func(a, b int) bool { return out[a].ItemType < out[b].ItemType })
	return out
}
