package roster

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps fighters in process. Used by the memory backend and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	fighters map[string]*Fighter
	byRFID   map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fighters: make(map[string]*Fighter),
		byRFID:   make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, f *Fighter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRFID[f.RFID]; ok {
		return ErrRFIDTaken
	}
	cp := cloneFighter(*f)
	m.fighters[f.ID] = &cp
	m.byRFID[f.RFID] = f.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Fighter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fighters[id]
	if !ok {
		return nil, ErrFighterNotFound
	}
	cp := cloneFighter(*f)
	return &cp, nil
}

func (m *MemoryStore) GetByRFID(ctx context.Context, rfid string) (*Fighter, error) {
	m.mu.RLock()
	id, ok := m.byRFID[rfid]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrFighterNotFound
	}
	return m.Get(ctx, id)
}

func (m *MemoryStore) GetMany(_ context.Context, ids []string) (map[string]Fighter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Fighter, len(ids))
	for _, id := range ids {
		if f, ok := m.fighters[id]; ok {
			out[id] = cloneFighter(*f)
		}
	}
	return out, nil
}

func (m *MemoryStore) RFIDExists(_ context.Context, rfid string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byRFID[rfid]
	return ok, nil
}

func (m *MemoryStore) ReplaceDescriptors(_ context.Context, id string, descriptors []Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fighters[id]
	if !ok {
		return ErrFighterNotFound
	}
	f.Descriptors = cloneDescriptors(descriptors)
	return nil
}

func (m *MemoryStore) Descriptors(_ context.Context) ([]Enrolled, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.fighters))
	for id := range m.fighters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Enrolled
	for _, id := range ids {
		for _, d := range m.fighters[id].Descriptors {
			out = append(out, Enrolled{FighterID: id, Descriptor: d})
		}
	}
	return out, nil
}

func cloneFighter(f Fighter) Fighter {
	f.Descriptors = cloneDescriptors(f.Descriptors)
	return f
}

func cloneDescriptors(in []Descriptor) []Descriptor {
	if in == nil {
		return nil
	}
	out := make([]Descriptor, len(in))
	for i, d := range in {
		out[i] = Descriptor{Values: append([]float64(nil), d.Values...), CapturedAt: d.CapturedAt}
	}
	return out
}
