package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process. Used by the memory backend and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	records map[string]*Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func recordKey(fighterID string, day time.Time) string {
	return fighterID + "|" + FormatDate(day)
}

func punchBefore(a, b Punch) bool {
	if a.At.Equal(b.At) {
		return a.Seq < b.Seq
	}
	return a.At.Before(b.At)
}

func (m *MemoryStore) latest(fighterID string, keep func(Punch) bool) *Punch {
	var best *Punch
	for _, r := range m.records {
		if r.FighterID != fighterID {
			continue
		}
		for i := range r.Punches {
			p := r.Punches[i]
			if p.Missed || !keep(p) {
				continue
			}
			if best == nil || punchBefore(*best, p) {
				cp := clonePunch(p)
				best = &cp
			}
		}
	}
	return best
}

func (m *MemoryStore) LatestPunch(_ context.Context, fighterID string) (*Punch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest(fighterID, func(Punch) bool { return true }), nil
}

func (m *MemoryStore) LatestPunchFrom(_ context.Context, fighterID string, src Source) (*Punch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest(fighterID, func(p Punch) bool { return p.Source == src }), nil
}

func (m *MemoryStore) Append(_ context.Context, fighterID string, expectSeq int64, punches []Punch) ([]Punch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	if last := m.latest(fighterID, func(Punch) bool { return true }); last != nil {
		current = last.Seq
	}
	if current != expectSeq {
		return nil, ErrStale
	}

	written := make([]Punch, 0, len(punches))
	for _, p := range punches {
		key := recordKey(fighterID, p.Day)
		r, ok := m.records[key]
		if !ok {
			r = &Record{ID: uuid.NewString(), FighterID: fighterID, Day: p.Day}
			m.records[key] = r
		}
		m.seq++
		p.ID = uuid.NewString()
		p.Seq = m.seq
		p.RecordID = r.ID
		p.FighterID = fighterID
		r.Punches = append(r.Punches, clonePunch(p))
		sort.SliceStable(r.Punches, func(i, j int) bool { return punchBefore(r.Punches[i], r.Punches[j]) })
		written = append(written, p)
	}
	return written, nil
}

func (m *MemoryStore) Records(_ context.Context, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	closed := make(map[string]bool)
	for _, r := range m.records {
		for _, p := range r.Punches {
			if p.Missed {
				closed[recordKey(r.FighterID, p.ClosesDay)] = true
			}
		}
	}

	out := make([]Record, 0)
	for key, r := range m.records {
		if q.FighterID != "" && r.FighterID != q.FighterID {
			continue
		}
		if !q.From.IsZero() && r.Day.Before(Date(q.From)) {
			continue
		}
		if !q.To.IsZero() && r.Day.After(Date(q.To)) {
			continue
		}
		cp := Record{
			ID:             r.ID,
			FighterID:      r.FighterID,
			Day:            r.Day,
			Punches:        make([]Punch, 0, len(r.Punches)),
			MissedCheckOut: closed[key],
		}
		for _, p := range r.Punches {
			cp.Punches = append(cp.Punches, clonePunch(p))
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day.Equal(out[j].Day) {
			return out[i].FighterID < out[j].FighterID
		}
		return out[i].Day.After(out[j].Day)
	})
	return out, nil
}

func clonePunch(p Punch) Punch {
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	return p
}
