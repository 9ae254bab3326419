// Package lock serializes work per key. Punches for one fighter take the same key;
// different fighters never contend.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when a key stays held past the wait budget.
var ErrBusy = errors.New("lock: busy")

// Locker acquires exclusive access to a key. The returned release func must be called
// exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process keyed mutex.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates a keyed mutex; wait bounds how long Acquire blocks (0 = until ctx ends).
func NewLocal(wait time.Duration) *Local {
	return &Local{wait: wait, slots: make(map[string]*slot)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key)
			})
		}, nil
	case <-timeout:
		l.unref(key)
		return nil, ErrBusy
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	}
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys currently have waiters or holders.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
