package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techvaseegrah/gymsaas-sub001/internal/attendance"
	"github.com/techvaseegrah/gymsaas-sub001/internal/queue"
)

type recordingSender struct {
	mu   sync.Mutex
	got  []attendance.Event
	fail bool
}

func (s *recordingSender) PunchRecorded(_ context.Context, evt attendance.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, evt)
	if s.fail {
		return errors.New("chat down")
	}
	return nil
}

func TestForward(t *testing.T) {
	ctx := context.Background()
	msgs := make(chan queue.Message, 4)
	msgs <- queue.Message{Type: "other", Body: []byte(`{}`)}
	msgs <- queue.Message{Type: queue.TypePunch, Body: []byte(`not json`)}
	msgs <- queue.Message{Type: queue.TypePunch, Body: []byte(`{"punchId":"p1","fighterId":"f1","action":"in","at":"2026-03-11T02:35:00Z"}`)}
	close(msgs)

	ist := time.FixedZone("IST", 5*3600+1800)
	var s recordingSender
	Forward(ctx, msgs, &s, ist)

	require.Len(t, s.got, 1)
	assert.Equal(t, "p1", s.got[0].PunchID)
	assert.Equal(t, "08:05", s.got[0].At.Format("15:04"))
}

func TestForwardKeepsGoingAfterFailure(t *testing.T) {
	q := queue.NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	s := &recordingSender{fail: true}
	done := make(chan struct{})
	go func() {
		Forward(ctx, msgs, s, nil)
		close(done)
	}()

	for _, id := range []string{"p1", "p2"} {
		require.NoError(t, queue.PublishJSON(ctx, q, queue.TypePunch, attendance.Event{PunchID: id, FighterID: "f1"}))
	}
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.got) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop")
	}
}
