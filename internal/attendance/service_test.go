package attendance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techvaseegrah/gymsaas-sub001/internal/billing"
	"github.com/techvaseegrah/gymsaas-sub001/internal/face"
	"github.com/techvaseegrah/gymsaas-sub001/internal/lock"
	"github.com/techvaseegrah/gymsaas-sub001/internal/queue"
	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type stubMatcher struct{ id string }

func (m stubMatcher) Match(context.Context, []float64) (face.Match, error) {
	if m.id == "" {
		return face.Match{}, face.ErrNoMatch
	}
	return face.Match{FighterID: m.id, Distance: 0.2}, nil
}

type fixture struct {
	svc    *Service
	roster *roster.Service
	store  *MemoryStore
	subs   *billing.Memory
	clock  *fakeClock
	events []Event
	mu     sync.Mutex
}

const (
	fighterID = "f-arjun"
	otherID   = "f-meera"
)

func newFixture(t *testing.T, tweak ...func(*Options)) *fixture {
	t.Helper()
	ctx := context.Background()

	people := roster.NewMemoryStore()
	require.NoError(t, people.Create(ctx, &roster.Fighter{ID: fighterID, Name: "Arjun", RFID: "AR1001"}))
	require.NoError(t, people.Create(ctx, &roster.Fighter{ID: otherID, Name: "Meera", RFID: "ME2002"}))

	fx := &fixture{
		store: NewMemoryStore(),
		subs:  billing.NewMemory(true),
		clock: &fakeClock{t: at(10, 9, 0, 0)},
	}
	opts := Options{
		Calendar:     utc,
		FaceCooldown: 2 * time.Minute,
		Matcher:      stubMatcher{id: fighterID},
		Now:          fx.clock.Now,
		Publishers: []Publisher{PublisherFunc(func(_ context.Context, e Event) error {
			fx.mu.Lock()
			defer fx.mu.Unlock()
			fx.events = append(fx.events, e)
			return nil
		})},
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	fx.roster = roster.NewService(people, 0)
	fx.svc = NewService(fx.store, fx.roster, fx.subs, lock.NewLocal(time.Second), opts)
	return fx
}

// openCount is 1 when the fighter's latest state-bearing punch is a check-in.
func (fx *fixture) openCount(t *testing.T, id string) int {
	t.Helper()
	last, err := fx.store.LatestPunch(context.Background(), id)
	require.NoError(t, err)
	if last.Open() {
		return 1
	}
	return 0
}

func TestPunchesAlternate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	want := []Action{ActionIn, ActionOut, ActionIn, ActionOut}
	for i, w := range want {
		fx.clock.Set(at(10, 9+i, 0, 0))
		next, err := fx.svc.PeekNextAction(ctx, fighterID)
		require.NoError(t, err)
		assert.Equal(t, w, next)

		res, err := fx.svc.PunchByRFID(ctx, "ar1001", nil)
		require.NoError(t, err)
		assert.Equal(t, w, res.Action)
		assert.LessOrEqual(t, fx.openCount(t, fighterID), 1)
	}

	views, err := fx.svc.History(ctx, fighterID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Len(t, views[0].CheckIns, 2)
	assert.Len(t, views[0].CheckOuts, 2)
	assert.Equal(t, "02:00:00", views[0].Duration)
	assert.Equal(t, "Arjun", views[0].FighterName)
	assert.Len(t, fx.events, 4)
}

func TestPeekDoesNotWrite(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	st, err := fx.svc.PeekByRFID(ctx, "AR1001")
	require.NoError(t, err)
	assert.Equal(t, ActionIn, st.NextAction)
	assert.Equal(t, FighterRef{ID: fighterID, Name: "Arjun", RFID: "AR1001"}, st.Fighter)

	recs, err := fx.store.Records(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = fx.svc.PeekByRFID(ctx, "ZZ9999")
	assert.ErrorIs(t, err, ErrFighterNotFound)
}

func TestMissedCheckOutSupersededNextDay(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.clock.Set(at(10, 9, 0, 0))
	_, err := fx.svc.PunchByRFID(ctx, "AR1001", nil)
	require.NoError(t, err)

	fx.clock.Set(at(11, 8, 0, 0))
	next, err := fx.svc.PeekNextAction(ctx, fighterID)
	require.NoError(t, err)
	assert.Equal(t, ActionIn, next)

	res, err := fx.svc.PunchByRFID(ctx, "AR1001", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionIn, res.Action)
	assert.True(t, res.Missed)
	assert.Equal(t, "2026-03-11", res.Date)
	assert.Contains(t, res.Message(), "missed")
	assert.Equal(t, 1, fx.openCount(t, fighterID))

	views, err := fx.svc.History(ctx, fighterID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, views, 2)

	d11, d10 := views[0], views[1]
	assert.Equal(t, "2026-03-10", d10.Date)
	assert.True(t, d10.MissedCheckOut)
	assert.Len(t, d10.CheckIns, 1)
	assert.Empty(t, d10.CheckOuts)
	assert.Equal(t, "00:00:00", d10.Duration)

	assert.Equal(t, "2026-03-11", d11.Date)
	assert.False(t, d11.MissedCheckOut)
	require.Len(t, d11.CheckIns, 2)
	assert.True(t, d11.CheckIns[0].Missed)
	assert.Equal(t, "2026-03-10", d11.CheckIns[0].ClosesDate)
	assert.False(t, d11.CheckIns[1].Missed)
	assert.Equal(t, at(11, 8, 0, 0), d11.CheckIns[1].Time)

	fx.clock.Set(at(11, 10, 0, 0))
	res, err = fx.svc.PunchByRFID(ctx, "AR1001", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionOut, res.Action)
	assert.False(t, res.Missed)

	views, err = fx.svc.History(ctx, fighterID, at(11, 0, 0, 0), at(11, 0, 0, 0))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "02:00:00", views[0].Duration)
}

func TestAdminCloseLate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.clock.Set(at(10, 9, 0, 0))
	_, err := fx.svc.PunchByRFID(ctx, "AR1001", nil)
	require.NoError(t, err)

	fx.clock.Set(at(11, 10, 0, 0))
	res, err := fx.svc.CloseOpen(ctx, fighterID, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionOut, res.Action)
	assert.True(t, res.Late)
	assert.Equal(t, "2026-03-10", res.Date)
	assert.Equal(t, 0, fx.openCount(t, fighterID))

	views, err := fx.svc.History(ctx, fighterID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "2026-03-10", views[0].Date)
	assert.False(t, views[0].MissedCheckOut)
	require.Len(t, views[0].CheckOuts, 1)
	assert.True(t, views[0].CheckOuts[0].Late)
	assert.Equal(t, at(11, 10, 0, 0), views[0].CheckOuts[0].Time)
	assert.Equal(t, "25:00:00", views[0].Duration)

	_, err = fx.svc.CloseOpen(ctx, fighterID, nil)
	assert.ErrorIs(t, err, ErrNoOpenCheckIn)

	fx.clock.Set(at(11, 10, 5, 0))
	res, err = fx.svc.PunchByRFID(ctx, "AR1001", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionIn, res.Action)
	assert.Equal(t, "2026-03-11", res.Date)
}

func TestAdminCloseSameDay(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.PunchByRFID(ctx, "AR1001", nil)
	require.NoError(t, err)

	fx.clock.Set(at(10, 12, 0, 0))
	res, err := fx.svc.CloseOpen(ctx, fighterID, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionOut, res.Action)
	assert.False(t, res.Late)
}

func TestFaceCooldown(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	desc := []float64{0.1, 0.2}

	fx.clock.Set(at(10, 9, 0, 0))
	res, err := fx.svc.PunchByFace(ctx, desc, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionIn, res.Action)
	require.NotNil(t, res.Distance)

	fx.clock.Set(at(10, 9, 1, 0))
	_, err = fx.svc.PunchByFace(ctx, desc, nil)
	assert.ErrorIs(t, err, ErrTooSoon)

	// A rejected punch writes nothing.
	st, err := fx.svc.PeekByRFID(ctx, "AR1001")
	require.NoError(t, err)
	assert.Equal(t, ActionOut, st.NextAction)

	fx.clock.Set(at(10, 9, 2, 1))
	res, err = fx.svc.PunchByFace(ctx, desc, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionOut, res.Action)
}

func TestFaceNoMatch(t *testing.T) {
	fx := newFixture(t, func(o *Options) { o.Matcher = stubMatcher{} })
	_, err := fx.svc.PunchByFace(context.Background(), []float64{1}, nil)
	assert.ErrorIs(t, err, ErrFighterNotFound)
}

func TestSubscriptionExpired(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.clock.Set(at(10, 9, 0, 0))

	fx.subs.Set(fighterID, at(9, 0, 0, 0))
	_, err := fx.svc.PunchByRFID(ctx, "AR1001", nil)
	assert.ErrorIs(t, err, ErrSubscriptionExpired)
	_, err = fx.svc.PunchByFace(ctx, []float64{1}, nil)
	assert.ErrorIs(t, err, ErrSubscriptionExpired)

	recs, err := fx.store.Records(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, fx.events)

	fx.subs.Set(fighterID, at(10, 0, 0, 0))
	_, err = fx.svc.PunchByRFID(ctx, "AR1001", nil)
	assert.NoError(t, err)
}

func TestNoSubscriptionIsExpired(t *testing.T) {
	fx := newFixture(t)
	fx.svc.subs = billing.NewMemory(false)
	_, err := fx.svc.PunchByRFID(context.Background(), "AR1001", nil)
	assert.ErrorIs(t, err, ErrSubscriptionExpired)
}

func TestSelfPunch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.SelfPunch(ctx, fighterID, "ME2002", nil)
	assert.ErrorIs(t, err, ErrRFIDMismatch)
	_, err = fx.svc.PeekSelf(ctx, fighterID, "ME2002")
	assert.ErrorIs(t, err, ErrRFIDMismatch)

	st, err := fx.svc.PeekSelf(ctx, fighterID, "ar1001")
	require.NoError(t, err)
	assert.Equal(t, ActionIn, st.NextAction)

	res, err := fx.svc.SelfPunch(ctx, fighterID, "AR1001", &Geo{Latitude: 11, Longitude: 77})
	require.NoError(t, err)
	assert.Equal(t, ActionIn, res.Action)
	require.Len(t, fx.events, 1)
	assert.Equal(t, SourceSelf, fx.events[0].Source)
}

func TestGeofenceWarnsButRecords(t *testing.T) {
	gym := Geo{Latitude: 11.0168, Longitude: 76.9558}
	fx := newFixture(t, func(o *Options) { o.Geofence = Geofence{Center: gym, MaxMeters: 100} })
	ctx := context.Background()

	res, err := fx.svc.PunchByRFID(ctx, "AR1001", &Geo{Latitude: 12, Longitude: 77})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)

	views, err := fx.svc.History(ctx, fighterID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].CheckIns[0].Location)

	fx.clock.Set(at(10, 10, 0, 0))
	res, err = fx.svc.PunchByRFID(ctx, "AR1001", &Geo{Latitude: 200, Longitude: 0})
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
}

func TestHistoryAll(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.clock.Set(at(10, 9, 0, 0))
	_, err := fx.svc.PunchByRFID(ctx, "AR1001", nil)
	require.NoError(t, err)
	fx.clock.Set(at(11, 9, 0, 0))
	_, err = fx.svc.PunchByRFID(ctx, "ME2002", nil)
	require.NoError(t, err)

	all, err := fx.svc.HistoryAll(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Meera", all[0].FighterName)
	assert.Equal(t, "ME2002", all[0].RFID)
	assert.Equal(t, "Arjun", all[1].FighterName)

	ranged, err := fx.svc.HistoryAll(ctx, at(10, 0, 0, 0), at(10, 0, 0, 0))
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, fighterID, ranged[0].FighterID)

	_, err = fx.svc.HistoryAll(ctx, at(12, 0, 0, 0), at(10, 0, 0, 0))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = fx.svc.History(ctx, "nobody", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrFighterNotFound)
}

func TestConcurrentPunchesSerialize(t *testing.T) {
	fx := newFixture(t, func(o *Options) { o.Publishers = nil })
	ctx := context.Background()
	fx.svc.locks = lock.NewLocal(0)

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		actions = map[Action]int{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fx.svc.PunchByRFID(ctx, "AR1001", nil)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			actions[res.Action]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, n/2, actions[ActionIn])
	assert.Equal(t, n/2, actions[ActionOut])
	assert.Equal(t, 0, fx.openCount(t, fighterID))

	recs, err := fx.store.Records(ctx, Query{FighterID: fighterID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	for i, p := range recs[0].Punches {
		want := ActionIn
		if i%2 == 1 {
			want = ActionOut
		}
		assert.Equal(t, want, p.Action, "punch %d", i)
	}
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (func(), error) { return nil, lock.ErrBusy }

func TestBusyLockSurfacesConflict(t *testing.T) {
	fx := newFixture(t)
	fx.svc.locks = busyLocker{}

	_, err := fx.svc.PunchByRFID(context.Background(), "AR1001", nil)
	assert.ErrorIs(t, err, ErrConcurrentPunch)
	assert.Empty(t, fx.events)
}

func TestStaleAppend(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	day := Date(at(10, 0, 0, 0))

	written, err := s.Append(ctx, fighterID, 0, []Punch{{Day: day, Action: ActionIn, At: at(10, 9, 0, 0)}})
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.NotEmpty(t, written[0].ID)
	assert.NotEmpty(t, written[0].RecordID)

	_, err = s.Append(ctx, fighterID, 0, []Punch{{Day: day, Action: ActionOut, At: at(10, 10, 0, 0)}})
	assert.ErrorIs(t, err, ErrStale)

	_, err = s.Append(ctx, fighterID, written[0].Seq, []Punch{{Day: day, Action: ActionOut, At: at(10, 10, 0, 0)}})
	assert.NoError(t, err)
}

func TestFullQueueDoesNotStallPunches(t *testing.T) {
	q := queue.NewInMemory(2)
	fx := newFixture(t, func(o *Options) {
		o.Publishers = []Publisher{PublisherFunc(func(ctx context.Context, e Event) error {
			return queue.PublishJSON(ctx, q, queue.TypePunch, e)
		})}
	})
	ctx := context.Background()

	started := time.Now()
	for i := 0; i < 6; i++ {
		fx.clock.Set(at(10, 9, i, 0))
		_, err := fx.svc.PunchByRFID(ctx, "AR1001", nil)
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(started), publishTimeout)
}

func TestSubscriptionEndDateInGymTimezone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"endDate":"2026-03-10T18:30:00.000Z"}`))
	}))
	defer srv.Close()

	ist := time.FixedZone("IST", 5*3600+1800)
	fx := newFixture(t)
	svc := NewService(fx.store, fx.roster, billing.New(srv.URL, ist), lock.NewLocal(time.Second), Options{
		Calendar: Calendar{Loc: ist},
		Now:      fx.clock.Now,
	})
	ctx := context.Background()

	fx.clock.Set(time.Date(2026, 3, 11, 10, 0, 0, 0, ist))
	res, err := svc.PunchByRFID(ctx, "AR1001", nil)
	require.NoError(t, err, "last day of the subscription")
	assert.Equal(t, "2026-03-11", res.Date)

	fx.clock.Set(time.Date(2026, 3, 12, 10, 0, 0, 0, ist))
	_, err = svc.PunchByRFID(ctx, "AR1001", nil)
	assert.ErrorIs(t, err, ErrSubscriptionExpired)
}
