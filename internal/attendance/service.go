package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/techvaseegrah/gymsaas-sub001/internal/billing"
	"github.com/techvaseegrah/gymsaas-sub001/internal/face"
	"github.com/techvaseegrah/gymsaas-sub001/internal/lock"
	"github.com/techvaseegrah/gymsaas-sub001/internal/metrics"
	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
)

const publishTimeout = 2 * time.Second

// Roster resolves fighter identities.
type Roster interface {
	Get(ctx context.Context, id string) (*roster.Fighter, error)
	GetByRFID(ctx context.Context, rfid string) (*roster.Fighter, error)
	GetMany(ctx context.Context, ids []string) (map[string]roster.Fighter, error)
}

// Subscriptions reports when a fighter's membership ends. A zero time is open ended.
type Subscriptions interface {
	EndDate(ctx context.Context, fighterID string) (time.Time, error)
}

// Event is published after every committed punch.
type Event struct {
	PunchID     string    `json:"punchId"`
	FighterID   string    `json:"fighterId"`
	FighterName string    `json:"fighterName"`
	RFID        string    `json:"rfid"`
	Action      Action    `json:"action"`
	Source      Source    `json:"source"`
	At          time.Time `json:"at"`
	Date        string    `json:"date"`
	Missed      bool      `json:"missedPrevious,omitempty"`
	Late        bool      `json:"late,omitempty"`
	Warning     string    `json:"warning,omitempty"`
}

// Publisher receives committed punch events. Failures are logged, never surfaced.
type Publisher interface {
	PublishPunch(ctx context.Context, evt Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, evt Event) error

func (f PublisherFunc) PublishPunch(ctx context.Context, evt Event) error { return f(ctx, evt) }

// FighterRef is the fighter summary returned with lookups and punches.
type FighterRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	RFID string `json:"rfid"`
}

func refOf(f *roster.Fighter) FighterRef {
	return FighterRef{ID: f.ID, Name: f.Name, RFID: f.RFID}
}

// Status is a dry-run answer: what the fighter's next punch would be.
type Status struct {
	Fighter    FighterRef `json:"fighter"`
	NextAction Action     `json:"nextAction"`
}

// Result describes a committed punch.
type Result struct {
	Fighter FighterRef `json:"fighter"`
	Action  Action     `json:"action"`
	Date    string     `json:"date"`
	Time    time.Time  `json:"time"`
	// Missed is set when this check-in superseded a dangling one from an earlier day.
	Missed   bool     `json:"missedPrevious,omitempty"`
	Late     bool     `json:"late,omitempty"`
	Warning  string   `json:"warning,omitempty"`
	Distance *float64 `json:"matchDistance,omitempty"`
}

// Message is the human readable confirmation shown by the kiosk.
func (r Result) Message() string {
	var msg string
	switch {
	case r.Late:
		msg = fmt.Sprintf("Late check-out recorded for %s on %s", r.Fighter.Name, r.Date)
	case r.Action == ActionIn:
		msg = fmt.Sprintf("Check-in recorded for %s", r.Fighter.Name)
	default:
		msg = fmt.Sprintf("Check-out recorded for %s", r.Fighter.Name)
	}
	if r.Missed {
		msg += " (previous check-out was missed)"
	}
	return msg
}

// PunchRequest carries everything a commit needs besides the fighter.
type PunchRequest struct {
	Source   Source
	Location *Geo
	Mode     Mode
}

// Options configures a Service.
type Options struct {
	Calendar     Calendar
	FaceCooldown time.Duration
	Geofence     Geofence
	Matcher      face.Matcher
	Publishers   []Publisher
	Now          func() time.Time
}

// Service resolves and records punches.
type Service struct {
	store    Store
	roster   Roster
	subs     Subscriptions
	locks    lock.Locker
	matcher  face.Matcher
	pubs     []Publisher
	cal      Calendar
	cooldown time.Duration
	fence    Geofence
	now      func() time.Time
}

// NewService wires the punch pipeline.
func NewService(store Store, rost Roster, subs Subscriptions, locks lock.Locker, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    store,
		roster:   rost,
		subs:     subs,
		locks:    locks,
		matcher:  opts.Matcher,
		pubs:     opts.Publishers,
		cal:      opts.Calendar,
		cooldown: opts.FaceCooldown,
		fence:    opts.Geofence,
		now:      now,
	}
}

// Calendar returns the operational calendar in use.
func (s *Service) Calendar() Calendar { return s.cal }

// PeekNextAction computes the fighter's next action without locking or writing.
func (s *Service) PeekNextAction(ctx context.Context, fighterID string) (Action, error) {
	last, err := s.store.LatestPunch(ctx, fighterID)
	if err != nil {
		return "", fmt.Errorf("latest punch: %w", err)
	}
	d, err := Resolve(last, s.now(), s.cal, ModeScan)
	if err != nil {
		return "", err
	}
	return d.Action, nil
}

// PeekByRFID is the dry-run half of the RFID flow.
func (s *Service) PeekByRFID(ctx context.Context, rfid string) (Status, error) {
	f, err := s.roster.GetByRFID(ctx, rfid)
	if err != nil {
		return Status{}, err
	}
	return s.status(ctx, f)
}

// PeekSelf is PeekByRFID for a logged-in fighter; the card must be their own.
func (s *Service) PeekSelf(ctx context.Context, fighterID, rfid string) (Status, error) {
	f, err := s.ownFighter(ctx, fighterID, rfid)
	if err != nil {
		return Status{}, err
	}
	return s.status(ctx, f)
}

func (s *Service) status(ctx context.Context, f *roster.Fighter) (Status, error) {
	next, err := s.PeekNextAction(ctx, f.ID)
	if err != nil {
		return Status{}, err
	}
	return Status{Fighter: refOf(f), NextAction: next}, nil
}

// PunchByRFID commits an admin kiosk RFID scan.
func (s *Service) PunchByRFID(ctx context.Context, rfid string, loc *Geo) (Result, error) {
	f, err := s.roster.GetByRFID(ctx, rfid)
	if err != nil {
		return Result{}, err
	}
	return s.commit(ctx, f, PunchRequest{Source: SourceRFID, Location: loc})
}

// SelfPunch commits a fighter's own punch from the self-service page.
func (s *Service) SelfPunch(ctx context.Context, fighterID, rfid string, loc *Geo) (Result, error) {
	f, err := s.ownFighter(ctx, fighterID, rfid)
	if err != nil {
		return Result{}, err
	}
	return s.commit(ctx, f, PunchRequest{Source: SourceSelf, Location: loc})
}

// PunchByFace identifies the fighter from a descriptor and commits in one step.
func (s *Service) PunchByFace(ctx context.Context, descriptor []float64, loc *Geo) (Result, error) {
	if s.matcher == nil {
		return Result{}, errors.New("face matching not configured")
	}
	m, err := s.matcher.Match(ctx, descriptor)
	if err != nil {
		if errors.Is(err, face.ErrNoMatch) {
			metrics.PunchRejections.WithLabelValues("no_face_match").Inc()
			return Result{}, fmt.Errorf("%w: no enrolled face matched", ErrFighterNotFound)
		}
		return Result{}, fmt.Errorf("face match: %w", err)
	}
	f, err := s.roster.Get(ctx, m.FighterID)
	if err != nil {
		return Result{}, err
	}
	res, err := s.commit(ctx, f, PunchRequest{Source: SourceFace, Location: loc})
	if err != nil {
		return Result{}, err
	}
	dist := m.Distance
	res.Distance = &dist
	return res, nil
}

// CloseOpen is the admin correction for a dangling check-in from an earlier day: it
// stamps a late check-out on that day's record. An open check-in from today is closed
// normally.
func (s *Service) CloseOpen(ctx context.Context, fighterID string, loc *Geo) (Result, error) {
	f, err := s.roster.Get(ctx, fighterID)
	if err != nil {
		return Result{}, err
	}
	return s.commit(ctx, f, PunchRequest{Source: SourceAdmin, Location: loc, Mode: ModeClose})
}

// ResolvePunch is the commit half of the two step flow. The role is always recomputed
// under the fighter's lock.
func (s *Service) ResolvePunch(ctx context.Context, fighterID string, req PunchRequest) (Result, error) {
	f, err := s.roster.Get(ctx, fighterID)
	if err != nil {
		return Result{}, err
	}
	return s.commit(ctx, f, req)
}

func (s *Service) ownFighter(ctx context.Context, fighterID, rfid string) (*roster.Fighter, error) {
	f, err := s.roster.Get(ctx, fighterID)
	if err != nil {
		return nil, err
	}
	if roster.NormalizeRFID(rfid) != f.RFID {
		metrics.PunchRejections.WithLabelValues("rfid_mismatch").Inc()
		return nil, ErrRFIDMismatch
	}
	return f, nil
}

func (s *Service) commit(ctx context.Context, f *roster.Fighter, req PunchRequest) (Result, error) {
	log := zap.L().With(zap.String("fighter_id", f.ID), zap.String("source", string(req.Source)))

	if err := s.checkSubscription(ctx, f.ID); err != nil {
		if errors.Is(err, ErrSubscriptionExpired) {
			metrics.PunchRejections.WithLabelValues("subscription_expired").Inc()
		}
		return Result{}, err
	}

	loc := req.Location
	if loc != nil && !loc.Valid() {
		log.Warn("dropping invalid punch location", zap.Float64("lat", loc.Latitude), zap.Float64("lng", loc.Longitude))
		loc = nil
	}

	var (
		res     Result
		punchID string
		err     error
	)
	for attempt := 0; attempt < 2; attempt++ {
		res, punchID, err = s.commitOnce(ctx, f, req.Source, loc, req.Mode)
		if !retryable(err) {
			break
		}
		log.Debug("punch contended, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	switch {
	case err == nil:
	case retryable(err):
		metrics.PunchRejections.WithLabelValues("concurrent").Inc()
		log.Warn("punch contended after retry", zap.Error(err))
		return Result{}, ErrConcurrentPunch
	case errors.Is(err, ErrTooSoon):
		metrics.PunchRejections.WithLabelValues("too_soon").Inc()
		return Result{}, err
	case errors.Is(err, ErrNoOpenCheckIn):
		metrics.PunchRejections.WithLabelValues("no_open_checkin").Inc()
		return Result{}, err
	default:
		return Result{}, err
	}

	res.Warning = s.fence.Warning(loc)
	if res.Warning != "" {
		log.Info("punch outside geofence", zap.String("warning", res.Warning))
	}
	metrics.Punches.WithLabelValues(string(res.Action), string(req.Source)).Inc()
	log.Info("punch recorded",
		zap.String("action", string(res.Action)),
		zap.String("date", res.Date),
		zap.Bool("missed_previous", res.Missed),
		zap.Bool("late", res.Late),
	)
	s.publish(ctx, Event{
		PunchID:     punchID,
		FighterID:   f.ID,
		FighterName: f.Name,
		RFID:        f.RFID,
		Action:      res.Action,
		Source:      req.Source,
		At:          res.Time,
		Date:        res.Date,
		Missed:      res.Missed,
		Late:        res.Late,
		Warning:     res.Warning,
	})
	return res, nil
}

func retryable(err error) bool {
	return errors.Is(err, lock.ErrBusy) || errors.Is(err, ErrStale)
}

func (s *Service) commitOnce(ctx context.Context, f *roster.Fighter, src Source, loc *Geo, mode Mode) (Result, string, error) {
	started := time.Now()
	release, err := s.locks.Acquire(ctx, lockKey(f.ID))
	metrics.LockWait.Observe(time.Since(started).Seconds())
	if err != nil {
		return Result{}, "", err
	}
	defer release()

	now := s.now()
	if src == SourceFace && s.cooldown > 0 {
		prev, err := s.store.LatestPunchFrom(ctx, f.ID, SourceFace)
		if err != nil {
			return Result{}, "", fmt.Errorf("latest face punch: %w", err)
		}
		if prev != nil && now.Sub(prev.At) < s.cooldown {
			return Result{}, "", ErrTooSoon
		}
	}

	last, err := s.store.LatestPunch(ctx, f.ID)
	if err != nil {
		return Result{}, "", fmt.Errorf("latest punch: %w", err)
	}
	d, err := Resolve(last, now, s.cal, mode)
	if err != nil {
		return Result{}, "", err
	}
	var expect int64
	if last != nil {
		expect = last.Seq
	}
	written, err := s.store.Append(ctx, f.ID, expect, d.Punches(f.ID, now, loc, src))
	if err != nil {
		return Result{}, "", fmt.Errorf("append punch: %w", err)
	}
	primary := written[len(written)-1]

	return Result{
		Fighter: refOf(f),
		Action:  d.Action,
		Date:    FormatDate(d.Day),
		Time:    now,
		Missed:  d.Superseded != nil,
		Late:    d.Late,
	}, primary.ID, nil
}

func lockKey(fighterID string) string { return "punch:" + fighterID }

func (s *Service) checkSubscription(ctx context.Context, fighterID string) error {
	if s.subs == nil {
		return nil
	}
	end, err := s.subs.EndDate(ctx, fighterID)
	if err != nil {
		if errors.Is(err, billing.ErrNoSubscription) {
			return ErrSubscriptionExpired
		}
		return fmt.Errorf("subscription lookup: %w", err)
	}
	if end.IsZero() {
		return nil
	}
	if Date(end).Before(s.cal.Day(s.now())) {
		return ErrSubscriptionExpired
	}
	return nil
}

func (s *Service) publish(ctx context.Context, evt Event) {
	if len(s.pubs) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	for _, p := range s.pubs {
		if err := p.PublishPunch(pctx, evt); err != nil {
			zap.L().Warn("publish punch event failed", zap.String("punch_id", evt.PunchID), zap.Error(err))
		}
	}
}

// History returns one fighter's day records in [from, to], newest first. Zero bounds
// are open.
func (s *Service) History(ctx context.Context, fighterID string, from, to time.Time) ([]DayRecord, error) {
	f, err := s.roster.Get(ctx, fighterID)
	if err != nil {
		return nil, err
	}
	recs, err := s.records(ctx, Query{FighterID: fighterID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	out := make([]DayRecord, 0, len(recs))
	for _, r := range recs {
		v := r.View()
		v.FighterName = f.Name
		v.RFID = f.RFID
		out = append(out, v)
	}
	return out, nil
}

// HistoryAll returns every fighter's day records in [from, to] with name and RFID filled in.
func (s *Service) HistoryAll(ctx context.Context, from, to time.Time) ([]DayRecord, error) {
	recs, err := s.records(ctx, Query{From: from, To: to})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, r := range recs {
		if _, ok := seen[r.FighterID]; !ok {
			seen[r.FighterID] = struct{}{}
			ids = append(ids, r.FighterID)
		}
	}
	sort.Strings(ids)
	fighters, err := s.roster.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load fighters: %w", err)
	}
	out := make([]DayRecord, 0, len(recs))
	for _, r := range recs {
		v := r.View()
		if f, ok := fighters[r.FighterID]; ok {
			v.FighterName = f.Name
			v.RFID = f.RFID
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) records(ctx context.Context, q Query) ([]Record, error) {
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return nil, ErrInvalidRange
	}
	recs, err := s.store.Records(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return recs, nil
}
