package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrismart-bot/api/internal/events"
	"agrismart-bot/api/internal/form"
	"agrismart-bot/api/internal/predict"
	"agrismart-bot/api/internal/task"
)

var (
	// ErrBusy is returned by Submit while a request is already in flight.
	ErrBusy = errors.New("a prediction is already in flight")
	// ErrStale means a response arrived for a request that is no longer current.
	ErrStale = errors.New("response discarded: task no longer active")
)

// Transport executes a built request. *predict.Client satisfies it.
type Transport interface {
	Do(ctx context.Context, req predict.Request) (map[string]any, error)
}

// DraftStore persists raw form values between restarts.
type DraftStore interface {
	LoadDrafts(ctx context.Context, chatID int64) (map[task.Kind]map[string]string, error)
	SaveDraft(ctx context.Context, chatID int64, k task.Kind, values map[string]string) error
}

type Deps struct {
	Transport  Transport
	Classifier predict.Classifier
	Events     events.Publisher
	Drafts     DraftStore
	Logger     *zap.Logger
	Now        func() time.Time
}

func (d *Deps) defaults() {
	if d.Classifier == nil {
		d.Classifier = predict.ShapeClassifier{}
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Session is the prediction workflow of one chat: the active task, one form
// slice per task and a single outcome cell.
type Session struct {
	id    int64
	deps  Deps
	forms *form.Store
	log   *zap.Logger

	mu      sync.Mutex
	active  task.Kind
	outcome Outcome
	// pending is the outstanding network call. It is the busy slot and only
	// resolve clears it.
	pending *Ticket
	// current is the ticket whose response may still update the outcome. A
	// task switch drops it while the call stays pending.
	current *Ticket
}

func New(id int64, deps Deps) *Session {
	deps.defaults()
	return &Session{
		id:      id,
		deps:    deps,
		forms:   form.NewStore(),
		log:     deps.Logger.With(zap.Int64("chat_id", id)),
		active:  task.CropRecommendation,
		outcome: idle(),
	}
}

func (s *Session) ID() int64 { return s.id }

func (s *Session) Active() task.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Select makes k the active task. Switching to a different task resets the
// outcome to Idle and orphans any in-flight request, which still blocks new
// submissions until it resolves. Selecting the active task again changes
// nothing. It reports whether the active task changed.
func (s *Session) Select(k task.Kind) (bool, error) {
	if _, err := task.Lookup(k); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if k == s.active {
		return false, nil
	}
	if s.current != nil {
		s.log.Info("task switched while request in flight",
			zap.String("request_id", s.current.ID.String()),
			zap.String("from", string(s.active)),
			zap.String("to", string(k)),
		)
	}
	s.active = k
	s.outcome = idle()
	s.current = nil
	return true, nil
}

// Busy reports whether a network call is outstanding, including one orphaned
// by a task switch.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Outcome returns the current result cell.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Form returns the values of task k.
func (s *Session) Form(k task.Kind) (form.Snapshot, error) {
	return s.forms.Get(k)
}

// SetField stores raw for field of task k. It never blocks on an in-flight request.
func (s *Session) SetField(ctx context.Context, k task.Kind, field, raw string) (form.Snapshot, error) {
	snap, err := s.forms.Set(k, field, raw)
	if err != nil {
		return form.Snapshot{}, err
	}
	s.log.Debug("field set", zap.String("task", string(k)), zap.String("field", field))
	s.saveDraft(ctx, snap)
	return snap, nil
}

// SetImage holds img for task k; nil clears it.
func (s *Session) SetImage(k task.Kind, img *form.Image) (form.Snapshot, error) {
	return s.forms.SetImage(k, img)
}

func (s *Session) restore(drafts map[task.Kind]map[string]string) {
	for k, vals := range drafts {
		if err := s.forms.Restore(k, vals); err != nil {
			s.log.Warn("skip draft", zap.String("task", string(k)), zap.Error(err))
		}
	}
}

func (s *Session) saveDraft(ctx context.Context, snap form.Snapshot) {
	if s.deps.Drafts == nil {
		return
	}
	if err := s.deps.Drafts.SaveDraft(ctx, s.id, snap.Kind, snap.Values); err != nil {
		s.log.Warn("save draft failed", zap.String("task", string(snap.Kind)), zap.Error(err))
	}
}

// Submit runs one attempt for the active task and blocks until it resolves.
//
// While a request is outstanding, even one orphaned by a task switch, it
// returns ErrBusy and makes no call. A form that
// fails validation resolves to Failure at once, without a call. When the
// response arrives after the user switched tasks it is dropped and ErrStale is
// returned together with the outcome that would have applied.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.pending != nil {
		out := s.outcome
		s.mu.Unlock()
		return out, ErrBusy
	}
	k := s.active
	snap, err := s.forms.Get(k)
	if err != nil {
		s.mu.Unlock()
		return Outcome{}, err
	}
	req, err := predict.Build(k, snap)
	if err != nil {
		if !errors.Is(err, predict.ErrValidation) {
			s.mu.Unlock()
			return Outcome{}, fmt.Errorf("build %s request: %w", k, err)
		}
		s.outcome = failure(k, uuid.Nil, err)
		out := s.outcome
		s.mu.Unlock()
		s.log.Info("submission rejected", zap.String("task", string(k)), zap.Error(err))
		return out, nil
	}
	t := Ticket{ID: uuid.New(), Kind: k, IssuedAt: s.deps.Now()}
	s.pending = &t
	s.current = &t
	s.outcome = Outcome{Status: InFlight, Kind: k, RequestID: t.ID}
	s.mu.Unlock()

	s.log.Info("submitting prediction", zap.String("task", string(k)), zap.String("request_id", t.ID.String()))
	s.publish(ctx, events.Event{Type: events.Submitted, RequestID: t.ID.String(), Task: string(k), At: t.IssuedAt})

	data, err := s.deps.Transport.Do(ctx, req)
	return s.resolve(ctx, t, data, err)
}

func (s *Session) resolve(ctx context.Context, t Ticket, data map[string]any, callErr error) (Outcome, error) {
	var out Outcome
	if callErr != nil {
		out = failure(t.Kind, t.ID, callErr)
	} else {
		out = Outcome{
			Status:    Success,
			Kind:      t.Kind,
			RequestID: t.ID,
			Data:      data,
			Directive: s.deps.Classifier.Classify(data, t.Kind),
		}
	}
	took := s.deps.Now().Sub(t.IssuedAt)
	ev := events.Event{
		RequestID: t.ID.String(),
		Task:      string(t.Kind),
		Status:    string(out.Status),
		Error:     out.Message,
		TookMs:    took.Milliseconds(),
	}

	s.mu.Lock()
	if s.pending != nil && s.pending.ID == t.ID {
		s.pending = nil
	}
	current := s.current != nil && s.current.ID == t.ID && s.active == t.Kind
	if current {
		s.current = nil
		s.outcome = out
	}
	active := s.active
	s.mu.Unlock()

	if !current {
		s.log.Info("late response discarded",
			zap.String("request_id", t.ID.String()),
			zap.String("issued_for", string(t.Kind)),
			zap.String("active", string(active)),
		)
		ev.Type = events.Discarded
		s.publish(ctx, ev)
		return out, ErrStale
	}

	fields := []zap.Field{
		zap.String("request_id", t.ID.String()),
		zap.String("task", string(t.Kind)),
		zap.String("status", string(out.Status)),
		zap.Duration("took", took),
	}
	if out.Err != nil {
		fields = append(fields, zap.Error(out.Err))
	}
	s.log.Info("prediction resolved", fields...)
	ev.Type = events.Resolved
	s.publish(ctx, ev)
	return out, nil
}

func (s *Session) publish(ctx context.Context, e events.Event) {
	e.ChatID = s.id
	if err := s.deps.Events.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warn("publish event failed", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
