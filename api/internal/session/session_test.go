package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrismart-bot/api/internal/events"
	"agrismart-bot/api/internal/form"
	"agrismart-bot/api/internal/predict"
	"agrismart-bot/api/internal/task"
)

type reply struct {
	data map[string]any
	err  error
}

type call struct {
	req   predict.Request
	reply chan reply
}

// gatedTransport blocks each call until the test answers it.
type gatedTransport struct {
	mu      sync.Mutex
	n       int
	started chan call
}

func newGated() *gatedTransport {
	return &gatedTransport{started: make(chan call, 4)}
}

func (g *gatedTransport) Do(ctx context.Context, req predict.Request) (map[string]any, error) {
	g.mu.Lock()
	g.n++
	g.mu.Unlock()
	c := call{req: req, reply: make(chan reply, 1)}
	g.started <- c
	select {
	case r := <-c.reply:
		return r.data, r.err
	case <-ctx.Done():
		return nil, &predict.TransportError{Op: "send", Err: ctx.Err()}
	}
}

func (g *gatedTransport) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

type instant struct {
	data  map[string]any
	err   error
	calls int
}

func (i *instant) Do(context.Context, predict.Request) (map[string]any, error) {
	i.calls++
	return i.data, i.err
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, e)
	return nil
}
func (r *recorder) Close() error { return nil }

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Type
	for _, e := range r.evs {
		out = append(out, e.Type)
	}
	return out
}

func fillCrop(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	for n, v := range map[string]string{
		"N": "90", "P": "42", "K": "43", "temperature": "20.8",
		"humidity": "82", "ph": "6.5", "rainfall": "202.9",
	} {
		_, err := s.SetField(ctx, task.CropRecommendation, n, v)
		require.NoError(t, err)
	}
}

func TestNewSessionIsIdle(t *testing.T) {
	s := New(1, Deps{Transport: &instant{}})
	assert.Equal(t, task.CropRecommendation, s.Active())
	assert.Equal(t, Idle, s.Outcome().Status)
}

func TestSubmitSuccess(t *testing.T) {
	tr := &instant{data: map[string]any{"crop": "rice", "confidence": 0.92}}
	rec := &recorder{}
	s := New(1, Deps{Transport: tr, Events: rec})
	fillCrop(t, s)

	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, out.Status)
	assert.Equal(t, task.CropRecommendation, out.Kind)
	assert.Equal(t, "rice", out.Data["crop"])
	assert.Equal(t, predict.ShowCrop, out.Directive.Kind)
	assert.Equal(t, "92.0%", predict.FormatConfidence(*out.Directive.Confidence))
	assert.Equal(t, out, s.Outcome())
	assert.Equal(t, []events.Type{events.Submitted, events.Resolved}, rec.types())
}

func TestSubmitServiceError(t *testing.T) {
	tr := &instant{err: &predict.ServiceError{Message: "invalid soil type"}}
	s := New(1, Deps{Transport: tr})
	fillCrop(t, s)

	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Failure, out.Status)
	assert.Equal(t, "invalid soil type", out.Message)
	assert.Equal(t, predict.ErrorDirective("invalid soil type"), out.Directive)
}

func TestSubmitTransportErrorIsGeneric(t *testing.T) {
	tr := &instant{err: &predict.TransportError{Op: "send", Err: errors.New("connection refused")}}
	s := New(1, Deps{Transport: tr})
	fillCrop(t, s)

	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Failure, out.Status)
	assert.Equal(t, predict.GenericFailureMessage, out.Message)
	assert.NotEqual(t, "connection refused", out.Message)
}

func TestSubmitValidationMakesNoCall(t *testing.T) {
	tr := &instant{}
	rec := &recorder{}
	s := New(1, Deps{Transport: tr, Events: rec})
	fillCrop(t, s)
	_, err := s.SetField(context.Background(), task.CropRecommendation, "ph", "acidic")
	require.NoError(t, err)

	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Failure, out.Status)
	assert.ErrorIs(t, out.Err, predict.ErrValidation)
	assert.Equal(t, "pH Level must be a number", out.Message)
	assert.Zero(t, tr.calls)
	assert.Empty(t, rec.types())
}

func TestDiseaseNeedsImage(t *testing.T) {
	tr := &instant{data: map[string]any{"disease": "healthy", "confidence": 0.99}}
	s := New(1, Deps{Transport: tr})
	_, err := s.Select(task.DiseaseDetection)
	require.NoError(t, err)

	out, _ := s.Submit(context.Background())
	assert.Equal(t, Failure, out.Status)
	assert.Zero(t, tr.calls)

	_, err = s.SetImage(task.DiseaseDetection, &form.Image{Filename: "leaf.jpg", Data: []byte{0xFF, 0xD8, 0x00}})
	require.NoError(t, err)
	out, _ = s.Submit(context.Background())
	assert.Equal(t, Success, out.Status)
	assert.Equal(t, predict.ShowDisease, out.Directive.Kind)
	assert.Equal(t, 1, tr.calls)

	_, err = s.SetImage(task.DiseaseDetection, nil)
	require.NoError(t, err)
	out, _ = s.Submit(context.Background())
	assert.Equal(t, Failure, out.Status)
	assert.Equal(t, 1, tr.calls)
}

func TestSelectResetsOutcomeAndKeepsForms(t *testing.T) {
	tr := &instant{data: map[string]any{"crop": "rice"}}
	s := New(1, Deps{Transport: tr})
	ctx := context.Background()
	fillCrop(t, s)
	_, _ = s.SetField(ctx, task.FertilizerRecommendation, "soil_type", "Black")
	_, _ = s.Submit(ctx)
	require.Equal(t, Success, s.Outcome().Status)

	changed, err := s.Select(task.CropRecommendation)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, Success, s.Outcome().Status)

	for _, k := range []task.Kind{task.FertilizerRecommendation, task.DiseaseDetection, task.CropRecommendation} {
		changed, err = s.Select(k)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, Idle, s.Outcome().Status)
	}

	crop, _ := s.Form(task.CropRecommendation)
	assert.Equal(t, "90", crop.Get("N"))
	assert.Equal(t, "6.5", crop.Get("ph"))
	fert, _ := s.Form(task.FertilizerRecommendation)
	assert.Equal(t, "Black", fert.Get("soil_type"))
	assert.Empty(t, fert.Get("N"))

	_, err = s.Select("soil")
	assert.ErrorIs(t, err, task.ErrUnknownTask)
}

func TestSecondSubmitWhileInFlightIsBusy(t *testing.T) {
	g := newGated()
	s := New(1, Deps{Transport: g})
	fillCrop(t, s)

	done := make(chan Outcome, 1)
	go func() {
		out, _ := s.Submit(context.Background())
		done <- out
	}()
	c := <-g.started
	assert.Equal(t, InFlight, s.Outcome().Status)

	out, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, InFlight, out.Status)
	assert.Equal(t, 1, g.callCount())

	_, err = s.SetField(context.Background(), task.CropRecommendation, "N", "91")
	require.NoError(t, err)

	c.reply <- reply{data: map[string]any{"crop": "rice"}}
	assert.Equal(t, Success, (<-done).Status)
}

func TestLateResponseForSwitchedTaskIsDiscarded(t *testing.T) {
	g := newGated()
	rec := &recorder{}
	s := New(1, Deps{Transport: g, Events: rec})
	fillCrop(t, s)

	type result struct {
		out Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := s.Submit(context.Background())
		done <- result{out, err}
	}()
	c := <-g.started
	assert.Equal(t, "/predict/crop", c.req.Endpoint)

	changed, err := s.Select(task.FertilizerRecommendation)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, Idle, s.Outcome().Status)

	c.reply <- reply{data: map[string]any{"crop": "rice", "confidence": 0.92}}
	r := <-done
	assert.ErrorIs(t, r.err, ErrStale)
	assert.Equal(t, Success, r.out.Status)

	assert.Equal(t, task.FertilizerRecommendation, s.Active())
	assert.Equal(t, Idle, s.Outcome().Status)
	assert.Equal(t, []events.Type{events.Submitted, events.Discarded}, rec.types())
}

func TestSwitchAwayAndBackStillDiscards(t *testing.T) {
	g := newGated()
	s := New(1, Deps{Transport: g})
	fillCrop(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	c := <-g.started

	_, _ = s.Select(task.DiseaseDetection)
	_, _ = s.Select(task.CropRecommendation)

	c.reply <- reply{data: map[string]any{"crop": "rice"}}
	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, Idle, s.Outcome().Status)
}

func TestSubmitAfterSwitchWaitsForOrphanedCall(t *testing.T) {
	g := newGated()
	s := New(1, Deps{Transport: g})
	ctx := context.Background()
	fillCrop(t, s)

	first := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx)
		first <- err
	}()
	cropCall := <-g.started

	_, _ = s.Select(task.FertilizerRecommendation)
	for n, v := range map[string]string{
		"temperature": "26", "humidity": "52", "moisture": "38",
		"soil_type": "Sandy", "crop_type": "Maize", "N": "37", "P": "0", "K": "0",
	} {
		_, err := s.SetField(ctx, task.FertilizerRecommendation, n, v)
		require.NoError(t, err)
	}
	assert.Equal(t, Idle, s.Outcome().Status)
	assert.True(t, s.Busy())

	out, err := s.Submit(ctx)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, Idle, out.Status)
	assert.Equal(t, 1, g.callCount())

	cropCall.reply <- reply{data: map[string]any{"crop": "rice"}}
	assert.ErrorIs(t, <-first, ErrStale)
	assert.False(t, s.Busy())
	assert.Equal(t, Idle, s.Outcome().Status)

	second := make(chan Outcome, 1)
	go func() {
		out, _ := s.Submit(ctx)
		second <- out
	}()
	fertCall := <-g.started
	assert.Equal(t, "/predict/fertilizer", fertCall.req.Endpoint)
	assert.Equal(t, 2, g.callCount())

	fertCall.reply <- reply{data: map[string]any{"fertilizer": "Urea"}}
	out = <-second
	assert.Equal(t, Success, out.Status)
	assert.Equal(t, predict.ShowFertilizer, out.Directive.Kind)
	assert.Equal(t, out, s.Outcome())
}

func TestSubmitAfterFailureReenters(t *testing.T) {
	tr := &instant{err: &predict.TransportError{Op: "send", Err: errors.New("refused")}}
	s := New(1, Deps{Transport: tr})
	fillCrop(t, s)

	out, _ := s.Submit(context.Background())
	require.Equal(t, Failure, out.Status)

	tr.err = nil
	tr.data = map[string]any{"crop": "coffee"}
	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, out.Status)
	assert.Equal(t, 2, tr.calls)
}

func TestSubmitTimeoutMapsToTransportFailure(t *testing.T) {
	g := newGated()
	s := New(1, Deps{Transport: g})
	fillCrop(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, Failure, out.Status)
	assert.Equal(t, predict.GenericFailureMessage, out.Message)
}

func TestUnrecognizedPayloadIsUserVisibleError(t *testing.T) {
	tr := &instant{data: map[string]any{"yield": 4.2}}
	s := New(1, Deps{Transport: tr})
	fillCrop(t, s)

	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, out.Status)
	assert.Equal(t, predict.ShowError, out.Directive.Kind)
	assert.Contains(t, out.Directive.Message, "unrecognized result")
}
