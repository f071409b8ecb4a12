package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/spreadline/internal/pipeline"
	"github.com/fortuna/spreadline/internal/predict"
)

type fakeRefresher struct {
	errs   []error
	always error
	calls  int
}

func (f *fakeRefresher) Refresh(_ context.Context) (pipeline.Result, error) {
	f.calls++
	if f.always != nil {
		return pipeline.Result{}, f.always
	}
	if len(f.errs) >= f.calls {
		return pipeline.Result{}, f.errs[f.calls-1]
	}
	return pipeline.Result{Kind: pipeline.RunKindHistory, Games: 12}, nil
}

type fakeForecaster struct {
	rep predict.Report
	err error
}

func (f *fakeForecaster) Forecast(_ context.Context) (predict.Report, error) {
	return f.rep, f.err
}

type fakePublisher struct {
	published []predict.Report
	err       error
}

func (f *fakePublisher) PublishReport(_ context.Context, rep predict.Report) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.published = append(f.published, rep)
	return len(rep.Predictions), nil
}

func testConfig() *Config {
	return &Config{
		Schedule:   "@every 1h",
		Location:   time.UTC,
		RunTimeout: time.Second,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}
}

func TestRunOnce_RetriesThenPublishes(t *testing.T) {
	boom := errors.New("boom")
	ref := &fakeRefresher{errs: []error{boom, boom}}
	fc := &fakeForecaster{rep: predict.Report{Predictions: []predict.Prediction{{GameID: 1}, {GameID: 2}}}}
	pub := &fakePublisher{}

	o, err := NewOrchestrator(ref, fc, pub, testConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, o.RunOnce(context.Background()))
	assert.Equal(t, 3, ref.calls)
	require.Len(t, pub.published, 1)
	assert.Len(t, pub.published[0].Predictions, 2)

	status := o.GetStatus()
	assert.Equal(t, 0, status["consecutive_errors"])
	assert.Equal(t, true, status["publishing"])
	assert.NotContains(t, status, "last_error")
}

func TestRunOnce_RetriesExhausted(t *testing.T) {
	boom := errors.New("boom")
	ref := &fakeRefresher{always: boom}
	pub := &fakePublisher{}

	o, err := NewOrchestrator(ref, &fakeForecaster{}, pub, testConfig(), nil)
	require.NoError(t, err)

	err = o.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, ref.calls)
	assert.Empty(t, pub.published)

	require.Error(t, o.RunOnce(context.Background()))
	status := o.GetStatus()
	assert.Equal(t, 2, status["consecutive_errors"])
	assert.Contains(t, status["last_error"], "boom")
}

func TestRunOnce_RunInProgressNotRetried(t *testing.T) {
	ref := &fakeRefresher{errs: []error{pipeline.ErrRunInProgress}}
	pub := &fakePublisher{}

	o, err := NewOrchestrator(ref, &fakeForecaster{}, pub, testConfig(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, o.RunOnce(context.Background()), pipeline.ErrRunInProgress)
	assert.Equal(t, 1, ref.calls)
	assert.Empty(t, pub.published)
	assert.Equal(t, 0, o.GetStatus()["consecutive_errors"])
}

func TestRunOnce_PublishFailure(t *testing.T) {
	down := errors.New("redis down")
	o, err := NewOrchestrator(&fakeRefresher{}, &fakeForecaster{}, &fakePublisher{err: down}, testConfig(), nil)
	require.NoError(t, err)

	err = o.RunOnce(context.Background())
	assert.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "publish predictions")
}

func TestRunOnce_RefreshOnlyWithoutPublisher(t *testing.T) {
	ref := &fakeRefresher{}
	o, err := NewOrchestrator(ref, nil, nil, testConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, o.RunOnce(context.Background()))
	assert.Equal(t, 1, ref.calls)
	assert.Equal(t, false, o.GetStatus()["publishing"])
}

func TestRunOnce_CancelledDuringRetry(t *testing.T) {
	cfg := testConfig()
	cfg.RetryDelay = time.Hour
	ref := &fakeRefresher{errs: []error{errors.New("boom")}}
	o, err := NewOrchestrator(ref, nil, nil, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, o.RunOnce(ctx), context.Canceled)
	assert.Equal(t, 1, ref.calls)
}

func TestNewOrchestrator_BadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule = "every tuesday"
	_, err := NewOrchestrator(&fakeRefresher{}, nil, nil, cfg, nil)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	o, err := NewOrchestrator(&fakeRefresher{}, nil, nil, testConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	o.Stop()
}
