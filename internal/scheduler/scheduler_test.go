package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jdcportal/internal/database"
	"jdcportal/internal/middleware"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *StateStore {
	t.Helper()
	db, err := database.OpenInMemory("scheduler_" + t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&TaskState{}))
	return NewStateStore(db)
}

func newScheduler(store *StateStore, tasks ...Task) *Scheduler {
	s := New(store, NewLocalLocker(), tasks...)
	s.now = func() time.Time { return fixedNow }
	return s
}

func seed(t *testing.T, store *StateStore, name string, lastRun time.Time) {
	t.Helper()
	require.NoError(t, store.MarkRun(context.Background(), name, nil, lastRun))
}

func counting(name string, interval time.Duration, calls *int, err error) Task {
	return Task{Name: name, Interval: interval, Run: func(context.Context) error {
		*calls++
		return err
	}}
}

func TestTickRunsOverdueTask(t *testing.T) {
	store := setupStore(t)
	seed(t, store, "hourly", fixedNow.Add(-61*time.Minute))

	calls := 0
	s := newScheduler(store, counting("hourly", time.Hour, &calls, nil))
	reports, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	require.Len(t, reports, 1)
	assert.Equal(t, ResultOK, reports[0].Result)

	st, err := store.Get(context.Background(), "hourly")
	require.NoError(t, err)
	assert.WithinDuration(t, fixedNow, st.LastRun, time.Second)
	assert.Equal(t, int64(2), st.Version)
}

func TestTickSkipsRecentTask(t *testing.T) {
	store := setupStore(t)
	seed(t, store, "hourly", fixedNow.Add(-10*time.Minute))

	calls := 0
	s := newScheduler(store, counting("hourly", time.Hour, &calls, nil))
	reports, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, calls)
	assert.Equal(t, ResultSkipped, reports[0].Result)
}

func TestTickZeroIntervalRunsEveryTick(t *testing.T) {
	store := setupStore(t)
	calls := 0
	s := newScheduler(store, counting("dispatch", 0, &calls, nil))
	ctx := context.Background()

	now := fixedNow
	s.now = func() time.Time { return now }
	for _, step := range []time.Duration{0, 56400 * time.Millisecond, 54 * time.Second} {
		now = now.Add(step)
		reports, err := s.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, ResultOK, reports[0].Result)
	}
	assert.Equal(t, 3, calls)

	// a minute-interval task ticked early by jitter is skipped
	minute := 0
	s = newScheduler(store, counting("every-minute", time.Minute, &minute, nil))
	now = fixedNow
	s.now = func() time.Time { return now }
	_, err := s.Tick(ctx)
	require.NoError(t, err)
	now = now.Add(jittered(time.Minute, 0.1, 0.2))
	reports, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultSkipped, reports[0].Result)
	assert.Equal(t, 1, minute)
}

func TestTickExactIntervalIsDue(t *testing.T) {
	store := setupStore(t)
	seed(t, store, "sync", fixedNow.Add(-30*time.Minute))

	calls := 0
	s := newScheduler(store, counting("sync", 30*time.Minute, &calls, nil))
	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestTickMissingStateIsDue(t *testing.T) {
	store := setupStore(t)

	calls := 0
	s := newScheduler(store, counting("fresh", time.Hour, &calls, nil))
	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	st, err := store.Get(context.Background(), "fresh")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.LastRun.Equal(fixedNow))
}

func TestTickFailureKeepsLastRun(t *testing.T) {
	store := setupStore(t)
	before := fixedNow.Add(-2 * time.Hour)
	seed(t, store, "flaky", before)

	calls, after := 0, 0
	s := newScheduler(store,
		counting("flaky", time.Hour, &calls, errors.New("sheets down")),
		counting("after", time.Hour, &after, nil),
	)
	reports, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ResultFailed, reports[0].Result)
	assert.Contains(t, reports[0].Error, "sheets down")
	assert.Equal(t, 1, after, "a failing task must not block the rest of the tick")

	st, err := store.Get(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, st.LastRun.Equal(before))
}

func TestTickRecoversPanic(t *testing.T) {
	store := setupStore(t)
	s := newScheduler(store, Task{Name: "boom", Interval: time.Hour, Run: func(context.Context) error {
		panic("nil map")
	}})

	reports, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, reports[0].Result)

	st, err := store.Get(context.Background(), "boom")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestTickReadsStatePerTask(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	calls := 0
	s := newScheduler(store,
		Task{Name: "first", Interval: time.Hour, Run: func(ctx context.Context) error {
			// another runner records "second" while this task is running
			return store.MarkRun(ctx, "second", nil, fixedNow)
		}},
		counting("second", time.Hour, &calls, nil),
	)

	reports, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultSkipped, reports[1].Result)
	assert.Equal(t, 0, calls)
}

func TestTickSkippedWhileLocked(t *testing.T) {
	store := setupStore(t)
	locker := NewLocalLocker()
	unlock, ok, err := locker.TryLock(context.Background(), tickLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	calls := 0
	s := New(store, locker, counting("t", time.Hour, &calls, nil))
	_, err = s.Tick(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)
	assert.Equal(t, 0, calls)

	unlock()
	_, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestMarkRunRejectsStaleVersion(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seed(t, store, "t", fixedNow.Add(-time.Hour))

	read, err := store.Get(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, store.MarkRun(ctx, "t", read, fixedNow))
	assert.ErrorIs(t, store.MarkRun(ctx, "t", read, fixedNow.Add(time.Minute)), ErrStaleState)
	assert.ErrorIs(t, store.MarkRun(ctx, "t", nil, fixedNow), ErrStaleState)
}

func TestStartAndStop(t *testing.T) {
	store := setupStore(t)
	ran := make(chan struct{}, 1)
	s := New(store, nil, Task{Name: "loop", Interval: time.Hour, Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})

	h := s.Start(context.Background(), time.Hour, 0.2)
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick did not run")
	}
	h.Stop()
	h.Stop()
}

func TestJittered(t *testing.T) {
	assert.Equal(t, time.Minute, jittered(time.Minute, 0, 0.9))
	assert.Equal(t, 80*time.Second, jittered(100*time.Second, 0.2, 0))
	assert.Equal(t, 120*time.Second, jittered(100*time.Second, 0.2, 1))
	assert.Equal(t, time.Minute, jittered(0, 0.5, 0.5))
}

func TestCronTriggerRequiresSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := setupStore(t)
	calls := 0
	s := newScheduler(store, counting("t", time.Hour, &calls, nil))

	router := gin.New()
	NewHandler(s).RegisterRoutes(router.Group("/api"), middleware.CronSecret("s3cret"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scheduled-tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, calls)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scheduled-tasks", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":"ok"`)
	assert.Equal(t, 1, calls)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/scheduled-tasks", nil)
	req.Header.Set("X-Cron-Secret", "s3cret")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"taskName":"t"`)
}

func TestCronTriggerSurvivesClientDisconnect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := setupStore(t)

	var runErr error
	s := newScheduler(store, Task{Name: "sync", Interval: time.Hour, Run: func(ctx context.Context) error {
		runErr = ctx.Err()
		return runErr
	}})

	router := gin.New()
	NewHandler(s).RegisterRoutes(router.Group("/api"), middleware.CronSecret("s3cret"))

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/scheduled-tasks", nil).WithContext(reqCtx)
	req.Header.Set("X-Cron-Secret", "s3cret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, runErr)
	st, err := store.Get(context.Background(), "sync")
	require.NoError(t, err)
	require.NotNil(t, st)
}

func TestNewRedisClientWithoutAddr(t *testing.T) {
	assert.Nil(t, NewRedisClient("", "", 0))
}
