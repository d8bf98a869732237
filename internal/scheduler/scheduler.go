// Package scheduler runs the portal's periodic tasks. One Scheduler owns the
// task list and their persisted state; the in-process loop and the cron
// endpoint both drive the same Tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"
)

const (
	TaskSyncInstallations     = "sync-installations"
	TaskMailIngestion         = "mail-ingestion"
	TaskNotificationDispatch  = "notification-dispatch"
	TaskNotificationRetention = "notification-cleanup"

	tickLockKey = "jdcportal:scheduler:tick"
)

// ErrTickInProgress is returned when another tick holds the lock.
var ErrTickInProgress = errors.New("scheduler tick already in progress")

type Task struct {
	Name string
	// Interval is the minimum time between runs; zero makes the task due on every tick.
	Interval time.Duration
	// Timeout bounds one run; zero means no limit beyond the tick context.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type Result string

const (
	ResultOK      Result = "ok"
	ResultSkipped Result = "skipped"
	ResultFailed  Result = "failed"
)

type TaskReport struct {
	Task     string     `json:"task"`
	Result   Result     `json:"result"`
	LastRun  *time.Time `json:"lastRun,omitempty"`
	Duration string     `json:"duration,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type Scheduler struct {
	tasks   []Task
	store   *StateStore
	locker  Locker
	lockTTL time.Duration
	now     func() time.Time
}

func New(store *StateStore, locker Locker, tasks ...Task) *Scheduler {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Scheduler{
		tasks:   tasks,
		store:   store,
		locker:  locker,
		lockTTL: 30 * time.Minute,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) Tasks() []Task {
	return s.tasks
}

// TickTimeout bounds a tick that is not tied to a caller, matching the lock TTL.
func (s *Scheduler) TickTimeout() time.Duration {
	return s.lockTTL
}

// Tick runs every due task once, sequentially. Task failures are reported,
// never returned; the error is only for a tick that could not start.
func (s *Scheduler) Tick(ctx context.Context) ([]TaskReport, error) {
	unlock, ok, err := s.locker.TryLock(ctx, tickLockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire tick lock: %w", err)
	}
	if !ok {
		log.Printf("scheduler tick result=skipped reason=locked")
		return nil, ErrTickInProgress
	}
	defer unlock()

	reports := make([]TaskReport, 0, len(s.tasks))
	for _, t := range s.tasks {
		reports = append(reports, s.runIfDue(ctx, t))
	}
	return reports, nil
}

func (s *Scheduler) runIfDue(ctx context.Context, t Task) TaskReport {
	report := TaskReport{Task: t.Name}

	// Read per task, right before deciding, never from a tick-wide snapshot.
	state, err := s.store.Get(ctx, t.Name)
	if err != nil {
		report.Result = ResultFailed
		report.Error = err.Error()
		log.Printf("scheduler task=%s result=failed stage=state err=%v", t.Name, err)
		return report
	}

	now := s.now()
	if state != nil {
		last := state.LastRun
		report.LastRun = &last
		if t.Interval > 0 && now.Sub(state.LastRun) < t.Interval {
			report.Result = ResultSkipped
			return report
		}
	}

	start := time.Now()
	err = s.invoke(ctx, t)
	report.Duration = time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		report.Result = ResultFailed
		report.Error = err.Error()
		log.Printf("scheduler task=%s result=failed duration=%s err=%v", t.Name, report.Duration, err)
		return report
	}

	if err := s.store.MarkRun(ctx, t.Name, state, now); err != nil {
		if errors.Is(err, ErrStaleState) {
			log.Printf("scheduler task=%s result=ok state=stale", t.Name)
		} else {
			report.Result = ResultFailed
			report.Error = err.Error()
			log.Printf("scheduler task=%s result=failed stage=record err=%v", t.Name, err)
			return report
		}
	}

	report.Result = ResultOK
	report.LastRun = &now
	log.Printf("scheduler task=%s result=ok duration=%s", t.Name, report.Duration)
	return report
}

func (s *Scheduler) invoke(ctx context.Context, t Task) (err error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Printf("scheduler task=%s panic=%v stack=%s", t.Name, r, debug.Stack())
		}
	}()
	return t.Run(ctx)
}

// Handle stops a loop started with Start.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop ends the loop and waits for a running tick to return.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Start ticks immediately, then every interval with ±jitter (a ratio in [0,1]).
func (s *Scheduler) Start(ctx context.Context, interval time.Duration, jitter float64) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)

		run := func() {
			if _, err := s.Tick(ctx); err != nil && !errors.Is(err, ErrTickInProgress) {
				log.Printf("scheduler tick failed: %v", err)
			}
		}

		run()
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		timer := time.NewTimer(jittered(interval, jitter, rng.Float64()))
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("scheduler stopped: %v", ctx.Err())
				return
			case <-timer.C:
				run()
				timer.Reset(jittered(interval, jitter, rng.Float64()))
			}
		}
	}()

	log.Printf("scheduler started interval=%s tasks=%d", interval, len(s.tasks))
	return h
}

func jittered(base time.Duration, ratio, sample float64) time.Duration {
	if base <= 0 {
		return time.Minute
	}
	if ratio <= 0 {
		return base
	}
	if ratio > 1 {
		ratio = 1
	}
	factor := 1 + ((sample*2)-1)*ratio
	delay := time.Duration(float64(base) * factor)
	if delay < time.Second {
		return time.Second
	}
	return delay
}
