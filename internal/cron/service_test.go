package cron

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	releases int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestRunOnceRunsAllJobsAndCombinesFailures(t *testing.T) {
	ok := &testJob{name: "ok"}
	first := &testJob{name: "first", err: errors.New("boom")}
	second := &testJob{name: "second", err: errors.New("bang")}
	lock := &fakeLock{}
	svc := newTestService(t, lock, first, ok, second)

	ran, err := svc.RunOnce(context.Background())
	if !ran {
		t.Fatal("expected cycle to run")
	}
	if ok.runs != 1 || first.runs != 1 || second.runs != 1 {
		t.Fatalf("every job should run once: ok=%d first=%d second=%d", ok.runs, first.runs, second.runs)
	}
	if err == nil || !strings.Contains(err.Error(), "first: boom") || !strings.Contains(err.Error(), "second: bang") {
		t.Fatalf("expected combined job errors, got %v", err)
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("expected lock released once, held=%v releases=%d", lock.held, lock.releases)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "weekly-payments"}
	svc := newTestService(t, &fakeLock{held: true}, job)

	ran, err := svc.RunOnce(context.Background())
	if err != nil || ran {
		t.Fatalf("expected skip without error: ran=%v err=%v", ran, err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run, ran %d", job.runs)
	}
}

func TestRunOnceLockError(t *testing.T) {
	svc := newTestService(t, &fakeLock{err: errors.New("redis down")}, &testJob{name: "x"})
	if _, err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "x"}
	svc := newTestService(t, &fakeLock{}, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the immediate cycle to run, ran %d", job.runs)
	}
}

func TestNewServiceRequiresLockAndLogger(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected lock error")
	}
}
