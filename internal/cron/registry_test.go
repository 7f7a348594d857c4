package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "weekly-payments"}, nil, &stubJob{name: "mandate-status-sync"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0].Name() != "weekly-payments" || jobs[1].Name() != "mandate-status-sync" {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicatesAndBlankNames(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	var registry Registry
	if err := registry.Register(&stubJob{name: " "}); err == nil {
		t.Fatal("expected blank name error")
	}
	if err := registry.Register(&stubJob{name: "b"}); err != nil {
		t.Fatalf("zero registry should accept jobs: %v", err)
	}
}
