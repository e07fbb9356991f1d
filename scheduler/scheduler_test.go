package scheduler

import (
	"testing"
	"time"
)

func TestScheduleAndStart(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	// Simply test that we can schedule and start without errors.
	// Testing actual cron execution timing is unreliable in unit tests.
	err := s.Schedule(5*time.Minute, func() {})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	s.Start()

	entries := s.cron.Entries()
	if len(entries) != 1 {
		t.Errorf("expected 1 cron entry, got %d", len(entries))
	}
}

func TestScheduleIntervalTooShort(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	tests := []time.Duration{
		0,
		30 * time.Second,
		-time.Minute,
	}

	for _, interval := range tests {
		if err := s.Schedule(interval, func() {}); err == nil {
			t.Errorf("expected error for interval %s", interval)
		}
	}
}

func TestReschedule(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	fn := func() {}

	if err := s.Schedule(10*time.Minute, fn); err != nil {
		t.Fatalf("initial Schedule failed: %v", err)
	}

	if len(s.cron.Entries()) != 1 {
		t.Error("expected 1 entry after initial schedule")
	}

	// Reschedule to a different interval
	if err := s.Schedule(time.Hour, fn); err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}

	// Still should have only one entry (old one removed)
	if len(s.cron.Entries()) != 1 {
		t.Error("expected 1 entry after reschedule")
	}

	s.Start()
}

func TestMultipleStartStop(t *testing.T) {
	s := NewScheduler()

	s.Schedule(time.Minute, func() {})

	// Multiple starts shouldn't panic
	s.Start()
	s.Start()

	// Multiple stops shouldn't panic
	s.Stop()
	s.Stop()
}
