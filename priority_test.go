package httpdispatch

import (
	"testing"
	"time"
)

func TestDefaultPromoterPromotesAfterInterval(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := NewPriority(PriorityLow, now)
	promoter := DefaultPromoter{Interval: time.Minute}

	promoter.Promote(p, now.Add(30*time.Second))
	if p.Current != int(PriorityLow) {
		t.Fatalf("Current = %d, should not promote before interval elapses", p.Current)
	}

	promoter.Promote(p, now.Add(time.Minute))
	if p.Current != int(PriorityLow)-1 {
		t.Fatalf("Current = %d, want %d after promotion", p.Current, int(PriorityLow)-1)
	}
}

func TestDefaultPromoterStopsAtFloor(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := &Priority{Starting: PriorityHigh, Current: priorityFloor, CreatedAt: now, LastPromotionAt: now}
	promoter := DefaultPromoter{Interval: time.Second}
	promoter.Promote(p, now.Add(time.Hour))
	if p.Current != priorityFloor {
		t.Fatalf("Current = %d, should never promote past the floor", p.Current)
	}
}

func TestPriorityLessOrdersByCurrentThenAge(t *testing.T) {
	now := time.Unix(1700000000, 0)
	high := NewPriority(PriorityHigh, now)
	low := NewPriority(PriorityLow, now)
	if !priorityLess(high, low) {
		t.Fatal("a lower Current value (higher priority) should sort first")
	}

	older := NewPriority(PriorityMedium, now)
	newer := NewPriority(PriorityMedium, now.Add(time.Second))
	if !priorityLess(older, newer) {
		t.Fatal("at equal priority, the older request should sort first")
	}
}
