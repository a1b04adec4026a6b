// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNow(t *testing.T) {
	initial := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := Fake(initial)

	if got := fake.Now(); !got.Equal(initial) {
		t.Fatalf("Now() = %v, want %v", got, initial)
	}

	fake.Advance(90 * time.Second)
	if got := fake.Now(); !got.Equal(initial.Add(90 * time.Second)) {
		t.Fatalf("Now() after Advance = %v, want %v", got, initial.Add(90*time.Second))
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	ch := fake.After(10 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
	select {
	case <-fake.After(-time.Second):
	default:
		t.Fatal("After(negative) did not fire immediately")
	}
}

func TestFakeSleepBlocksUntilAdvance(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	done := make(chan struct{})
	go func() {
		fake.Sleep(5 * time.Second)
		close(done)
	}()

	fake.WaitForTimers(1)
	select {
	case <-done:
		t.Fatal("Sleep returned before Advance")
	default:
	}

	fake.Advance(5 * time.Second)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakePendingCount(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	if got := fake.PendingCount(); got != 0 {
		t.Fatalf("PendingCount = %d, want 0", got)
	}

	fake.After(time.Second)
	fake.After(2 * time.Second)
	if got := fake.PendingCount(); got != 2 {
		t.Fatalf("PendingCount = %d, want 2", got)
	}

	fake.Advance(time.Second)
	if got := fake.PendingCount(); got != 1 {
		t.Fatalf("PendingCount after Advance = %d, want 1", got)
	}
}

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	late := fake.After(3 * time.Second)
	early := fake.After(time.Second)

	fake.Advance(5 * time.Second)

	earlyTime := <-early
	lateTime := <-late
	// Both receive the advance target; ordering is observable through
	// the deadline-sorted fire loop not the received values, so assert
	// the values are the post-advance time.
	want := fake.Now()
	if !earlyTime.Equal(want) || !lateTime.Equal(want) {
		t.Fatalf("fired times %v, %v, want %v", earlyTime, lateTime, want)
	}
}
