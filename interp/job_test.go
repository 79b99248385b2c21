// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import "testing"

func TestJobTableAddRemove(t *testing.T) {
	t.Parallel()
	jt := newJobTable()

	j1 := jt.Add(100, []int{100}, "sleep 1")
	j2 := jt.Add(200, []int{200, 201}, "sleep 2 | cat")
	if j1.ID != 1 || j2.ID != 2 {
		t.Fatalf("want sequential IDs 1, 2; got %d, %d", j1.ID, j2.ID)
	}
	if got := jt.Current(); got != j2 {
		t.Fatalf("Current: want most recently added job, got %v", got)
	}
	if got := jt.ByID(1); got != j1 {
		t.Fatalf("ByID(1): want j1, got %v", got)
	}
	if got := len(jt.All()); got != 2 {
		t.Fatalf("All: want 2 jobs, got %d", got)
	}

	jt.Remove(1)
	if got := jt.ByID(1); got != nil {
		t.Fatalf("ByID(1) after Remove: want nil, got %v", got)
	}
	if got := len(jt.All()); got != 1 {
		t.Fatalf("All after Remove: want 1 job, got %d", got)
	}
}

func TestJobTableCurrentEmpty(t *testing.T) {
	t.Parallel()
	jt := newJobTable()
	if got := jt.Current(); got != nil {
		t.Fatalf("Current on empty table: want nil, got %v", got)
	}
}

func TestJobTablePendingNotifications(t *testing.T) {
	t.Parallel()
	jt := newJobTable()
	running := jt.Add(10, []int{10}, "sleep 5 &")
	jt.Add(20, []int{20}, "sleep 5 &")

	// Nothing has changed state yet.
	if got := jt.PendingNotifications(); len(got) != 0 {
		t.Fatalf("want no notifications before any state change, got %v", got)
	}

	running.State = JobDone
	notified := jt.PendingNotifications()
	if len(notified) != 1 || notified[0].ID != running.ID {
		t.Fatalf("want exactly job %d reported done, got %v", running.ID, notified)
	}
	// A finished job is dropped from the table once reported.
	if got := jt.ByID(running.ID); got != nil {
		t.Fatalf("done job should have been removed from the table, got %v", got)
	}
	// The still-running job survives and is not re-reported.
	if got := len(jt.All()); got != 1 {
		t.Fatalf("want 1 job left in the table, got %d", got)
	}
	if got := jt.PendingNotifications(); len(got) != 0 {
		t.Fatalf("want no repeat notification, got %v", got)
	}
}

func TestJobTableStoppedJobStaysInTable(t *testing.T) {
	t.Parallel()
	jt := newJobTable()
	j := jt.Add(30, []int{30}, "vi file.txt")
	j.State = JobStopped

	notified := jt.PendingNotifications()
	if len(notified) != 1 {
		t.Fatalf("want the stop reported once, got %v", notified)
	}
	// Unlike Done/Terminated, a Stopped job remains so fg/bg can resume it.
	if got := jt.ByID(j.ID); got == nil {
		t.Fatal("stopped job should remain in the table")
	}
}

func TestJobStateString(t *testing.T) {
	t.Parallel()
	tests := map[JobState]string{
		JobRunning:    "Running",
		JobStopped:    "Stopped",
		JobDone:       "Done",
		JobTerminated: "Terminated",
		JobState(99):  "Unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
