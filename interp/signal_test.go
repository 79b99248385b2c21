// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"runtime"
	"syscall"
	"testing"
	"time"
)

func TestSignalToName(t *testing.T) {
	t.Parallel()
	if got := signalToName(syscall.SIGINT); got != "INT" {
		t.Errorf("signalToName(SIGINT) = %q, want INT", got)
	}
	if got := signalToName(syscall.SIGTERM); got != "TERM" {
		t.Errorf("signalToName(SIGTERM) = %q, want TERM", got)
	}
}

func TestSetTrapUnknownSignal(t *testing.T) {
	t.Parallel()
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.setTrap("BOGUS", "echo hi"); err == nil {
		t.Fatal("want an error for an unknown signal name")
	}
}

func TestSetTrapResetAndIgnore(t *testing.T) {
	t.Parallel()
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.setTrap("INT", "echo caught"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.signals.traps["INT"]; !ok {
		t.Fatal("want a trap registered for INT")
	}
	if err := r.setTrap("INT", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.signals.traps["INT"]; ok {
		t.Fatal("want the INT trap cleared by an empty action")
	}
	if err := r.setTrap("INT", "''"); err != nil {
		t.Fatal(err)
	}
	if entry := r.signals.traps["INT"]; !entry.ignore {
		t.Fatal("want INT set to ignore by a quoted-empty action")
	}
}

func TestInterrupted(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("signal delivery semantics differ on windows")
	}
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if r.Interrupted() {
		t.Fatal("want no pending interrupt on a fresh Runner")
	}
	r.handleSignal(syscall.SIGINT)
	if !r.Interrupted() {
		t.Fatal("want handleSignal(SIGINT) to set the interrupt flag")
	}
	// Interrupted clears the flag once read.
	if r.Interrupted() {
		t.Fatal("want the interrupt flag cleared after the first read")
	}
}

func TestRunExitTrap(t *testing.T) {
	t.Parallel()
	var cb concBuffer
	r, err := New(StdIO(nil, &cb, &cb))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.setTrap("EXIT", "echo bye"); err != nil {
		t.Fatal(err)
	}
	r.runExitTrap()
	if got := cb.String(); got != "bye\n" {
		t.Fatalf("want exit trap to run, got %q", got)
	}
}

func TestStartStopSignalHandling(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("job-control signals are unix-specific")
	}
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	r.StartSignalHandling()
	defer r.StopSignalHandling()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for !r.Interrupted() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for SIGINT to be observed")
		}
		select {
		case <-context.Background().Done():
		case <-time.After(time.Millisecond):
		}
	}
}
