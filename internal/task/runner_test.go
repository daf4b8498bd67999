package task

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_RunsSubmittedJobs(t *testing.T) {
	r := NewRunner(8, discardLogger())
	r.Start()

	var ran atomic.Int32
	for range 5 {
		if !r.Submit(func() { ran.Add(1) }) {
			t.Fatal("Submit returned false with room in the queue")
		}
	}
	r.Close()

	if got := ran.Load(); got != 5 {
		t.Errorf("ran %d jobs, want 5", got)
	}
}

func TestRunner_SubmitNeverBlocks(t *testing.T) {
	r := NewRunner(1, discardLogger())
	// Worker not started: the queue fills and stays full.

	if !r.Submit(func() {}) {
		t.Fatal("first Submit should be accepted")
	}

	done := make(chan struct{})
	go func() {
		for range 100 {
			r.Submit(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
}

func TestRunner_RecoverFromPanic(t *testing.T) {
	r := NewRunner(8, discardLogger())
	r.Start()

	var ran atomic.Bool
	r.Submit(func() { panic("boom") })
	r.Submit(func() { ran.Store(true) })
	r.Close()

	if !ran.Load() {
		t.Error("worker did not survive a panicking job")
	}
}

func TestRunner_CloseIsIdempotent(t *testing.T) {
	r := NewRunner(8, discardLogger())
	r.Start()
	r.Close()
	r.Close()
}
