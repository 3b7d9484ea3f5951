package main

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatchRerunsOnWrite(t *testing.T) {
	filename := writeTempProgram(t, pointsJSON)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, filename, func() int {
			runs <- struct{}{}
			return 0
		})
	}()

	wait := func(what string) {
		t.Helper()
		select {
		case <-runs:
		case err := <-done:
			t.Fatalf("watch returned before %s: %v", what, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", what)
		}
	}
	wait("the initial run")

	if err := os.WriteFile(filename, []byte(pointsJSON+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	wait("the rerun")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
