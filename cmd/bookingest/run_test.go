package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestWatchShutdownQuietAfterNormalRun(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		watchShutdown(ctx, done, logger)
		close(finished)
	}()

	close(done)
	<-finished
	cancel()

	if buf.Len() != 0 {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
}

func TestWatchShutdownLogsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	defer close(done)
	finished := make(chan struct{})
	go func() {
		watchShutdown(ctx, done, logger)
		close(finished)
	}()

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("watchShutdown did not return after cancel")
	}

	if !strings.Contains(buf.String(), "shutdown signal received") {
		t.Fatalf("log output = %q, want shutdown message", buf.String())
	}
}
