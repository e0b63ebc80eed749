package net

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBrowseStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- Browse(ctx, 30*time.Second, func(Relay) {}) }()

	select {
	case <-done:
		assert.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("browse ignored cancellation")
	}
}

func TestBrowseReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Browse(ctx, 30*time.Second, func(Relay) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFirstRelayHonoursTimeout(t *testing.T) {
	start := time.Now()
	_, err := FirstRelay(context.Background(), 200*time.Millisecond)
	if err == nil {
		t.Skip("a relay answered on this network")
	}
	assert.Less(t, time.Since(start), 5*time.Second)
}
