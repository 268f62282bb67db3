package safego

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGoRecoversPanic(t *testing.T) {
	done := Go(zap.NewNop(), "boom", func() { panic("boom") })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done not closed after panic")
	}
}

func TestWait(t *testing.T) {
	release := make(chan struct{})
	a := Go(zap.NewNop(), "a", func() {})
	b := Go(zap.NewNop(), "b", func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := Wait(ctx, a, b); err == nil {
		t.Fatal("expected timeout while b is blocked")
	}

	close(release)
	if err := Wait(context.Background(), a, b); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
