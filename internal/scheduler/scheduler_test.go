package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gradscout-engine/internal/logger"

	"github.com/stretchr/testify/assert"
)

func TestEveryRunsNowAndOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int32

	done := make(chan struct{})
	go func() {
		Every(ctx, 10*time.Millisecond, "test", true, func(context.Context) error {
			if n.Add(1) >= 3 {
				cancel()
			}
			return errors.New("keeps going")
		}, logger.Discard())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Every did not stop after cancel")
	}
	assert.GreaterOrEqual(t, n.Load(), int32(3))
}

func TestEveryIgnoresNonPositiveInterval(t *testing.T) {
	called := false
	Every(context.Background(), 0, "test", true, func(context.Context) error {
		called = true
		return nil
	}, logger.Discard())
	assert.False(t, called)
}
