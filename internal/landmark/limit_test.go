package landmark

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/smile-overlay/internal/smile"
)

func TestLimitBoundsConcurrentDetections(t *testing.T) {
	const limit = 2

	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	slow := ProviderFunc(func(ctx context.Context, image []byte) (*smile.FaceObservation, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		return nil, nil
	})

	provider := Limit(slow, limit)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := provider.Detect(context.Background(), []byte("img")); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := peak.Load(); got > limit {
		t.Fatalf("expected at most %d concurrent detections, saw %d", limit, got)
	}
}

func TestLimitGivesUpWhenContextDone(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	blocking := ProviderFunc(func(ctx context.Context, image []byte) (*smile.FaceObservation, error) {
		<-release
		return nil, nil
	})
	provider := Limit(blocking, 1)

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = provider.Detect(context.Background(), []byte("first"))
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := provider.Detect(ctx, []byte("second"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
