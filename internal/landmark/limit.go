package landmark

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/example/smile-overlay/internal/smile"
)

// Limit bounds the number of concurrent Detect calls on p to n.
// Callers waiting for a slot give up when their context is done.
func Limit(p Provider, n int) Provider {
	if n < 1 {
		n = 1
	}
	return &limitedProvider{next: p, sem: semaphore.NewWeighted(int64(n))}
}

type limitedProvider struct {
	next Provider
	sem  *semaphore.Weighted
}

func (l *limitedProvider) Detect(ctx context.Context, image []byte) (*smile.FaceObservation, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.next.Detect(ctx, image)
}
