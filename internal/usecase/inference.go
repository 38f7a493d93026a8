package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/smile-overlay/internal/landmark"
	"github.com/example/smile-overlay/internal/logging"
	"github.com/example/smile-overlay/internal/metrics"
	"github.com/example/smile-overlay/internal/smile"
)

// ErrEmptyImage is returned when no image bytes were submitted.
var ErrEmptyImage = errors.New("image is empty")

// InferenceUseCase runs landmark detection and smile scoring for one image.
type InferenceUseCase struct {
	provider       landmark.Provider
	scorer         *smile.Scorer
	cache          ObservationCache
	cacheTTL       time.Duration
	metrics        *metrics.Metrics
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewInferenceUseCase constructs a new use case instance. cache may be nil to disable caching;
// nil m and logger fall back to metrics.New() and a no-op logger.
func NewInferenceUseCase(provider landmark.Provider, scorer *smile.Scorer, cache ObservationCache, cacheTTL time.Duration, m *metrics.Metrics, logger *zap.Logger) *InferenceUseCase {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InferenceUseCase{
		provider:       provider,
		scorer:         scorer,
		cache:          cache,
		cacheTTL:       cacheTTL,
		metrics:        m,
		logger:         logger.Named("inference_usecase"),
		retryAttempts:  3,
		initialBackoff: 20 * time.Millisecond,
		maxBackoff:     200 * time.Millisecond,
	}
}

// Infer detects the face in image and scores its smile.
func (uc *InferenceUseCase) Infer(ctx context.Context, requestID string, image []byte) (smile.InferResult, error) {
	if len(image) == 0 {
		return smile.InferResult{}, logging.NewOperationError("usecase.infer", requestID, ErrEmptyImage)
	}
	opLogger := logging.WithOperation(uc.logger, "usecase.infer", requestID)

	obs, err := uc.observe(ctx, requestID, image)
	if err != nil {
		uc.metrics.ObserveInference(metrics.OutcomeError, 0)
		wrapped := logging.NewOperationError("usecase.detect_landmarks", requestID, err)
		opLogger.Error("landmark detection failed", zap.Error(wrapped), zap.Int("image_bytes", len(image)))
		return smile.InferResult{}, wrapped
	}

	result := uc.scorer.Score(obs)
	uc.metrics.ObserveInference(outcomeOf(result), result.Score)
	opLogger.Debug("inference complete",
		zap.Bool("has_face", result.HasFace),
		zap.Bool("smile", result.Smile),
		zap.Float64("score", result.Score),
	)
	return result, nil
}

func (uc *InferenceUseCase) observe(ctx context.Context, requestID string, image []byte) (*smile.FaceObservation, error) {
	if uc.cache == nil {
		return uc.detect(ctx, image)
	}

	key := observationKey(image)
	opLogger := logging.WithOperation(uc.logger, "usecase.observe", requestID)

	var (
		cached *smile.FaceObservation
		found  bool
	)
	err := uc.withCacheRetry(ctx, requestID, "cache.load.observation", func() error {
		var err error
		cached, found, err = uc.cache.Load(ctx, key)
		return err
	})
	if err != nil {
		opLogger.Warn("failed to read landmark cache", zap.Error(err))
	}
	if err == nil && found {
		uc.metrics.ObserveCache(true)
		return cached, nil
	}
	uc.metrics.ObserveCache(false)

	obs, err := uc.detect(ctx, image)
	if err != nil {
		return nil, err
	}

	if err := uc.withCacheRetry(ctx, requestID, "cache.store.observation", func() error {
		return uc.cache.Store(ctx, key, obs, uc.cacheTTL)
	}); err != nil {
		opLogger.Warn("failed to cache landmark observation", zap.Error(err))
	}
	return obs, nil
}

func (uc *InferenceUseCase) detect(ctx context.Context, image []byte) (*smile.FaceObservation, error) {
	uc.metrics.InFlight.Add(1)
	defer uc.metrics.InFlight.Add(-1)

	start := time.Now()
	obs, err := uc.provider.Detect(ctx, image)
	uc.metrics.ObserveDetect(time.Since(start))
	return obs, err
}

func (uc *InferenceUseCase) withCacheRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("cache operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient cache error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func outcomeOf(result smile.InferResult) string {
	switch {
	case !result.HasFace:
		return metrics.OutcomeNoFace
	case result.Smile:
		return metrics.OutcomeSmile
	default:
		return metrics.OutcomeNoSmile
	}
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
