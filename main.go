package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/smile-overlay/internal/config"
	"github.com/example/smile-overlay/internal/grpcclient"
	"github.com/example/smile-overlay/internal/handlers"
	"github.com/example/smile-overlay/internal/landmark"
	"github.com/example/smile-overlay/internal/logging"
	"github.com/example/smile-overlay/internal/metrics"
	"github.com/example/smile-overlay/internal/smile"
	"github.com/example/smile-overlay/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	remote, conn, err := grpcclient.DialLandmarkProvider(ctx, cfg.LandmarkAddr, cfg.LandmarkTimeout, logger)
	if err != nil {
		logger.Fatal("failed to connect to landmark provider", zap.Error(err))
	}
	defer conn.Close()
	provider := landmark.Limit(landmark.Precheck(remote, cfg.MaxImagePixels), cfg.MaxConcurrentDetections)

	var cache usecase.ObservationCache
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
		defer redisClient.Close()
		cache = usecase.NewRedisObservationCache(redisClient)
	}

	m := metrics.New()
	scorer := smile.NewScorer(cfg.Threshold)
	uc := usecase.NewInferenceUseCase(provider, scorer, cache, cfg.CacheTTL, m, logger)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(cfg, uc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var companions []*http.Server
	if cfg.MetricsAddr != "" {
		metricsServer := m.NewServer(cfg.MetricsAddr)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		companions = append(companions, metricsServer)
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
	}

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logger.Fatal("failed to bind", zap.Error(err), zap.String("addr", cfg.Addr()))
	}

	logger.Info("smile overlay server running",
		zap.String("url", "http://"+listener.Addr().String()+"/"),
		zap.Float64("threshold", scorer.Threshold()),
		zap.String("landmark_provider", cfg.LandmarkAddr),
		zap.Int("max_concurrent_detections", cfg.MaxConcurrentDetections),
		zap.Bool("cache_enabled", cache != nil),
	)
	if err := serveHTTPServerWithListener(server, cfg.ShutdownTimeout, logger, listener, companions...); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newRouter(cfg config.Config, uc handlers.Inferer, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handlers.RegisterRoutes(router, uc, handlers.Options{
		IndexHTML:    loadIndexHTML(cfg.IndexHTMLPath, logger),
		MaxBodyBytes: cfg.MaxBodyBytes,
		Logger:       logger,
	})
	return router
}

func loadIndexHTML(path string, logger *zap.Logger) []byte {
	html, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("index page unavailable, GET / will fail", zap.Error(err), zap.String("path", path))
		return nil
	}
	return html
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err), zap.String("addr", addr))
	}
	return client
}

func serveHTTPServerWithListener(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, companions ...*http.Server) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, listener, nil, companions...)
}

// serveHTTPServerWithOptions serves on listener (or server.Addr when listener is nil)
// until the server fails or a signal arrives, then drains in-flight requests.
// Companion servers, such as the metrics listener, are stopped within the same
// shutdown deadline once the main server has drained.
func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal, companions ...*http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	if signalCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		signalCh = ch
	}

	select {
	case err := <-errCh:
		closeCompanions(companions, logger)
		return err
	case sig, ok := <-signalCh:
		if !ok {
			err := <-errCh
			closeCompanions(companions, logger)
			return err
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		closeCompanions(companions, logger)
		return err
	}
	for _, companion := range companions {
		if err := companion.Shutdown(ctx); err != nil {
			logger.Warn("companion server shutdown failed", zap.Error(err), zap.String("addr", companion.Addr))
		}
	}
	return <-errCh
}

func closeCompanions(companions []*http.Server, logger *zap.Logger) {
	for _, companion := range companions {
		if err := companion.Close(); err != nil {
			logger.Warn("failed to close companion server", zap.Error(err), zap.String("addr", companion.Addr))
		}
	}
}
