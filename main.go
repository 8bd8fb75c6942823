package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/auth"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/batch"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/cache"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/classify"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/config"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/discovery"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/handlers"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/imageproc"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/logging"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/mover"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/preprocess"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/report"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/verify"
)

func main() {
	cfg, exit, err := config.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if exit {
		return
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	profile, err := preprocess.ProfileByName(cfg.Tolerance)
	if err != nil {
		logger.Fatal("invalid tolerance profile", zap.Error(err))
	}
	candidates, err := profile.Candidates()
	if err != nil {
		logger.Fatal("invalid tolerance profile", zap.Error(err))
	}

	sequencer := verify.NewSequencer(imageproc.NewQRDecoder(), imageproc.NewImagingTransformer(), logger)

	if cfg.Serve {
		runServer(cfg, sequencer, candidates, logger)
		return
	}

	runBatch(cfg, sequencer, candidates, logger)
}

func runBatch(cfg *config.Config, sequencer *verify.Sequencer, candidates []preprocess.Spec, logger *zap.Logger) {
	ctx := context.Background()

	paths, err := discovery.ListImages(cfg.InputDir)
	if err != nil {
		logger.Fatal("discovery failed", zap.Error(err))
	}
	if len(paths) == 0 {
		logger.Info("no image files found", zap.String("dir", cfg.InputDir))
		return
	}

	mode, err := classify.ParseMode(cfg.Mode)
	if err != nil {
		logger.Fatal("invalid mode", zap.Error(err))
	}

	fileMover := mover.New(cfg.ValidDir, cfg.InvalidDir)
	if mode != classify.ScanOnly {
		if err := fileMover.EnsureBuckets(); err != nil {
			logger.Fatal("bucket setup failed", zap.Error(err))
		}
	}

	logger.Info("starting batch",
		zap.Int("files", len(paths)),
		zap.String("tolerance", cfg.Tolerance),
		zap.Int("candidates", len(candidates)),
		zap.Int("concurrency", cfg.Concurrency),
		zap.String("mode", cfg.Mode))

	scheduler := batch.NewScheduler(sequencer, batch.FileFactory(cfg.ResizeTarget, candidates), cfg.Concurrency, logger)
	results, totals := scheduler.Run(ctx, paths)

	var classifications []classify.Classification
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		c := classify.Classification{
			Path:        result.Path,
			Destination: classify.Decide(result.Outcome.Decoded, mode),
			Text:        result.Outcome.Text,
		}
		classifications = append(classifications, c)
		if err := fileMover.Apply(c, mode.Copies()); err != nil {
			logger.Error("move failed", zap.String("path", c.Path), zap.Error(err))
		}
	}

	report.Render(os.Stdout, report.Build(totals, classifications, mode.Copies()), results)
}

func runServer(cfg *config.Config, sequencer *verify.Sequencer, candidates []preprocess.Spec, logger *zap.Logger) {
	var verdictCache cache.Cache
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		verdictCache = cache.NewRedisCache(client)
	}

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize

	var middleware []gin.HandlerFunc
	if cfg.JWTSecret != "" {
		middleware = append(middleware, auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience))
	}

	server := handlers.NewServer(sequencer, verdictCache, candidates, cfg.ResizeTarget, logger)
	server.RegisterRoutes(r, middleware...)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	logger.Info("verification endpoint listening", zap.String("addr", cfg.HTTPAddr))
	if err := serveHTTPServer(httpServer, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
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

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
