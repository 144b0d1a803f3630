// cmd/sessiond/serve.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/SyedDaiam9101/session-service/internal/cache"
	"github.com/SyedDaiam9101/session-service/internal/config"
	"github.com/SyedDaiam9101/session-service/internal/engine"
	"github.com/SyedDaiam9101/session-service/internal/handler"
	"github.com/SyedDaiam9101/session-service/internal/logger"
	"github.com/SyedDaiam9101/session-service/internal/metrics"
	"github.com/SyedDaiam9101/session-service/internal/middleware"
	"github.com/SyedDaiam9101/session-service/internal/reload"
	"github.com/SyedDaiam9101/session-service/internal/rpc"
	"github.com/SyedDaiam9101/session-service/internal/session"
)

// drainPeriod gives load balancers time to observe NOT_SERVING.
const drainPeriod = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the model over gRPC",
	Long:  `Loads the configured model and serves it over gRPC, with metrics and health checks over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		log := logger.New(
			logger.WithLevel(level),
			logger.WithFormat(cfg.LogFormat),
			logger.WithFile(cfg.LogFile),
		)
		slog.SetDefault(log)

		return serve(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.Int("port", 50051, "gRPC server port")
	f.Int("metrics-port", 9100, "HTTP port for metrics and health checks")
	f.String("model", "model.onnx", "Path to the model file")
	f.Bool("watch", false, "Reload the session when the model file changes")
	f.String("redis", "", "Redis address for the result cache (disabled when empty)")
	f.Duration("cache-ttl", cache.DefaultTTL, "Result cache entry lifetime")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-file", "", "Also write JSON logs to this file")
	f.String("log-format", "text", "Console log format (text, json)")
	f.Int("threads", 0, "Intra-op thread count (0 lets the engine decide)")
	f.Bool("profile", false, "Enable engine profiling")
}

// modelLoader builds sessions for a model file and identifies each by a
// digest of the file content.
func modelLoader(opts *engine.Options, factory engine.Factory) reload.LoadFunc {
	return func(path string) (*session.Session, string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read model: %w", err)
		}
		s, err := session.New(session.Path(path), opts, factory)
		if err != nil {
			return nil, "", err
		}
		return s, cache.ModelID(data), nil
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("Starting "+serviceName,
		"port", cfg.Port,
		"model", cfg.Model,
		"engine", cfg.Engine,
		"redis", cfg.Redis,
		"metrics_port", cfg.MetricsPort,
		"otel", cfg.OTELEnabled,
	)

	// Initialize OpenTelemetry tracer
	var tracerShutdown func(context.Context) error
	if cfg.OTELEnabled {
		var err error
		tracerShutdown, err = initTracer(cfg.OTELEndpoint, log)
		if err != nil {
			log.Warn("Failed to initialize tracer", "error", err)
		} else {
			log.Info("OpenTelemetry tracing enabled", "endpoint", cfg.OTELEndpoint)
		}
	}

	factory, err := engineFactory(cfg)
	if err != nil {
		return err
	}
	loadSession := modelLoader(&cfg.Session, factory)

	log.Info("Loading model", "path", cfg.Model)
	s, modelID, err := loadSession(cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	log.Info("Model loaded",
		"model_id", modelID,
		"inputs", len(s.Inputs()),
		"outputs", len(s.Outputs()),
		"graph", s.ModelMeta().GraphName,
	)

	// Initialize Redis cache (optional)
	var cacheClient *cache.Cache
	if cfg.Redis != "" {
		log.Info("Connecting to Redis", "addr", cfg.Redis)
		cacheClient, err = cache.New(ctx, cfg.Redis, cache.WithTTL(cfg.CacheTTL))
		if err != nil {
			log.Warn("Failed to connect to Redis, continuing without cache", "error", err)
			cacheClient = nil
		} else {
			defer cacheClient.Close()
			log.Info("Redis connected")
		}
	}

	h := handler.New(s, modelID, cacheClient, log)
	defer h.Close()

	healthServer := health.NewServer()
	httpServer := startHTTPServer(fmt.Sprintf(":%d", cfg.MetricsPort), newAdminRouter(healthServer, h, log), log)

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			middleware.UnaryRequestIDInterceptor(),
			middleware.UnaryMetricsInterceptor(),
			middleware.UnaryLoggingInterceptor(log),
		),
	}
	if cfg.OTELEnabled {
		opts = append(opts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}
	grpcServer := grpc.NewServer(opts...)

	rpc.RegisterSessionServiceServer(grpcServer, h)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	addr := fmt.Sprintf(":%d", cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WatchModel {
		w := reload.New(cfg.Model, loadSession, h.Swap, log)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("Model watcher stopped", "error", err)
			}
		}()
		log.Info("Watching model for changes", "path", cfg.Model)
	}

	healthServer.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	metrics.SetHealthy()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down gracefully")

		healthServer.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		metrics.SetUnhealthy()

		time.Sleep(drainPeriod)
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown", "error", err)
		}
		if tracerShutdown != nil {
			if err := tracerShutdown(shutdownCtx); err != nil {
				log.Warn("Tracer shutdown", "error", err)
			}
		}
	}()

	log.Info("gRPC server listening", "addr", addr)
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	log.Info("Server shutdown complete")
	return nil
}
