// internal/middleware/metrics.go
package middleware

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/SyedDaiam9101/session-service/internal/metrics"
)

// UnaryMetricsInterceptor records the duration of each unary call in the
// gRPC latency histogram, labelled by method and status code.
func UnaryMetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		// status.Code maps non-status errors to Unknown
		metrics.RecordGRPCLatency(info.FullMethod, status.Code(err).String(), time.Since(start).Seconds())

		return resp, err
	}
}

// UnaryLoggingInterceptor logs every failed call, and successful ones at
// debug level, with the request ID attached.
func UnaryLoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := []any{
			"method", info.FullMethod,
			"request_id", GetRequestID(ctx),
			"duration", time.Since(start),
		}
		if err != nil {
			st := status.Convert(err)
			log.Warn("gRPC call failed", append(attrs, "code", st.Code().String(), "error", st.Message())...)
		} else {
			log.Debug("gRPC call", attrs...)
		}

		return resp, err
	}
}
