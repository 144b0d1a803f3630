// internal/handler/handler.go
package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SyedDaiam9101/session-service/internal/cache"
	"github.com/SyedDaiam9101/session-service/internal/metrics"
	"github.com/SyedDaiam9101/session-service/internal/middleware"
	"github.com/SyedDaiam9101/session-service/internal/rpc"
	"github.com/SyedDaiam9101/session-service/internal/session"
)

const tracerName = "github.com/SyedDaiam9101/session-service/internal/handler"

// ErrHandlerClosed is returned by Swap after Close.
var ErrHandlerClosed = errors.New("handler: closed")

// loaded pairs a session with the identity of the model it serves and
// counts the requests using it. A retired session is closed once the last
// request releases it.
type loaded struct {
	session *session.Session
	modelID string

	mu      sync.Mutex
	refs    int
	retired bool
	drained chan struct{}
}

func newLoaded(s *session.Session, modelID string) *loaded {
	return &loaded{session: s, modelID: modelID, drained: make(chan struct{})}
}

func (l *loaded) acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retired {
		return false
	}
	l.refs++
	return true
}

func (l *loaded) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs--
	if l.retired && l.refs == 0 {
		close(l.drained)
	}
}

// retire stops new requests from acquiring l, waits for in-flight ones and
// closes the session.
func (l *loaded) retire() error {
	l.mu.Lock()
	l.retired = true
	if l.refs == 0 {
		close(l.drained)
	}
	l.mu.Unlock()

	<-l.drained
	return l.session.Close()
}

// Handler implements the SessionServiceServer interface over a session that
// can be replaced while serving.
type Handler struct {
	rpc.UnimplementedSessionServiceServer
	current atomic.Pointer[loaded]
	cache   *cache.Cache
	log     *slog.Logger
	tracer  trace.Tracer

	swapMu sync.Mutex
	closed bool
}

// New creates a new Handler serving s. s may be nil until Swap is called;
// cache may be nil to disable result caching.
func New(s *session.Session, modelID string, cache *cache.Cache, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		cache:  cache,
		log:    log,
		tracer: otel.Tracer(tracerName),
	}
	if s != nil {
		h.current.Store(newLoaded(s, modelID))
	}
	return h
}

// Swap installs a new session and closes the previous one after its
// in-flight requests finish. After Close, s is closed and ErrHandlerClosed
// returned.
func (h *Handler) Swap(s *session.Session, modelID string) error {
	h.swapMu.Lock()
	defer h.swapMu.Unlock()

	if h.closed {
		return errors.Join(ErrHandlerClosed, s.Close())
	}
	prev := h.current.Swap(newLoaded(s, modelID))
	if prev == nil {
		return nil
	}
	return prev.retire()
}

// Session returns the session currently served, or nil.
func (h *Handler) Session() *session.Session {
	if cur := h.current.Load(); cur != nil {
		return cur.session
	}
	return nil
}

// Close releases the current session once in-flight requests finish.
// Later Swaps are rejected.
func (h *Handler) Close() error {
	h.swapMu.Lock()
	defer h.swapMu.Unlock()

	h.closed = true
	prev := h.current.Swap(nil)
	if prev == nil {
		return nil
	}
	if err := prev.retire(); err != nil && !errors.Is(err, session.ErrClosed) {
		return err
	}
	return nil
}

// load acquires the current session. The caller must release it.
func (h *Handler) load() (*loaded, error) {
	for {
		cur := h.current.Load()
		if cur == nil {
			return nil, unavailableError("no model loaded")
		}
		if cur.acquire() {
			return cur, nil
		}
		// retired by a concurrent Swap, the replacement is already installed
	}
}

// GetInputs returns the declared model inputs
func (h *Handler) GetInputs(ctx context.Context, _ *rpc.Empty) (*rpc.ValueInfosResponse, error) {
	cur, err := h.load()
	if err != nil {
		return nil, err
	}
	defer cur.release()
	return &rpc.ValueInfosResponse{Values: cur.session.Inputs()}, nil
}

// GetOutputs returns the declared model outputs
func (h *Handler) GetOutputs(ctx context.Context, _ *rpc.Empty) (*rpc.ValueInfosResponse, error) {
	cur, err := h.load()
	if err != nil {
		return nil, err
	}
	defer cur.release()
	return &rpc.ValueInfosResponse{Values: cur.session.Outputs()}, nil
}

// GetModelMeta returns the model metadata
func (h *Handler) GetModelMeta(ctx context.Context, _ *rpc.Empty) (*rpc.ModelMetaResponse, error) {
	cur, err := h.load()
	if err != nil {
		return nil, err
	}
	defer cur.release()
	return &rpc.ModelMetaResponse{Meta: cur.session.ModelMeta()}, nil
}

// Run handles one inference request, consulting the result cache first
func (h *Handler) Run(ctx context.Context, req *rpc.RunRequest) (*rpc.RunResponse, error) {
	start := time.Now()

	// Get request ID for logging
	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = "unknown"
	}
	log := h.log.With("request_id", requestID)

	if req == nil {
		return nil, invalidArgumentError("request cannot be nil")
	}
	for name, t := range req.Feed {
		if err := t.Validate(); err != nil {
			return nil, invalidArgumentError("input %q: %v", name, err)
		}
	}

	cur, err := h.load()
	if err != nil {
		return nil, err
	}
	defer cur.release()

	terminate := req.RunOptions != nil && req.RunOptions.Terminate
	var key string
	if h.cache != nil && !terminate {
		outputNames := req.OutputNames
		if len(outputNames) == 0 {
			outputNames = cur.session.OutputNames()
		}
		key, err = h.cache.Key(cur.modelID, outputNames, req.Feed)
		if err != nil {
			log.Warn("Cache key failed", "error", err)
		} else if results, ok, err := h.cache.Get(ctx, key); err != nil {
			metrics.RecordCache("error")
			log.Warn("Cache lookup failed", "error", err)
		} else if ok {
			metrics.RecordCache("hit")
			return &rpc.RunResponse{Outputs: results, Cached: true}, nil
		} else {
			metrics.RecordCache("miss")
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("session.model", cur.modelID),
		attribute.Int("session.feed_size", len(req.Feed)),
		attribute.StringSlice("session.output_names", req.OutputNames),
	}
	if req.RunOptions != nil && req.RunOptions.Tag != "" {
		attrs = append(attrs, attribute.String("session.run_tag", req.RunOptions.Tag))
	}
	ctx, span := h.tracer.Start(ctx, "session.Run", trace.WithAttributes(attrs...))
	defer span.End()

	// Run inference with timing
	runStart := time.Now()
	results, err := cur.session.Run(req.OutputNames, req.Feed, req.RunOptions)
	runDuration := time.Since(runStart)
	metrics.RecordRun(runDuration.Seconds(), len(req.Feed))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		metrics.RecordRunError(errorKind(err))
		log.Error("Run failed", "error", err)
		return nil, grpcError(err)
	}

	if key != "" {
		if err := h.cache.Set(ctx, key, results); err != nil {
			log.Warn("Cache store failed", "error", err)
		}
	}

	log.Info("Run",
		"feed_size", len(req.Feed),
		"outputs", len(results),
		"run_ms", float64(runDuration.Microseconds())/1000.0,
		"total_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	return &rpc.RunResponse{Outputs: results}, nil
}

// EndProfiling stops profiling on the current session
func (h *Handler) EndProfiling(ctx context.Context, _ *rpc.Empty) (*rpc.EndProfilingResponse, error) {
	cur, err := h.load()
	if err != nil {
		return nil, err
	}
	defer cur.release()
	artifact, err := cur.session.EndProfiling()
	if err != nil {
		return nil, grpcError(err)
	}
	h.log.Info("Profiling ended", "artifact", artifact)
	return &rpc.EndProfilingResponse{Artifact: artifact}, nil
}

// Ensure Handler implements SessionServiceServer at compile time
var _ rpc.SessionServiceServer = (*Handler)(nil)
