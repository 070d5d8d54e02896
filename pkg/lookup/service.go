// Package lookup resolves citation queries through the cache and the recht tool.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/recht-proxy/pkg/cache"
	"github.com/Sternrassler/recht-proxy/pkg/invoker"
	"github.com/Sternrassler/recht-proxy/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Prometheus metrics for lookups.
var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recht_lookups_total",
		Help: "Total lookups by source and status",
	}, []string{"source", "status"})

	lookupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recht_lookup_duration_seconds",
		Help:    "Lookup duration in seconds by source",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"source"})

	lookupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recht_lookup_errors_total",
		Help: "Total classified lookup failures by kind",
	}, []string{"kind"})
)

// Sources of a lookup response.
const (
	sourceValidation = "validation"
	sourceCache      = "cache"
	sourceTool       = "tool"
)

// Runner invokes the recht tool and returns its standard output.
type Runner interface {
	Run(ctx context.Context, args []string) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, args []string) ([]byte, error)

// Run calls f(ctx, args).
func (f RunnerFunc) Run(ctx context.Context, args []string) ([]byte, error) {
	return f(ctx, args)
}

// Service resolves queries: normalize, check cache, invoke the tool on a miss
// and cache whatever the invocation produced.
type Service struct {
	cache  *cache.Store[Payload]
	runner Runner
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewService creates a lookup service.
func NewService(store *cache.Store[Payload], runner Runner, logger zerolog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	return &Service{
		cache:  store,
		runner: runner,
		logger: logger,
		tracer: otel.Tracer("github.com/Sternrassler/recht-proxy/pkg/lookup"),
	}, nil
}

// Lookup resolves a raw query into an API response.
// Every failure path yields a response; Lookup never panics on tool errors.
func (s *Service) Lookup(ctx context.Context, raw string) Response {
	ctx, span := s.tracer.Start(ctx, "lookup")
	defer span.End()

	startTime := time.Now()

	// Step 1: Normalize
	if strings.TrimSpace(raw) == "" {
		return s.reject(span, startTime, MessageMissingQuery)
	}

	q, ok := query.Normalize(raw)
	if !ok {
		s.logger.Debug().Str("query", raw).Msg("Rejected malformed query")
		return s.reject(span, startTime, MessageInvalidQuery)
	}
	span.SetAttributes(attribute.String("recht.cache_key", q.CacheKey))

	// Step 2: Check cache
	if payload, ok := s.cache.Get(q.CacheKey); ok {
		span.SetAttributes(attribute.Bool("recht.cache_hit", true))
		s.logger.Debug().
			Str("cache_key", q.CacheKey).
			Bool("cached_error", payload.IsError()).
			Msg("Cache hit")
		return s.finish(span, startTime, sourceCache, payload.Response())
	}
	span.SetAttributes(attribute.Bool("recht.cache_hit", false))

	// Step 3: Invoke tool; a disconnecting client does not cancel it
	output, err := s.runner.Run(context.WithoutCancel(ctx), q.ToolArgs)

	// Step 4: Shape output or classify failure
	var payload Payload
	if err != nil {
		kind := Classify(err)
		payload = ErrorPayload(kind)
		lookupErrorsTotal.WithLabelValues(string(kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		s.logFailure(q, kind, err)
	} else {
		payload = Shape(output)
		s.logger.Debug().
			Str("cache_key", q.CacheKey).
			Bool("has_url", payload.URL != nil).
			Msg("Lookup succeeded")
	}

	// Step 5: Cache the outcome
	s.cache.Set(q.CacheKey, payload)

	return s.finish(span, startTime, sourceTool, payload.Response())
}

func (s *Service) reject(span trace.Span, startTime time.Time, message string) Response {
	resp := Response{
		Status: KindValidation.Status(),
		Body:   ErrorBody{Error: message},
	}
	return s.finish(span, startTime, sourceValidation, resp)
}

func (s *Service) finish(span trace.Span, startTime time.Time, source string, resp Response) Response {
	span.SetAttributes(
		attribute.String("recht.source", source),
		attribute.Int("http.response.status_code", resp.Status),
	)
	lookupsTotal.WithLabelValues(source, fmt.Sprintf("%d", resp.Status)).Inc()
	lookupDuration.WithLabelValues(source).Observe(time.Since(startTime).Seconds())
	return resp
}

// logFailure logs the diagnostic detail that is not surfaced to clients.
func (s *Service) logFailure(q query.NormalizedQuery, kind ErrorKind, err error) {
	event := s.logger.Warn()
	if kind == KindBinaryMissing {
		event = s.logger.Error()
	}

	event = event.
		Err(err).
		Str("cache_key", q.CacheKey).
		Strs("args", q.ToolArgs).
		Str("error_kind", string(kind)).
		Int("status", kind.Status())

	var execErr *invoker.ExecError
	if errors.As(err, &execErr) {
		event = event.
			Int("exit_code", execErr.ExitCode).
			Str("stderr", execErr.Stderr)
	}

	event.Msg("Lookup failed")
}
