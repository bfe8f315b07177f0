package observability

import (
	"context"
	"time"

	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("gatekeeper/storage")
	meter := otel.Meter("gatekeeper/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, span := s.startSpan(ctx, "CreateUser", attribute.String("username", user.Username))
	start := time.Now()
	err := s.inner.CreateUser(ctx, user)
	s.record(ctx, span, "CreateUser", start, err)
	return err
}

func (s *InstrumentedStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, span := s.startSpan(ctx, "GetUserByUsername", attribute.String("username", username))
	start := time.Now()
	result, err := s.inner.GetUserByUsername(ctx, username)
	s.record(ctx, span, "GetUserByUsername", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	ctx, span := s.startSpan(ctx, "GetUserByID", attribute.String("user_id", id))
	start := time.Now()
	result, err := s.inner.GetUserByID(ctx, id)
	s.record(ctx, span, "GetUserByID", start, err)
	return result, err
}

func (s *InstrumentedStorage) Users(ctx context.Context) ([]*models.User, error) {
	ctx, span := s.startSpan(ctx, "Users")
	start := time.Now()
	result, err := s.inner.Users(ctx)
	s.record(ctx, span, "Users", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveWhitelistEntry(ctx context.Context, entry *models.WhitelistEntry) error {
	ctx, span := s.startSpan(ctx, "SaveWhitelistEntry", attribute.String("username", entry.Username))
	start := time.Now()
	err := s.inner.SaveWhitelistEntry(ctx, entry)
	s.record(ctx, span, "SaveWhitelistEntry", start, err)
	return err
}

func (s *InstrumentedStorage) GetWhitelistEntryByUser(ctx context.Context, userID string) (*models.WhitelistEntry, error) {
	ctx, span := s.startSpan(ctx, "GetWhitelistEntryByUser", attribute.String("user_id", userID))
	start := time.Now()
	result, err := s.inner.GetWhitelistEntryByUser(ctx, userID)
	s.record(ctx, span, "GetWhitelistEntryByUser", start, err)
	return result, err
}

func (s *InstrumentedStorage) WhitelistEntries(ctx context.Context) ([]*models.WhitelistEntry, error) {
	ctx, span := s.startSpan(ctx, "WhitelistEntries")
	start := time.Now()
	result, err := s.inner.WhitelistEntries(ctx)
	s.record(ctx, span, "WhitelistEntries", start, err)
	return result, err
}

func (s *InstrumentedStorage) DeactivateWhitelistEntry(ctx context.Context, username string) error {
	ctx, span := s.startSpan(ctx, "DeactivateWhitelistEntry", attribute.String("username", username))
	start := time.Now()
	err := s.inner.DeactivateWhitelistEntry(ctx, username)
	s.record(ctx, span, "DeactivateWhitelistEntry", start, err)
	return err
}

func (s *InstrumentedStorage) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	ctx, span := s.startSpan(ctx, "IsWhitelisted", attribute.String("user_id", userID))
	start := time.Now()
	result, err := s.inner.IsWhitelisted(ctx, userID)
	s.record(ctx, span, "IsWhitelisted", start, err)
	return result, err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
