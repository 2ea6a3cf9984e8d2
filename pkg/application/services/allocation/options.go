package allocation

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vsinha/cidery/pkg/infrastructure/events"
	"github.com/vsinha/cidery/pkg/infrastructure/locking"
)

// MetricsRecorder receives allocation outcomes
type MetricsRecorder interface {
	ObserveRun(result string, elapsed time.Duration)
	BatchesCreated(n int)
	CostDivergence()
	PublishFailure()
}

type nopMetrics struct{}

func (nopMetrics) ObserveRun(string, time.Duration) {}
func (nopMetrics) BatchesCreated(int)               {}
func (nopMetrics) CostDivergence()                  {}
func (nopMetrics) PublishFailure()                  {}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocker sets the lock serializing allocations of one press run
func WithLocker(locker locking.Locker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithPublisher sets the audit sink for batch events
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the uuid generator for batch and row ids
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithCostCheck(check CostCheck) Option {
	return func(s *Service) {
		s.costCheck = check
	}
}
