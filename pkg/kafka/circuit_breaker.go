package kafka

import (
	"context"
	"time"

	"github.com/wms-platform/warehouse-core/pkg/cloudevents"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
	"github.com/wms-platform/warehouse-core/pkg/resilience"
)

// CircuitBreakerProducer wraps a publisher with circuit breaker protection and
// publish metrics
type CircuitBreakerProducer struct {
	publisher      EventPublisher
	circuitBreaker *resilience.CircuitBreaker
	metrics        *metrics.Metrics
	logger         *logging.Logger
}

// NewCircuitBreakerProducer creates a new circuit breaker protected publisher.
// m may be nil.
func NewCircuitBreakerProducer(publisher EventPublisher, m *metrics.Metrics, logger *logging.Logger) *CircuitBreakerProducer {
	if logger == nil {
		logger = logging.NewNop()
	}

	// a recovering broker gets a larger half-open probe than the default
	config := resilience.DefaultCircuitBreakerConfig("kafka-producer")
	config.MaxRequests = 5

	var observer resilience.StateObserver
	if m != nil {
		observer = m
	}

	return &CircuitBreakerProducer{
		publisher:      publisher,
		circuitBreaker: resilience.NewCircuitBreaker(config, logger, observer),
		metrics:        m,
		logger:         logger,
	}
}

// PublishEvent publishes a CloudEvent with circuit breaker protection
func (p *CircuitBreakerProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	start := time.Now()
	err := p.circuitBreaker.Execute(ctx, func() error {
		return p.publisher.PublishEvent(ctx, topic, event)
	})
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, event.Type, err == nil, duration)
	}
	p.logger.KafkaPublish(ctx, topic, event.Type, err == nil, duration)
	return err
}

// Breaker exposes the underlying breaker for health reporting
func (p *CircuitBreakerProducer) Breaker() *resilience.CircuitBreaker {
	return p.circuitBreaker
}

// NewProductionProducer creates a Kafka producer wrapped with metrics and a circuit breaker
func NewProductionProducer(config *Config, m *metrics.Metrics, logger *logging.Logger) (*CircuitBreakerProducer, *Producer) {
	base := NewProducer(config)
	return NewCircuitBreakerProducer(base, m, logger), base
}
