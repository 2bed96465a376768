package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all warehouse core metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaEventsConsumed  *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPublished       *prometheus.CounterVec
	OutboxPublishDuration *prometheus.HistogramVec
	OutboxRetries         *prometheus.CounterVec
	OutboxPending         prometheus.Gauge

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Temporal metrics
	ActivitiesCompleted *prometheus.CounterVec
	ActivityDuration    *prometheus.HistogramVec

	// Warehouse metrics
	MovementsApplied   *prometheus.CounterVec
	OrderTransitions   *prometheus.CounterVec
	ShipmentTransition *prometheus.CounterVec
	TaskLifecycle      *prometheus.CounterVec
	CountVariances     *prometheus.CounterVec

	// Gauges fed by the stats aggregator
	InventoryValue     prometheus.Gauge
	InventoryUnits     prometheus.Gauge
	ZoneUtilization    prometheus.Gauge
	LowStockRecords    prometheus.Gauge
	OutOfStockRecords  prometheus.Gauge
	OpenTasks          prometheus.Gauge
	ActiveTasks        prometheus.Gauge
	CycleCountAccuracy prometheus.Gauge

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// StatsGauges is the KPI set published by SetStats
type StatsGauges struct {
	TotalValue         float64
	TotalUnits         int
	AvgZoneUtilization float64
	LowStock           int
	OutOfStock         int
	OpenTasks          int
	ActiveTasks        int
	CountAccuracy      float64
}

// New creates a new Metrics instance on its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	service := prometheus.Labels{"service": config.ServiceName}
	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total", Help: "Total number of HTTP requests"},
		[]string{"service", "method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "http_requests_in_flight",
		Help:        "Number of HTTP requests currently being processed",
		ConstLabels: service,
	})

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_published_total", Help: "Total number of Kafka events published"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaEventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_consumed_total", Help: "Total number of Kafka events consumed"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_events_published_total", Help: "Outbox events relayed to Kafka"},
		[]string{"service", "event_type", "status"},
	)
	m.OutboxPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "outbox_publish_duration_seconds",
			Help:      "Outbox relay duration per event in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "event_type"},
	)
	m.OutboxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_retries_total", Help: "Outbox relay retries"},
		[]string{"service", "event_type"},
	)
	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "outbox_pending_events",
		Help:        "Unpublished outbox events seen by the last poll",
		ConstLabels: service,
	})

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "mongodb_operations_total", Help: "Total number of MongoDB operations"},
		[]string{"service", "collection", "operation", "status"},
	)
	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.ActivitiesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "temporal_activities_completed_total", Help: "Total number of Temporal activities completed"},
		[]string{"service", "activity_type", "status"},
	)
	m.ActivityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "temporal_activity_duration_seconds",
			Help:      "Temporal activity duration in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
		},
		[]string{"service", "activity_type"},
	)

	m.MovementsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "movements_total", Help: "Stock movements by type and result"},
		[]string{"service", "type", "result"},
	)
	m.OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "order_transitions_total", Help: "Order state transitions"},
		[]string{"service", "to", "result"},
	)
	m.ShipmentTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "shipment_transitions_total", Help: "Inbound shipment state transitions"},
		[]string{"service", "to", "result"},
	)
	m.TaskLifecycle = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "task_lifecycle_total", Help: "Warehouse task lifecycle changes"},
		[]string{"service", "type", "action"},
	)
	m.CountVariances = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "cycle_count_submissions_total", Help: "Cycle count submissions by outcome"},
		[]string{"service", "outcome"},
	)

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: name, Help: help, ConstLabels: service})
	}
	m.InventoryValue = gauge("inventory_value", "Total on-hand inventory value")
	m.InventoryUnits = gauge("inventory_units", "Total on-hand units")
	m.ZoneUtilization = gauge("zone_utilization_avg", "Average utilization of active zones (0-1)")
	m.LowStockRecords = gauge("inventory_low_stock_records", "Records in low_stock")
	m.OutOfStockRecords = gauge("inventory_out_of_stock_records", "Records in out_of_stock")
	m.OpenTasks = gauge("tasks_open", "Pending or assigned tasks")
	m.ActiveTasks = gauge("tasks_active", "In-progress tasks")
	m.CycleCountAccuracy = gauge("cycle_count_accuracy", "Accuracy of completed cycle counts (0-1)")

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: ns, Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)"},
		[]string{"service", "name"},
	)
	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "circuit_breaker_trips_total", Help: "Total number of circuit breaker trips"},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaEventsConsumed,
		m.KafkaPublishDuration,
		m.OutboxPublished,
		m.OutboxPublishDuration,
		m.OutboxRetries,
		m.OutboxPending,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.ActivitiesCompleted,
		m.ActivityDuration,
		m.MovementsApplied,
		m.OrderTransitions,
		m.ShipmentTransition,
		m.TaskLifecycle,
		m.CountVariances,
		m.InventoryValue,
		m.InventoryUnits,
		m.ZoneUtilization,
		m.LowStockRecords,
		m.OutOfStockRecords,
		m.OpenTasks,
		m.ActiveTasks,
		m.CycleCountAccuracy,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordKafkaConsume records a consumed Kafka message
func (m *Metrics) RecordKafkaConsume(topic, eventType string, success bool) {
	m.KafkaEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
}

// RecordOutboxPublish records one relayed outbox event
func (m *Metrics) RecordOutboxPublish(eventType string, success bool, duration time.Duration) {
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, statusLabel(success)).Inc()
	m.OutboxPublishDuration.WithLabelValues(m.serviceName, eventType).Observe(duration.Seconds())
}

// RecordOutboxRetry records a failed relay attempt that will be retried
func (m *Metrics) RecordOutboxRetry(eventType string) {
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// RecordActivityCompleted records an activity completion
func (m *Metrics) RecordActivityCompleted(activityType string, success bool, duration time.Duration) {
	m.ActivitiesCompleted.WithLabelValues(m.serviceName, activityType, statusLabel(success)).Inc()
	m.ActivityDuration.WithLabelValues(m.serviceName, activityType).Observe(duration.Seconds())
}

// RecordMovement records an applied, replayed or rejected movement
func (m *Metrics) RecordMovement(movementType, result string) {
	m.MovementsApplied.WithLabelValues(m.serviceName, movementType, result).Inc()
}

// RecordOrderTransition records an order transition attempt
func (m *Metrics) RecordOrderTransition(to string, success bool) {
	m.OrderTransitions.WithLabelValues(m.serviceName, to, statusLabel(success)).Inc()
}

// RecordShipmentTransition records a shipment transition attempt
func (m *Metrics) RecordShipmentTransition(to string, success bool) {
	m.ShipmentTransition.WithLabelValues(m.serviceName, to, statusLabel(success)).Inc()
}

// RecordTask records a task lifecycle change
func (m *Metrics) RecordTask(taskType, action string) {
	m.TaskLifecycle.WithLabelValues(m.serviceName, taskType, action).Inc()
}

// RecordCountSubmission records a cycle count submission
func (m *Metrics) RecordCountSubmission(variance bool) {
	outcome := "match"
	if variance {
		outcome = "variance"
	}
	m.CountVariances.WithLabelValues(m.serviceName, outcome).Inc()
}

// SetStats publishes the latest stats snapshot
func (m *Metrics) SetStats(s StatsGauges) {
	m.InventoryValue.Set(s.TotalValue)
	m.InventoryUnits.Set(float64(s.TotalUnits))
	m.ZoneUtilization.Set(s.AvgZoneUtilization)
	m.LowStockRecords.Set(float64(s.LowStock))
	m.OutOfStockRecords.Set(float64(s.OutOfStock))
	m.OpenTasks.Set(float64(s.OpenTasks))
	m.ActiveTasks.Set(float64(s.ActiveTasks))
	m.CycleCountAccuracy.Set(s.CountAccuracy)
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
