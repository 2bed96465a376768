package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/kafka"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/mongodb"
	"github.com/wms-platform/warehouse-core/pkg/tracing"
)

// DefaultConfigFile is read when CONFIG_FILE is not set
const DefaultConfigFile = "config/warehouse.yaml"

// Config holds application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	MongoDB   mongodb.Config  `yaml:"mongodb"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Temporal  TemporalConfig  `yaml:"temporal"`
	Tracing   tracing.Config  `yaml:"tracing"`
	Stats     StatsConfig     `yaml:"stats"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type KafkaConfig struct {
	Brokers             []string `yaml:"brokers"`
	ConsumerGroup       string   `yaml:"consumerGroup"`
	MovementFeedEnabled bool     `yaml:"movementFeedEnabled"`
}

type OutboxConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	BatchSize    int           `yaml:"batchSize"`
	// Retention is how long published events are kept before purging
	Retention time.Duration `yaml:"retention"`
}

type TemporalConfig struct {
	HostPort   string `yaml:"hostPort"`
	Namespace  string `yaml:"namespace"`
	TaskQueue  string `yaml:"taskQueue"`
	APIBaseURL string `yaml:"apiBaseURL"`
	// MetricsAddr is where the worker serves /metrics
	MetricsAddr string `yaml:"metricsAddr"`
}

type StatsConfig struct {
	// RefreshSpec is a robfig/cron schedule, e.g. "@every 30s"
	RefreshSpec string `yaml:"refreshSpec"`
}

// WarehouseConfig is the static reference data of the warehouse
type WarehouseConfig struct {
	StagingLocation string       `yaml:"stagingLocation"`
	Zones           []ZoneConfig `yaml:"zones"`
	Items           []ItemConfig `yaml:"items"`
}

type ZoneConfig struct {
	ID            string   `yaml:"id"`
	Code          string   `yaml:"code"`
	Type          string   `yaml:"type"`
	CapacityUnits int      `yaml:"capacityUnits"`
	Active        bool     `yaml:"active"`
	Bins          []string `yaml:"bins"`
}

type ItemConfig struct {
	SKU             string  `yaml:"sku"`
	ReorderPoint    int     `yaml:"reorderPoint"`
	ReorderQuantity int     `yaml:"reorderQuantity"`
	UnitCost        float64 `yaml:"unitCost"`
}

// Default returns the built-in configuration without reference data
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080", ReadTimeout: 10 * time.Second, WriteTimeout: 30 * time.Second},
		Log:     LogConfig{Level: string(logging.LevelInfo)},
		MongoDB: *mongodb.DefaultConfig(),
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "warehouse-core",
		},
		Outbox: OutboxConfig{PollInterval: time.Second, BatchSize: 100, Retention: 72 * time.Hour},
		Temporal: TemporalConfig{
			HostPort:    "localhost:7233",
			Namespace:   "default",
			TaskQueue:   "warehouse-core",
			APIBaseURL:  "http://localhost:8080",
			MetricsAddr: ":9091",
		},
		Tracing: *tracing.DefaultConfig("warehouse-core"),
		Stats:   StatsConfig{RefreshSpec: "@every 30s"},
	}
}

// Load reads an optional .env file, the YAML file named by CONFIG_FILE (or
// path when CONFIG_FILE is unset), then applies environment overrides
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if env := os.Getenv("CONFIG_FILE"); env != "" {
		path = env
	}
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.MongoDB.URI, "MONGODB_URI")
	setString(&c.MongoDB.Database, "MONGODB_DATABASE")
	setString(&c.Kafka.ConsumerGroup, "KAFKA_CONSUMER_GROUP")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	setBool(&c.Kafka.MovementFeedEnabled, "KAFKA_MOVEMENT_FEED_ENABLED")
	setString(&c.Temporal.HostPort, "TEMPORAL_HOST_PORT")
	setString(&c.Temporal.Namespace, "TEMPORAL_NAMESPACE")
	setString(&c.Temporal.TaskQueue, "TEMPORAL_TASK_QUEUE")
	setString(&c.Temporal.APIBaseURL, "WAREHOUSE_API_URL")
	setBool(&c.Tracing.Enabled, "TRACING_ENABLED")
	setString(&c.Tracing.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Tracing.Environment, "ENVIRONMENT")
	setString(&c.Stats.RefreshSpec, "STATS_REFRESH_SPEC")
}

// Validate rejects configurations the warehouse cannot start with
func (c *Config) Validate() error {
	var errs []error

	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers must not be empty"))
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 {
		errs = append(errs, errors.New("outbox.batchSize and outbox.pollInterval must be positive"))
	}
	if _, err := cron.ParseStandard(c.Stats.RefreshSpec); err != nil {
		errs = append(errs, fmt.Errorf("stats.refreshSpec: %w", err))
	}
	if len(c.Warehouse.Zones) == 0 {
		errs = append(errs, errors.New("warehouse.zones must not be empty"))
	}

	zoneIDs := make(map[string]bool)
	bins := make(map[string]string)
	for _, z := range c.Warehouse.Zones {
		if z.ID == "" {
			errs = append(errs, errors.New("zone id is required"))
			continue
		}
		if zoneIDs[z.ID] {
			errs = append(errs, fmt.Errorf("zone %s is defined twice", z.ID))
		}
		zoneIDs[z.ID] = true
		if z.CapacityUnits < 0 {
			errs = append(errs, fmt.Errorf("zone %s has negative capacity", z.ID))
		}
		if !domain.ZoneType(z.Type).IsValid() {
			errs = append(errs, fmt.Errorf("zone %s has unknown type %q", z.ID, z.Type))
		}
		for _, bin := range z.Bins {
			if owner, dup := bins[bin]; dup {
				errs = append(errs, fmt.Errorf("bin %s is declared by zones %s and %s", bin, owner, z.ID))
				continue
			}
			bins[bin] = z.ID
		}
	}

	if c.Warehouse.StagingLocation == "" {
		errs = append(errs, errors.New("warehouse.stagingLocation is required"))
	} else if _, ok := bins[c.Warehouse.StagingLocation]; !ok {
		errs = append(errs, fmt.Errorf("staging location %s is not a declared bin", c.Warehouse.StagingLocation))
	}

	skus := make(map[string]bool)
	for _, item := range c.Warehouse.Items {
		if skus[item.SKU] {
			errs = append(errs, fmt.Errorf("item %s is defined twice", item.SKU))
		}
		skus[item.SKU] = true
	}

	return errors.Join(errs...)
}

// DomainConfig converts the reference data into the domain's warehouse config
func (c *Config) DomainConfig() domain.WarehouseConfig {
	zones := make([]domain.ZoneDefinition, 0, len(c.Warehouse.Zones))
	for _, z := range c.Warehouse.Zones {
		zones = append(zones, domain.ZoneDefinition{
			Zone: domain.Zone{
				ID:            z.ID,
				Code:          z.Code,
				Type:          domain.ZoneType(z.Type),
				CapacityUnits: z.CapacityUnits,
				IsActive:      z.Active,
			},
			Bins: append([]string(nil), z.Bins...),
		})
	}

	items := make([]domain.Item, 0, len(c.Warehouse.Items))
	for _, it := range c.Warehouse.Items {
		items = append(items, domain.Item{
			SKU:             it.SKU,
			ReorderPoint:    it.ReorderPoint,
			ReorderQuantity: it.ReorderQuantity,
			UnitCost:        it.UnitCost,
		})
	}

	return domain.WarehouseConfig{
		Zones:           zones,
		Items:           items,
		StagingLocation: c.Warehouse.StagingLocation,
	}
}

// KafkaClientConfig builds the kafka-go client configuration
func (c *Config) KafkaClientConfig() *kafka.Config {
	kc := kafka.DefaultConfig()
	kc.Brokers = c.Kafka.Brokers
	kc.ConsumerGroup = c.Kafka.ConsumerGroup
	kc.ClientID = c.Kafka.ConsumerGroup
	return kc
}

// LoggingConfig builds the logger configuration for serviceName
func (c *Config) LoggingConfig(serviceName string) *logging.Config {
	lc := logging.DefaultConfig(serviceName)
	lc.Level = logging.LogLevel(strings.ToLower(c.Log.Level))
	return lc
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
