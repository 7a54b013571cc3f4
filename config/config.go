package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP           HTTPConfig           `yaml:"http"`
	GRPC           GRPCConfig           `yaml:"grpc"`
	Database       DatabaseConfig       `yaml:"database"`
	Mongo          MongoConfig          `yaml:"mongo"`
	Storage        StorageConfig        `yaml:"storage"`
	Redis          RedisConfig          `yaml:"redis"`
	Kafka          KafkaConfig          `yaml:"kafka"`
	Inventory      InventoryConfig      `yaml:"inventory"`
	Gate           GateConfig           `yaml:"gate"`
	Booking        BookingConfig        `yaml:"booking"`
	Cancellation   CancellationConfig   `yaml:"cancellation"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	SMTP           SMTPConfig           `yaml:"smtp"`
	Log            LogConfig            `yaml:"log"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

const (
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
	StorageMemory   = "memory"
)

// StorageConfig selects the backend of each store.
type StorageConfig struct {
	Bookings  string `yaml:"bookings"`
	Inventory string `yaml:"inventory"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type InventoryConfig struct {
	// Address of the inventory authority gRPC endpoint.
	Address string `yaml:"address"`
}

type GateConfig struct {
	CallTimeout         time.Duration `yaml:"call_timeout"`
	Interval            time.Duration `yaml:"interval"`
	Cooldown            time.Duration `yaml:"cooldown"`
	FailureRatio        float64       `yaml:"failure_ratio"`
	MinRequests         uint32        `yaml:"min_requests"`
	HalfOpenMaxRequests uint32        `yaml:"half_open_max_requests"`
	Retries             uint64        `yaml:"retries"`
}

type BookingConfig struct {
	InFlightLockTTL   time.Duration `yaml:"in_flight_lock_ttl"`
	FlightsCacheTTL   time.Duration `yaml:"flights_cache_ttl"`
	NotificationQueue int           `yaml:"notification_queue"`
}

type CancellationConfig struct {
	CutoffHours int    `yaml:"cutoff_hours"`
	Location    string `yaml:"location"`
}

// Loc resolves the location used for departure-date midnights.
func (c CancellationConfig) Loc() (*time.Location, error) {
	if c.Location == "" || c.Location == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Location)
}

type ReconciliationConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	BatchSize     int           `yaml:"batch_size"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	AuthHeader   string `yaml:"auth_header"`
	Insecure     bool   `yaml:"insecure"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills every zero value that has a sensible default.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Inventory.Address == "" {
		c.Inventory.Address = "localhost:9090"
	}
	if c.Storage.Bookings == "" {
		c.Storage.Bookings = StoragePostgres
	}
	if c.Storage.Inventory == "" {
		c.Storage.Inventory = StoragePostgres
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "bookings"
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "booking-notifications"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "booking-notifier"
	}
	if c.Gate.CallTimeout == 0 {
		c.Gate.CallTimeout = 2 * time.Second
	}
	if c.Gate.Interval == 0 {
		c.Gate.Interval = 60 * time.Second
	}
	if c.Gate.Cooldown == 0 {
		c.Gate.Cooldown = 30 * time.Second
	}
	if c.Gate.FailureRatio == 0 {
		c.Gate.FailureRatio = 0.5
	}
	if c.Gate.MinRequests == 0 {
		c.Gate.MinRequests = 5
	}
	if c.Gate.HalfOpenMaxRequests == 0 {
		c.Gate.HalfOpenMaxRequests = 1
	}
	if c.Booking.InFlightLockTTL == 0 {
		c.Booking.InFlightLockTTL = 30 * time.Second
	}
	if c.Booking.FlightsCacheTTL == 0 {
		c.Booking.FlightsCacheTTL = 30 * time.Second
	}
	if c.Booking.NotificationQueue == 0 {
		c.Booking.NotificationQueue = 256
	}
	if c.Cancellation.CutoffHours == 0 {
		c.Cancellation.CutoffHours = 24
	}
	if c.Reconciliation.SweepInterval == 0 {
		c.Reconciliation.SweepInterval = time.Minute
	}
	if c.Reconciliation.BatchSize == 0 {
		c.Reconciliation.BatchSize = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "booking-service"
	}
}
