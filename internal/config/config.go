package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DatabaseTypePostgres = "pgsql"
	DatabaseTypeSqlite   = "sqlite"

	DispatcherRiver = "river"
	DispatcherLocal = "local"
	DispatcherNone  = "none"
)

var (
	singleConfig *Config
	once         sync.Once
	loadErr      error
)

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"spinnaker"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"SPINNAKER_ADDRESS" default:":5000"`
	MetricsAddress  string `envconfig:"SPINNAKER_METRICS_ADDRESS" default:":8080"`
	LogLevel        string `envconfig:"SPINNAKER_LOG_LEVEL" default:"info"`
	LogFormat       string `envconfig:"SPINNAKER_LOG_FORMAT" default:"console"`
	MigrationFolder string `envconfig:"SPINNAKER_MIGRATIONS_FOLDER" default:""`
	Storage         storageConfig
	Dispatcher      dispatcherConfig
	Kafka           kafkaConfig
}

// storageConfig points at the Redwood storage control-plane used to validate receipts.
type storageConfig struct {
	URL       string        `envconfig:"SPINNAKER_STORAGE_URL" default:""`
	AccessKey string        `envconfig:"SPINNAKER_STORAGE_KEY" default:""`
	Timeout   time.Duration `envconfig:"SPINNAKER_STORAGE_TIMEOUT" default:"30s"`
}

type dispatcherConfig struct {
	Type      string `envconfig:"SPINNAKER_DISPATCHER" default:"local"`
	Workers   int    `envconfig:"SPINNAKER_DISPATCHER_WORKERS" default:"4"`
	QueueSize int    `envconfig:"SPINNAKER_DISPATCHER_QUEUE_SIZE" default:"100"`
}

type kafkaConfig struct {
	Brokers  []string `envconfig:"SPINNAKER_KAFKA_BROKERS" default:""`
	Topic    string   `envconfig:"SPINNAKER_KAFKA_TOPIC" default:"spinnaker.events"`
	ClientID string   `envconfig:"SPINNAKER_KAFKA_CLIENT_ID" default:"spinnaker"`
}

// New reads the configuration from the environment. The environment is read only once
// per process.
func New() (*Config, error) {
	once.Do(func() {
		cfg := new(Config)
		if err := envconfig.Process("", cfg); err != nil {
			loadErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			loadErr = err
			return
		}
		singleConfig = cfg
	})
	return singleConfig, loadErr
}

// NewDefault returns a configuration suitable for local runs and tests: a sqlite
// database and the in-process dispatcher.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: DatabaseTypeSqlite,
			Name: "spinnaker.db",
		},
		Service: &svcConfig{
			Address:        ":5000",
			MetricsAddress: ":8080",
			LogLevel:       "info",
			LogFormat:      "console",
			Storage: storageConfig{
				Timeout: 30 * time.Second,
			},
			Dispatcher: dispatcherConfig{
				Type:      DispatcherLocal,
				Workers:   4,
				QueueSize: 100,
			},
			Kafka: kafkaConfig{
				Topic:    "spinnaker.events",
				ClientID: "spinnaker",
			},
		},
	}
}

func (c *Config) Validate() error {
	switch c.Database.Type {
	case DatabaseTypePostgres, DatabaseTypeSqlite:
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}

	switch c.Service.Dispatcher.Type {
	case DispatcherRiver:
		if c.Database.Type != DatabaseTypePostgres {
			return fmt.Errorf("dispatcher %q requires a %q database", DispatcherRiver, DatabaseTypePostgres)
		}
	case DispatcherLocal:
		if c.Service.Dispatcher.Workers <= 0 {
			return fmt.Errorf("dispatcher workers must be positive, got %d", c.Service.Dispatcher.Workers)
		}
	case DispatcherNone:
	default:
		return fmt.Errorf("unsupported dispatcher %q", c.Service.Dispatcher.Type)
	}

	switch c.Service.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Service.LogFormat)
	}

	if c.Service.Storage.Timeout < 0 {
		return fmt.Errorf("storage timeout must not be negative")
	}

	return nil
}

// String hides credentials so the configuration can be logged.
func (c *Config) String() string {
	return fmt.Sprintf("db=%s://%s@%s:%s/%s address=%s storage=%s dispatcher=%s",
		c.Database.Type, c.Database.User, c.Database.Hostname, c.Database.Port, c.Database.Name,
		c.Service.Address, c.Service.Storage.URL, c.Service.Dispatcher.Type)
}
