package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Company struct {
		ID string `mapstructure:"id"`
	} `mapstructure:"company"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	Automation AutomationConfig `mapstructure:"automation"`
	NATS       struct {
		Enabled             bool   `mapstructure:"enabled"`
		URL                 string `mapstructure:"url"`
		Stream              string `mapstructure:"stream"`
		NotificationSubject string `mapstructure:"notificationSubject"` // Base subject, company ID is appended
	} `mapstructure:"nats"`
	WorkerPools struct {
		Publisher PublisherWorkerPoolConfig `mapstructure:"publisher"`
	} `mapstructure:"workerPools"`
}

// AutomationConfig holds scheduling and staleness defaults for the automation engine
type AutomationConfig struct {
	Cron             string        `mapstructure:"cron"`             // Cron expression for the daily run
	StaleLeadDays    int           `mapstructure:"staleLeadDays"`    // Fallback when the stale_lead_days setting is absent
	StaleProjectDays int           `mapstructure:"staleProjectDays"` // Fallback when the stale_project_days setting is absent
	RunTimeout       time.Duration `mapstructure:"runTimeout"`       // Upper bound for one daily run
	RunOnStart       bool          `mapstructure:"runOnStart"`       // Fire one run right after startup
}

// PublisherWorkerPoolConfig holds configuration for the notification event publisher pool
type PublisherWorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`
	QueueSize  int           `mapstructure:"queueSize"`
	ExpiryTime time.Duration `mapstructure:"expiryTime"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("company.id", "default")

	v.SetDefault("automation.cron", "0 6 * * *")
	v.SetDefault("automation.staleLeadDays", 7)
	v.SetDefault("automation.staleProjectDays", 14)
	v.SetDefault("automation.runTimeout", 30*time.Minute)
	v.SetDefault("automation.runOnStart", false)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.stream", "crm_notifications")
	v.SetDefault("nats.notificationSubject", "v1.notifications.created")

	v.SetDefault("workerPools.publisher.poolSize", 4)
	v.SetDefault("workerPools.publisher.queueSize", 1000)
	v.SetDefault("workerPools.publisher.expiryTime", time.Minute)

	v.SetConfigName("default")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.daisi-crm-automation")
	v.AddConfigPath("/etc/daisi-crm-automation")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, env vars and defaults still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v, Config{})

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if company := os.Getenv("COMPANY_ID"); company != "" {
		v.Set("company.id", company)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Automation.StaleLeadDays <= 0 {
		return fmt.Errorf("automation.staleLeadDays must be positive, got %d", c.Automation.StaleLeadDays)
	}
	if c.Automation.StaleProjectDays <= 0 {
		return fmt.Errorf("automation.staleProjectDays must be positive, got %d", c.Automation.StaleProjectDays)
	}
	if c.Automation.Cron == "" {
		return fmt.Errorf("automation.cron is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled is true")
	}
	return nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(append([]string{}, parts...), tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
