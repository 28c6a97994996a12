package config

import (
	"fmt"
	"os"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/budget"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// ProviderTokenEnv overrides render.provider.api_token when set
	ProviderTokenEnv = "REPLICATE_API_TOKEN"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
	Render   RenderConfig   `yaml:"render"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
	NoColor      bool   `yaml:"no_color"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration. Concurrency is the number
// of batches run side by side; provider calls stay bounded by
// render.max_concurrency. MaxRetries is how many times the failed views of a
// batch go back on the queue.
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	BatchTimeout    time.Duration `yaml:"batch_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

// RenderConfig holds the render pipeline settings shared by both services
type RenderConfig struct {
	MaxConcurrency     int            `yaml:"max_concurrency"`
	JobTimeout         time.Duration  `yaml:"job_timeout"`
	DefaultJobDuration time.Duration  `yaml:"default_job_duration"`
	Provider           ProviderConfig `yaml:"provider"`
	Cache              CacheConfig    `yaml:"cache"`
	Budget             BudgetConfig   `yaml:"budget"`
	Variants           VariantsConfig `yaml:"variants"`
}

// ProviderConfig holds the image provider client settings
type ProviderConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIToken         string        `yaml:"api_token"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	ExpectedDuration time.Duration `yaml:"expected_duration"`
}

// CacheConfig holds render cache limits and snapshot settings
type CacheConfig struct {
	MaxEntries      int           `yaml:"max_entries"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Persist         bool          `yaml:"persist"`
	SnapshotName    string        `yaml:"snapshot_name"`
}

// BudgetConfig holds the static pricing tables and default limits
type BudgetConfig struct {
	ModelCosts         map[string]float64 `yaml:"model_costs"`
	DefaultModelCost   float64            `yaml:"default_model_cost"`
	QualityMultipliers map[string]float64 `yaml:"quality_multipliers"`
	SecondsPerView     int                `yaml:"seconds_per_view"`
	DisplayCurrency    string             `yaml:"display_currency"`
	DisplayRate        float64            `yaml:"display_rate"`
	Limits             budget.Limits      `yaml:"limits"`
}

// VariantsConfig holds variant expansion defaults
type VariantsConfig struct {
	MaxVariantsPerView int `yaml:"max_variants_per_view"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if token := os.Getenv(ProviderTokenEnv); token != "" {
		config.Render.Provider.APIToken = token
	}

	return &config, nil
}

// Validate checks the sections the API service needs
func (c *Config) Validate() error {
	if err := c.ValidateAPIConfig(); err != nil {
		return err
	}
	return c.ValidateRenderConfig()
}

// ValidateAPIConfig checks server, database and broker settings
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	return c.validateRabbitMQ()
}

// ValidateWorkerConfig checks database, broker, worker and render settings
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.BatchTimeout <= 0 {
		return fmt.Errorf("worker batch_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker max_retries must not be negative")
	}

	return c.ValidateRenderConfig()
}

// ValidateRenderConfig checks the render pipeline settings
func (c *Config) ValidateRenderConfig() error {
	r := c.Render

	if r.MaxConcurrency <= 0 {
		return fmt.Errorf("render max_concurrency must be greater than 0")
	}

	if r.JobTimeout <= 0 {
		return fmt.Errorf("render job_timeout must be greater than 0")
	}

	if r.Provider.BaseURL == "" {
		return fmt.Errorf("render provider base_url is required")
	}

	if r.Cache.MaxEntries < 0 {
		return fmt.Errorf("render cache max_entries must not be negative")
	}

	if r.Cache.TTL < 0 {
		return fmt.Errorf("render cache ttl must not be negative")
	}

	if r.Budget.DisplayRate < 0 {
		return fmt.Errorf("render budget display_rate must not be negative")
	}

	for model, cost := range r.Budget.ModelCosts {
		if cost < 0 {
			return fmt.Errorf("render budget cost for model %s must not be negative", model)
		}
	}

	for quality, m := range r.Budget.QualityMultipliers {
		if m <= 0 {
			return fmt.Errorf("render budget multiplier for quality %s must be greater than 0", quality)
		}
	}

	l := r.Budget.Limits
	if l.MaxCostUSD < 0 || l.MaxViews < 0 || l.MaxDurationSeconds < 0 || l.WarnThresholdUSD < 0 {
		return fmt.Errorf("render budget limits must not be negative")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

// GuardrailConfig converts the pricing section into guardrail settings.
// Unset tables fall back to the built-in defaults inside the guardrail.
func (b BudgetConfig) GuardrailConfig(concurrency int) budget.Config {
	cfg := budget.Config{
		DefaultModelCost: b.DefaultModelCost,
		SecondsPerView:   b.SecondsPerView,
		Concurrency:      concurrency,
		DisplayCurrency:  b.DisplayCurrency,
		DisplayRate:      b.DisplayRate,
		Limits:           b.Limits,
	}

	if len(b.ModelCosts) > 0 {
		cfg.ModelCosts = make(map[domain.Model]float64, len(b.ModelCosts))
		for model, cost := range b.ModelCosts {
			cfg.ModelCosts[domain.Model(model)] = cost
		}
	}

	if len(b.QualityMultipliers) > 0 {
		cfg.QualityMultipliers = make(map[domain.Quality]float64, len(b.QualityMultipliers))
		for quality, m := range b.QualityMultipliers {
			cfg.QualityMultipliers[domain.Quality(quality)] = m
		}
	}

	return cfg
}
