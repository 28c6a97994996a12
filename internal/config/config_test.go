package config

import (
	"testing"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ProviderTokenEnv, "")
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "render_db", cfg.Database.Database)
				assert.Equal(t, "render_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "render_batches", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "render-api-service", cfg.App.Name)

				assert.Equal(t, 2, cfg.Render.MaxConcurrency)
				assert.Equal(t, 5*time.Minute, cfg.Render.JobTimeout)
				assert.Equal(t, 168*time.Hour, cfg.Render.Cache.TTL)
				assert.Equal(t, "from-file", cfg.Render.Provider.APIToken)
				assert.InDelta(t, 0.005, cfg.Render.Budget.ModelCosts["flux-1.1-pro"], 1e-9)
				assert.Equal(t, 50, cfg.Render.Budget.Limits.MaxViews)
				assert.Equal(t, 8, cfg.Render.Variants.MaxVariantsPerView)
				assert.Equal(t, 1, cfg.Worker.MaxRetries)
			}
		})
	}
}

func TestLoad_ProviderTokenFromEnv(t *testing.T) {
	t.Setenv(ProviderTokenEnv, "r8_from_env")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "r8_from_env", cfg.Render.Provider.APIToken)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "render_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "render_exchange",
			},
			Queue: QueueConfig{
				Name: "render_batches",
			},
		},
		Worker: WorkerConfig{
			Concurrency:     2,
			BatchTimeout:    time.Hour,
			ShutdownTimeout: 30 * time.Second,
		},
		Render: RenderConfig{
			MaxConcurrency: 2,
			JobTimeout:     5 * time.Minute,
			Provider: ProviderConfig{
				BaseURL: "https://api.replicate.com",
			},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "zero render concurrency",
			mutate:    func(c *Config) { c.Render.MaxConcurrency = 0 },
			wantErr:   true,
			errString: "render max_concurrency must be greater than 0",
		},
		{
			name:      "missing job timeout",
			mutate:    func(c *Config) { c.Render.JobTimeout = 0 },
			wantErr:   true,
			errString: "render job_timeout must be greater than 0",
		},
		{
			name:      "missing provider url",
			mutate:    func(c *Config) { c.Render.Provider.BaseURL = "" },
			wantErr:   true,
			errString: "render provider base_url is required",
		},
		{
			name:      "negative model cost",
			mutate:    func(c *Config) { c.Render.Budget.ModelCosts = map[string]float64{"sdxl": -1} },
			wantErr:   true,
			errString: "render budget cost for model sdxl must not be negative",
		},
		{
			name:      "zero quality multiplier",
			mutate:    func(c *Config) { c.Render.Budget.QualityMultipliers = map[string]float64{"hd": 0} },
			wantErr:   true,
			errString: "render budget multiplier for quality hd must be greater than 0",
		},
		{
			name:      "negative limit",
			mutate:    func(c *Config) { c.Render.Budget.Limits.MaxViews = -1 },
			wantErr:   true,
			errString: "render budget limits must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "missing batch timeout",
			mutate:    func(c *Config) { c.Worker.BatchTimeout = 0 },
			errString: "worker batch_timeout must be greater than 0",
		},
		{
			name:      "missing shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			errString: "worker shutdown_timeout must be greater than 0",
		},
		{
			name:      "negative max retries",
			mutate:    func(c *Config) { c.Worker.MaxRetries = -1 },
			errString: "worker max_retries must not be negative",
		},
		{
			name:      "render section checked too",
			mutate:    func(c *Config) { c.Render.Provider.BaseURL = "" },
			errString: "render provider base_url is required",
		},
	}

	require.NoError(t, validConfig().ValidateWorkerConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.Validate())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestBudgetConfig_GuardrailConfig(t *testing.T) {
	t.Run("tables are converted to typed keys", func(t *testing.T) {
		b := BudgetConfig{
			ModelCosts:         map[string]float64{"sdxl": 0.001},
			QualityMultipliers: map[string]float64{"hd": 2},
			SecondsPerView:     30,
			DisplayCurrency:    "EUR",
			DisplayRate:        0.92,
		}

		cfg := b.GuardrailConfig(4)
		assert.InDelta(t, 0.001, cfg.ModelCosts[domain.ModelSDXL], 1e-9)
		assert.InDelta(t, 2.0, cfg.QualityMultipliers[domain.QualityHD], 1e-9)
		assert.Equal(t, 30, cfg.SecondsPerView)
		assert.Equal(t, 4, cfg.Concurrency)
		assert.Equal(t, "EUR", cfg.DisplayCurrency)
	})

	t.Run("empty tables stay nil", func(t *testing.T) {
		cfg := BudgetConfig{}.GuardrailConfig(2)
		assert.Nil(t, cfg.ModelCosts)
		assert.Nil(t, cfg.QualityMultipliers)
	})
}

func TestPortConstants(t *testing.T) {
	t.Run("port constants are correct", func(t *testing.T) {
		assert.Equal(t, 1, MinPort)
		assert.Equal(t, 65535, MaxPort)
	})

	t.Run("invalid port range", func(t *testing.T) {
		invalidPorts := []int{0, -1, 65536, 70000}
		for _, port := range invalidPorts {
			valid := port >= MinPort && port <= MaxPort
			assert.False(t, valid, "port %d should be invalid", port)
		}
	})
}
