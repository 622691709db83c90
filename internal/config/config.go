package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chatlimit/internal/models"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Limiter configuration
	if algorithm := os.Getenv("CHATLIMIT_ALGORITHM"); algorithm != "" {
		config.Limiter.Algorithm = algorithm
	}

	setDuration("CHATLIMIT_WINDOW_SIZE", &config.Limiter.WindowSize)
	setInt("CHATLIMIT_MAX_REQUESTS", &config.Limiter.MaxRequests)
	setDuration("CHATLIMIT_MIN_INTERVAL", &config.Limiter.MinInterval)

	if r := os.Getenv("CHATLIMIT_RATE"); r != "" {
		if v, err := strconv.ParseFloat(r, 64); err == nil {
			config.Limiter.Rate = v
		}
	}

	setInt("CHATLIMIT_BURST", &config.Limiter.Burst)
	setDuration("CHATLIMIT_SWEEP_INTERVAL", &config.Limiter.SweepInterval)

	// Simulation configuration
	setInt("CHATLIMIT_SIM_USERS", &config.Simulation.Users)
	setInt("CHATLIMIT_SIM_MESSAGES", &config.Simulation.Messages)
	setInt("CHATLIMIT_SIM_ROUNDS", &config.Simulation.Rounds)
	setDuration("CHATLIMIT_SIM_MIN_GAP", &config.Simulation.MinGap)
	setDuration("CHATLIMIT_SIM_MAX_GAP", &config.Simulation.MaxGap)
	setDuration("CHATLIMIT_SIM_PAUSE", &config.Simulation.Pause)

	if seed := os.Getenv("CHATLIMIT_SIM_SEED"); seed != "" {
		if v, err := strconv.ParseUint(seed, 10, 64); err == nil {
			config.Simulation.Seed = v
		}
	}

	// Journal configuration
	if journalType := os.Getenv("CHATLIMIT_JOURNAL_TYPE"); journalType != "" {
		config.Journal.Type = journalType
	}

	if path := os.Getenv("CHATLIMIT_JOURNAL_PATH"); path != "" {
		config.Journal.Path = path
	}

	if dsn := os.Getenv("CHATLIMIT_JOURNAL_DSN"); dsn != "" {
		config.Journal.DSN = dsn
	}

	// Logging configuration
	if level := os.Getenv("CHATLIMIT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("CHATLIMIT_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("CHATLIMIT_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("CHATLIMIT_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("CHATLIMIT_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("CHATLIMIT_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	setInt("CHATLIMIT_METRICS_PORT", &config.Metrics.Port)

	// Tracing configuration
	if name := os.Getenv("CHATLIMIT_SERVICE_NAME"); name != "" {
		config.Observability.ServiceName = name
	}

	if tracing := os.Getenv("CHATLIMIT_TRACING_ENABLED"); tracing != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(tracing) == "true"
	}

	if exporter := os.Getenv("CHATLIMIT_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv("CHATLIMIT_TRACING_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
}

// setInt overwrites dst when the variable holds a valid integer.
func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setDuration overwrites dst when the variable holds a valid duration.
func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	// Persist runs between invocations in the example
	config.Journal.Type = models.JournalTypeSQLite
	config.Journal.DSN = "./data/runs.db"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
