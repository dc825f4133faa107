// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/aristath/qrepeater/internal/scheduler"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the database (defaults to "./data", always absolute)
	LogLevel       string
	Port           int
	DevMode        bool
	RequestTimeout time.Duration // Upper bound on synchronous simulation and sweep requests

	Simulation SimulationConfig
	Sweep      SweepConfig
	Archive    ArchiveConfig
}

// SimulationConfig bounds and sizes simulation runs
type SimulationConfig struct {
	Workers       int    // Monte Carlo worker goroutines; 0 on load resolves to the logical CPU count
	DefaultTrials int    // Used when a request leaves trials unset
	MaxTrials     int    // Requests above this are rejected
	Seed          uint64 // Fixed seed for every run; 0 picks a fresh seed per run
}

// SweepConfig configures scheduled sweeps
type SweepConfig struct {
	Schedule string        // cron spec; empty disables scheduled sweeps
	PlanFile string        // YAML plan run on Schedule
	Timeout  time.Duration // Per scheduled run; 0 means no limit
	// MaintenanceSchedule runs the database checkpoint and integrity job
	MaintenanceSchedule string
}

// ArchiveConfig locates the S3-compatible bucket sweeps are exported to
type ArchiveConfig struct {
	Endpoint  string
	Bucket    string // Empty disables archiving
	Region    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether a bucket is configured
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QREPEATER_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Port:           getEnvAsInt("GO_PORT", 8001),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		RequestTimeout: getEnvAsDuration("HTTP_REQUEST_TIMEOUT", 5*time.Minute),
		Simulation: SimulationConfig{
			Workers:       getEnvAsInt("SIM_WORKERS", 0),
			DefaultTrials: getEnvAsInt("SIM_DEFAULT_TRIALS", 100000),
			MaxTrials:     getEnvAsInt("SIM_MAX_TRIALS", 10000000),
			Seed:          getEnvAsUint64("SIM_SEED", 0),
		},
		Sweep: SweepConfig{
			Schedule:            getEnv("SWEEP_SCHEDULE", ""),
			PlanFile:            getEnv("SWEEP_PLAN_FILE", ""),
			Timeout:             getEnvAsDuration("SWEEP_TIMEOUT", time.Hour),
			MaintenanceSchedule: getEnv("DB_MAINTENANCE_SCHEDULE", "@daily"),
		},
		Archive: ArchiveConfig{
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			Region:    getEnv("ARCHIVE_REGION", "auto"),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
		},
	}

	if cfg.Simulation.Workers == 0 {
		cfg.Simulation.Workers = logicalCPUs()
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("GO_PORT must be within 1..65535, got %d", c.Port))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.Simulation.Workers < 0 {
		errs = append(errs, fmt.Errorf("SIM_WORKERS must not be negative, got %d", c.Simulation.Workers))
	}
	if c.Simulation.DefaultTrials <= 0 {
		errs = append(errs, fmt.Errorf("SIM_DEFAULT_TRIALS must be positive, got %d", c.Simulation.DefaultTrials))
	}
	if c.Simulation.MaxTrials <= 0 {
		errs = append(errs, fmt.Errorf("SIM_MAX_TRIALS must be positive, got %d", c.Simulation.MaxTrials))
	}
	if c.Simulation.DefaultTrials > c.Simulation.MaxTrials {
		errs = append(errs, fmt.Errorf("SIM_DEFAULT_TRIALS (%d) exceeds SIM_MAX_TRIALS (%d)",
			c.Simulation.DefaultTrials, c.Simulation.MaxTrials))
	}

	if c.Sweep.Schedule != "" {
		if err := scheduler.ValidateSchedule(c.Sweep.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("SWEEP_SCHEDULE: %w", err))
		}
		if c.Sweep.PlanFile == "" {
			errs = append(errs, errors.New("SWEEP_PLAN_FILE is required when SWEEP_SCHEDULE is set"))
		}
	}
	if c.Sweep.Timeout < 0 {
		errs = append(errs, fmt.Errorf("SWEEP_TIMEOUT must not be negative, got %s", c.Sweep.Timeout))
	}
	if c.Sweep.MaintenanceSchedule != "" {
		if err := scheduler.ValidateSchedule(c.Sweep.MaintenanceSchedule); err != nil {
			errs = append(errs, fmt.Errorf("DB_MAINTENANCE_SCHEDULE: %w", err))
		}
	}

	if (c.Archive.AccessKey == "") != (c.Archive.SecretKey == "") {
		errs = append(errs, errors.New("ARCHIVE_ACCESS_KEY and ARCHIVE_SECRET_KEY must be set together"))
	}

	return errors.Join(errs...)
}

// DatabasePath returns the path of the simulations database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "simulations.db")
}

// logicalCPUs falls back to 1 when the count cannot be read
func logicalCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
