package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"gosva/internal/errors"

	"github.com/joho/godotenv"
)

// Config represents the complete engine configuration
type Config struct {
	Surrogate   SurrogateConfig
	Permutation PermutationConfig
	Asymptotic  AsymptoticConfig
	Batch       BatchConfig
	Runtime     RuntimeConfig
}

// SurrogateConfig holds the iteratively reweighted estimator settings
type SurrogateConfig struct {
	MaxIterations int
	Tolerance     float64
	CountMethod   string
}

// PermutationConfig holds the randomization count settings
type PermutationConfig struct {
	Permutations      int
	SignificanceLevel float64
}

// AsymptoticConfig holds the random-matrix threshold settings
type AsymptoticConfig struct {
	EdgeMargin float64
}

// BatchConfig holds the empirical Bayes iteration settings
type BatchConfig struct {
	Tolerance     float64
	MaxIterations int
}

// RuntimeConfig holds process-level settings
type RuntimeConfig struct {
	Workers  int
	Seed     int64
	LogLevel string
}

// Count method names accepted by SVA_COUNT_METHOD
const (
	CountMethodPermutation = "permutation"
	CountMethodAsymptotic  = "asymptotic"
)

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Surrogate: SurrogateConfig{
			MaxIterations: 10,
			Tolerance:     1e-4,
			CountMethod:   CountMethodPermutation,
		},
		Permutation: PermutationConfig{
			Permutations:      50,
			SignificanceLevel: 0.10,
		},
		Asymptotic: AsymptoticConfig{
			EdgeMargin: 1.0,
		},
		Batch: BatchConfig{
			Tolerance:     1e-4,
			MaxIterations: 1000,
		},
		Runtime: RuntimeConfig{
			Workers:  runtime.GOMAXPROCS(0),
			Seed:     42,
			LogLevel: "INFO",
		},
	}
}

// Load reads an optional .env file, then environment variables, and validates the result
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to read .env file")
	}
	return FromEnv()
}

// LoadFile is Load with an explicit env file path
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to read env file %s", path)
	}
	return FromEnv()
}

// FromEnv overlays environment variables on the defaults
func FromEnv() (*Config, error) {
	config := Default()

	config.Surrogate.MaxIterations = getEnvIntOrDefault("SVA_MAX_ITERATIONS", config.Surrogate.MaxIterations)
	config.Surrogate.Tolerance = getEnvFloatOrDefault("SVA_TOLERANCE", config.Surrogate.Tolerance)
	config.Surrogate.CountMethod = strings.ToLower(getEnvOrDefault("SVA_COUNT_METHOD", config.Surrogate.CountMethod))

	config.Permutation.Permutations = getEnvIntOrDefault("PERMUTATIONS", config.Permutation.Permutations)
	config.Permutation.SignificanceLevel = getEnvFloatOrDefault("PERMUTATION_SIGNIFICANCE", config.Permutation.SignificanceLevel)

	config.Asymptotic.EdgeMargin = getEnvFloatOrDefault("ASYMPTOTIC_EDGE_MARGIN", config.Asymptotic.EdgeMargin)

	config.Batch.Tolerance = getEnvFloatOrDefault("COMBAT_TOLERANCE", config.Batch.Tolerance)
	config.Batch.MaxIterations = getEnvIntOrDefault("COMBAT_MAX_ITERATIONS", config.Batch.MaxIterations)

	config.Runtime.Workers = getEnvIntOrDefault("WORKERS", config.Runtime.Workers)
	config.Runtime.Seed = getEnvInt64OrDefault("SEED", config.Runtime.Seed)
	config.Runtime.LogLevel = getEnvOrDefault("LOG_LEVEL", config.Runtime.LogLevel)

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Validate checks ranges of every numeric setting
func Validate(config *Config) error {
	if config.Surrogate.MaxIterations < 1 {
		return errors.ConfigInvalid("SVA_MAX_ITERATIONS must be at least 1")
	}
	if config.Surrogate.Tolerance <= 0 {
		return errors.ConfigInvalid("SVA_TOLERANCE must be positive")
	}
	switch config.Surrogate.CountMethod {
	case CountMethodPermutation, CountMethodAsymptotic:
	default:
		return errors.ConfigInvalid("SVA_COUNT_METHOD must be permutation or asymptotic, got " + config.Surrogate.CountMethod)
	}
	if config.Permutation.Permutations < 1 {
		return errors.ConfigInvalid("PERMUTATIONS must be at least 1")
	}
	if config.Permutation.SignificanceLevel <= 0 || config.Permutation.SignificanceLevel >= 1 {
		return errors.ConfigInvalid("PERMUTATION_SIGNIFICANCE must be in (0, 1)")
	}
	if config.Asymptotic.EdgeMargin <= 0 {
		return errors.ConfigInvalid("ASYMPTOTIC_EDGE_MARGIN must be positive")
	}
	if config.Batch.Tolerance <= 0 {
		return errors.ConfigInvalid("COMBAT_TOLERANCE must be positive")
	}
	if config.Batch.MaxIterations < 1 {
		return errors.ConfigInvalid("COMBAT_MAX_ITERATIONS must be at least 1")
	}
	if config.Runtime.Workers < 1 {
		return errors.ConfigInvalid("WORKERS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
