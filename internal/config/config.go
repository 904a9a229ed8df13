package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig
	Graph    GraphConfig
	Registry RegistryConfig
	Analysis AnalysisConfig
	Logging  LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// GraphConfig describes connectivity to the endorsement store (Neo4j/Neptune).
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// RegistryConfig controls the local score registry.
type RegistryConfig struct {
	Path       string
	OwnerToken string
}

// AnalysisConfig carries the tunable constants of the scoring pipeline.
type AnalysisConfig struct {
	UnitDivisorExp     int // stake smallest-unit divisor as a power of ten
	MaxRingLength      int // longest cycle considered a ring
	CycleBudget        int // total elementary cycles before enumeration aborts
	ReportInsularity   float64
	ScoringInsularity  float64
	BurstWindow        time.Duration
	TinyStakeThreshold float64
	MinVouchesReceived int // batch filter: minimum received endorsements to score
	HighRiskThreshold  float64
	Workers            int
	Schedule           string // cron expression; empty disables scheduled re-analysis
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	defaultHost              = "0.0.0.0"
	defaultPort              = 8080
	defaultReadTimeout       = 10 * time.Second
	defaultWriteTimeout      = 15 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultLoggingLevel      = "info"
	defaultLoggingFormat     = "text"
	defaultGraphMaxSessions  = 10
	defaultRegistryPath      = "./data/registry.db"
	defaultUnitDivisorExp    = 18
	defaultMaxRingLength     = 5
	defaultCycleBudget       = 10000
	defaultReportInsularity  = 0.8
	defaultScoringInsularity = 0.7
	defaultBurstWindow       = 7 * 24 * time.Hour
	defaultTinyStake         = 0.01
	defaultMinVouches        = 5
	defaultHighRisk          = 30.0
	defaultWorkers           = 4
)

// Load reads configuration from environment variables, applying defaults.
// A .env file in the working directory is merged in first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Registry: RegistryConfig{
			Path:       valueOrDefault("REGISTRY_PATH", defaultRegistryPath),
			OwnerToken: os.Getenv("REGISTRY_OWNER_TOKEN"),
		},
		Analysis: AnalysisConfig{
			UnitDivisorExp:     parseIntWithDefault("ANALYSIS_UNIT_DIVISOR_EXP", defaultUnitDivisorExp),
			MaxRingLength:      parseIntWithDefault("ANALYSIS_MAX_RING_LENGTH", defaultMaxRingLength),
			CycleBudget:        parseIntWithDefault("ANALYSIS_CYCLE_BUDGET", defaultCycleBudget),
			ReportInsularity:   parseFloatWithDefault("ANALYSIS_REPORT_INSULARITY", defaultReportInsularity),
			ScoringInsularity:  parseFloatWithDefault("ANALYSIS_SCORING_INSULARITY", defaultScoringInsularity),
			BurstWindow:        parseDurationWithDefault("ANALYSIS_BURST_WINDOW", defaultBurstWindow),
			TinyStakeThreshold: parseFloatWithDefault("ANALYSIS_TINY_STAKE", defaultTinyStake),
			MinVouchesReceived: parseIntWithDefault("ANALYSIS_MIN_VOUCHES", defaultMinVouches),
			HighRiskThreshold:  parseFloatWithDefault("ANALYSIS_HIGH_RISK_THRESHOLD", defaultHighRisk),
			Workers:            parseIntWithDefault("ANALYSIS_WORKERS", defaultWorkers),
			Schedule:           os.Getenv("ANALYSIS_SCHEDULE"),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	for _, tc := range []struct {
		key    string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout},
	} {
		if v := os.Getenv(tc.key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", tc.key, err)
			}
			*tc.target = d
		}
	}

	cfg.HTTP.AllowedOriginsCSV = os.Getenv("SERVER_ALLOWED_ORIGINS")

	if cfg.Analysis.MaxRingLength < 3 {
		return Config{}, fmt.Errorf("ANALYSIS_MAX_RING_LENGTH must be at least 3, got %d", cfg.Analysis.MaxRingLength)
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseFloatWithDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			return val
		}
	}
	return fallback
}

func parseDurationWithDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if val, err := time.ParseDuration(v); err == nil {
			return val
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
