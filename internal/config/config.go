package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/logging"
)

const (
	DefaultEnvFile = "configs/.env"

	defaultUnderstatUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

// Config stores runtime configuration for the fetcher.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	LogLevel       logging.Level
	LogFormat      string

	FPLBaseURL               string
	FPLTimeout               time.Duration
	FPLMaxRetries            int
	FPLSleep                 time.Duration
	FPLMaxWorkers            int
	FPLCacheTTL              time.Duration
	FPLCircuitEnabled        bool
	FPLCircuitFailureCount   int
	FPLCircuitOpenTimeout    time.Duration
	FPLCircuitHalfOpenMaxReq int
	UnderstatBaseURL         string
	UnderstatUserAgent       string
	UnderstatSleep           time.Duration
	UnderstatTimeout         time.Duration
	UnderstatMaxRetries      int
	ArchiveEnabled           bool
	ArchiveDBURL             string
	DBDisablePreparedBinary  bool
	UptraceEnabled           bool
	UptraceDSN               string
	PyroscopeEnabled         bool
	PyroscopeServerAddress   string
	PyroscopeAppName         string
	PyroscopeAuthToken       string
	PyroscopeUploadRate      time.Duration
}

// LoadEnvFile merges KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	logFormat := strings.ToLower(strings.TrimSpace(getEnv("APP_LOG_FORMAT", logging.FormatConsole)))
	if logFormat != logging.FormatConsole && logFormat != logging.FormatJSON {
		return Config{}, fmt.Errorf("invalid APP_LOG_FORMAT %q: valid values are %s, %s", logFormat, logging.FormatConsole, logging.FormatJSON)
	}

	fplBaseURL := strings.TrimSpace(getEnv("FPL_BASE_URL", "https://fantasy.premierleague.com/api"))
	fplTimeout, err := getEnvAsPositiveDuration("FPL_TIMEOUT", "60s")
	if err != nil {
		return Config{}, err
	}
	fplMaxRetries, err := getEnvAsInt("FPL_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_MAX_RETRIES: %w", err)
	}
	if fplMaxRetries < 0 {
		return Config{}, fmt.Errorf("FPL_MAX_RETRIES must be >= 0")
	}
	fplSleep, err := getEnvAsSeconds("FPL_SLEEP_SEC", 0.35)
	if err != nil {
		return Config{}, err
	}
	fplMaxWorkers, err := getEnvAsInt("FPL_MAX_WORKERS", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_MAX_WORKERS: %w", err)
	}
	if fplMaxWorkers < 1 || fplMaxWorkers > 16 {
		return Config{}, fmt.Errorf("FPL_MAX_WORKERS must be between 1 and 16")
	}
	fplCacheTTL, err := getEnvAsPositiveDuration("FPL_CACHE_TTL", "5m")
	if err != nil {
		return Config{}, err
	}
	fplCircuitEnabled, err := strconv.ParseBool(getEnv("FPL_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_CIRCUIT_ENABLED: %w", err)
	}
	fplCircuitFailureCount, err := getEnvAsInt("FPL_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if fplCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("FPL_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	fplCircuitOpenTimeout, err := getEnvAsPositiveDuration("FPL_CIRCUIT_OPEN_TIMEOUT", "15s")
	if err != nil {
		return Config{}, err
	}
	fplCircuitHalfOpenMaxReq, err := getEnvAsInt("FPL_CIRCUIT_HALF_OPEN_MAX_REQ", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if fplCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("FPL_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	understatSleep, err := getEnvAsSeconds("UNDERSTAT_SLEEP_SEC", 2.5)
	if err != nil {
		return Config{}, err
	}
	understatTimeout, err := getEnvAsPositiveDuration("UNDERSTAT_TIMEOUT", "60s")
	if err != nil {
		return Config{}, err
	}
	understatMaxRetries, err := getEnvAsInt("UNDERSTAT_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse UNDERSTAT_MAX_RETRIES: %w", err)
	}
	if understatMaxRetries < 0 {
		return Config{}, fmt.Errorf("UNDERSTAT_MAX_RETRIES must be >= 0")
	}

	archiveEnabled, err := strconv.ParseBool(getEnv("ARCHIVE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ARCHIVE_ENABLED: %w", err)
	}
	archiveDBURL := strings.TrimSpace(getEnv("ARCHIVE_DB_URL", ""))
	if archiveEnabled && archiveDBURL == "" {
		return Config{}, fmt.Errorf("ARCHIVE_DB_URL is required when ARCHIVE_ENABLED=true")
	}
	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := getEnvAsPositiveDuration("PYROSCOPE_UPLOAD_RATE", "15s")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:                   appEnv,
		ServiceName:              getEnv("APP_SERVICE_NAME", "fpl-data-fetch"),
		ServiceVersion:           getEnv("APP_SERVICE_VERSION", "dev"),
		LogLevel:                 logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
		LogFormat:                logFormat,
		FPLBaseURL:               fplBaseURL,
		FPLTimeout:               fplTimeout,
		FPLMaxRetries:            fplMaxRetries,
		FPLSleep:                 fplSleep,
		FPLMaxWorkers:            fplMaxWorkers,
		FPLCacheTTL:              fplCacheTTL,
		FPLCircuitEnabled:        fplCircuitEnabled,
		FPLCircuitFailureCount:   fplCircuitFailureCount,
		FPLCircuitOpenTimeout:    fplCircuitOpenTimeout,
		FPLCircuitHalfOpenMaxReq: fplCircuitHalfOpenMaxReq,
		UnderstatBaseURL:         strings.TrimSpace(getEnv("UNDERSTAT_BASE_URL", "https://understat.com")),
		UnderstatUserAgent:       strings.TrimSpace(getEnv("UNDERSTAT_USER_AGENT", defaultUnderstatUserAgent)),
		UnderstatSleep:           understatSleep,
		UnderstatTimeout:         understatTimeout,
		UnderstatMaxRetries:      understatMaxRetries,
		ArchiveEnabled:           archiveEnabled,
		ArchiveDBURL:             archiveDBURL,
		DBDisablePreparedBinary:  dbDisablePreparedBinary,
		UptraceEnabled:           uptraceEnabled,
		UptraceDSN:               uptraceDSN,
		PyroscopeEnabled:         pyroscopeEnabled,
		PyroscopeServerAddress:   pyroscopeServerAddress,
		PyroscopeAuthToken:       strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeUploadRate:      pyroscopeUploadRate,
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsPositiveDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

// getEnvAsSeconds reads a float number of seconds. Blank values fall back to
// the default; anything else that is not a float is a configuration error.
func getEnvAsSeconds(key string, fallback float64) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	seconds := fallback
	if raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("environment variable %s must be a float, got %q", key, raw)
		}
		seconds = parsed
	}
	if seconds < 0 {
		return 0, fmt.Errorf("%s must be >= 0", key)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
