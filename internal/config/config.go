package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/icctweb/team-registration/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv                  string
	ServiceName             string
	ServiceVersion          string
	HTTPAddr                string
	DBURL                   string
	DBDisablePreparedBinary bool
	CORSAllowedOrigins      []string
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	ShutdownTimeout         time.Duration

	AdminToken string

	StorageBaseURL             string
	StorageToken               string
	StorageTimeout             time.Duration
	StorageCircuitEnabled      bool
	StorageCircuitFailureCount int
	StorageCircuitOpenTimeout  time.Duration
	StorageCircuitHalfOpenReq  int

	MailerBaseURL     string
	MailerToken       string
	MailerFromAddress string
	MailerFromName    string
	MailerTimeout     time.Duration

	DBRetryAttempts      int
	DBRetryBaseDelay     time.Duration
	UploadRetryAttempts  int
	UploadRetryBaseDelay time.Duration
	EmailRetryAttempts   int
	EmailRetryBaseDelay  time.Duration
	UploadWorkers        int
	IdempotencyTTL       time.Duration

	UptraceEnabled     bool
	UptraceDSN         string
	UptraceLogsEnabled bool

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration

	PprofEnabled bool
	PprofAddr    string

	LogLevel logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	uptraceLogsEnabled, err := strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}
	shutdownTimeout, err := time.ParseDuration(getEnv("APP_SHUTDOWN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_SHUTDOWN_TIMEOUT: %w", err)
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	storageTimeout, err := time.ParseDuration(getEnv("STORAGE_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STORAGE_TIMEOUT: %w", err)
	}
	storageCircuitEnabled, err := strconv.ParseBool(getEnv("STORAGE_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STORAGE_CIRCUIT_ENABLED: %w", err)
	}
	storageCircuitFailureCount, err := getEnvAsInt("STORAGE_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse STORAGE_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if storageCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("STORAGE_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	storageCircuitOpenTimeout, err := time.ParseDuration(getEnv("STORAGE_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STORAGE_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if storageCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("STORAGE_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	storageCircuitHalfOpenReq, err := getEnvAsInt("STORAGE_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse STORAGE_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if storageCircuitHalfOpenReq < 1 {
		return Config{}, fmt.Errorf("STORAGE_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	mailerTimeout, err := time.ParseDuration(getEnv("MAILER_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MAILER_TIMEOUT: %w", err)
	}

	dbRetryAttempts, err := getEnvAsInt("DB_RETRY_ATTEMPTS", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_RETRY_ATTEMPTS: %w", err)
	}
	dbRetryBaseDelay, err := time.ParseDuration(getEnv("DB_RETRY_BASE_DELAY", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_RETRY_BASE_DELAY: %w", err)
	}
	uploadRetryAttempts, err := getEnvAsInt("UPLOAD_RETRY_ATTEMPTS", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse UPLOAD_RETRY_ATTEMPTS: %w", err)
	}
	uploadRetryBaseDelay, err := time.ParseDuration(getEnv("UPLOAD_RETRY_BASE_DELAY", "500ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPLOAD_RETRY_BASE_DELAY: %w", err)
	}
	emailRetryAttempts, err := getEnvAsInt("EMAIL_RETRY_ATTEMPTS", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse EMAIL_RETRY_ATTEMPTS: %w", err)
	}
	emailRetryBaseDelay, err := time.ParseDuration(getEnv("EMAIL_RETRY_BASE_DELAY", "1s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse EMAIL_RETRY_BASE_DELAY: %w", err)
	}
	uploadWorkers, err := getEnvAsInt("UPLOAD_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse UPLOAD_WORKERS: %w", err)
	}
	if uploadWorkers < 1 {
		return Config{}, fmt.Errorf("UPLOAD_WORKERS must be >= 1")
	}
	idempotencyTTL, err := time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "10m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse IDEMPOTENCY_TTL: %w", err)
	}
	if idempotencyTTL <= 0 {
		return Config{}, fmt.Errorf("IDEMPOTENCY_TTL must be > 0")
	}

	cfg := Config{
		AppEnv:                  appEnv,
		ServiceName:             getEnv("SERVICE_NAME", "team-registration-api"),
		ServiceVersion:          getEnv("SERVICE_VERSION", "dev"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DBURL:                   strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary: dbDisablePreparedBinary,
		CORSAllowedOrigins:      splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReadTimeout:             readTimeout,
		WriteTimeout:            writeTimeout,
		ShutdownTimeout:         shutdownTimeout,

		AdminToken: strings.TrimSpace(getEnv("ADMIN_TOKEN", "")),

		StorageBaseURL:             strings.TrimSpace(getEnv("STORAGE_BASE_URL", "")),
		StorageToken:               strings.TrimSpace(getEnv("STORAGE_TOKEN", "")),
		StorageTimeout:             storageTimeout,
		StorageCircuitEnabled:      storageCircuitEnabled,
		StorageCircuitFailureCount: storageCircuitFailureCount,
		StorageCircuitOpenTimeout:  storageCircuitOpenTimeout,
		StorageCircuitHalfOpenReq:  storageCircuitHalfOpenReq,

		MailerBaseURL:     strings.TrimSpace(getEnv("MAILER_BASE_URL", "")),
		MailerToken:       strings.TrimSpace(getEnv("MAILER_TOKEN", "")),
		MailerFromAddress: strings.TrimSpace(getEnv("MAILER_FROM_ADDRESS", "registrations@icctweb.example")),
		MailerFromName:    strings.TrimSpace(getEnv("MAILER_FROM_NAME", "ICCT Registrations")),
		MailerTimeout:     mailerTimeout,

		DBRetryAttempts:      dbRetryAttempts,
		DBRetryBaseDelay:     dbRetryBaseDelay,
		UploadRetryAttempts:  uploadRetryAttempts,
		UploadRetryBaseDelay: uploadRetryBaseDelay,
		EmailRetryAttempts:   emailRetryAttempts,
		EmailRetryBaseDelay:  emailRetryBaseDelay,
		UploadWorkers:        uploadWorkers,
		IdempotencyTTL:       idempotencyTTL,

		UptraceEnabled:     uptraceEnabled,
		UptraceDSN:         uptraceDSN,
		UptraceLogsEnabled: uptraceLogsEnabled,

		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,

		PprofEnabled: pprofEnabled,
		PprofAddr:    pprofAddr,

		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if cfg.AppEnv == EnvProd && cfg.AdminToken == "" {
		return Config{}, fmt.Errorf("ADMIN_TOKEN is required when APP_ENV=prod")
	}

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
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

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
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
