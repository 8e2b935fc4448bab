package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultTimezone       = "America/Sao_Paulo"
	DefaultGatewayURL     = "http://localhost:4000/api/zabbix-graph"
	DefaultGraphMaxOutput = 5 * 1024 * 1024
)

type Config struct {
	ServiceName string
	HTTPPort    int
	MetricsPort int
	LogLevel    string
	LogDir      string
	Location    *time.Location

	// alert dispatcher
	GatewayURL      string
	DispatchTimeout time.Duration

	// gateway
	SessionDir     string
	SessionStore   string
	UploadDir      string
	GraphDir       string
	GraphCommand   string
	GraphTimeout   time.Duration
	GraphMaxOutput int64

	DatabaseURL   string
	KafkaBrokers  []string
	DeliveryTopic string
	OTLPEndpoint  string

	// zabbix chart renderer
	ZabbixURL      string
	ZabbixUser     string
	ZabbixPassword string
	GraphPeriod    string
	GraphWidth     int
}

// LoadConfig reads the environment, after merging a .env file from the
// working directory when one exists. Variables already set in the process
// environment win over the file.
func LoadConfig(service string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{ServiceName: service}

	httpPort, err := getEnvInt("API_PORT", 4000)
	if err != nil {
		return nil, err
	}
	cfg.HTTPPort = httpPort

	if cfg.MetricsPort, err = getEnvInt("METRICS_PORT", 0); err != nil {
		return nil, err
	}

	tz := getEnv("TIMEZONE", DefaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid value for TIMEZONE: %w", err)
	}
	cfg.Location = loc

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogDir = os.Getenv("LOG_DIR")

	cfg.GatewayURL = getEnv("GATEWAY_URL", DefaultGatewayURL)
	if cfg.DispatchTimeout, err = getEnvDuration("DISPATCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	cfg.SessionDir = getEnv("SESSION_DIR", "session")
	cfg.SessionStore = strings.ToLower(getEnv("SESSION_STORE", "sqlite"))
	cfg.UploadDir = getEnv("UPLOAD_DIR", "uploads")
	cfg.GraphDir = getEnv("GRAPH_DIR", "zabbix_graphs")
	cfg.GraphCommand = getEnv("GRAPH_COMMAND", "zabbix-graph")
	if cfg.GraphTimeout, err = getEnvDuration("GRAPH_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	maxOutput, err := getEnvInt("GRAPH_MAX_OUTPUT", DefaultGraphMaxOutput)
	if err != nil {
		return nil, err
	}
	cfg.GraphMaxOutput = int64(maxOutput)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.OTLPEndpoint = os.Getenv("OTLP_ENDPOINT")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.DeliveryTopic = getEnv("DELIVERY_TOPIC", "whatsapp.deliveries")

	cfg.ZabbixURL = strings.TrimRight(os.Getenv("ZABBIX_URL"), "/")
	cfg.ZabbixUser = os.Getenv("ZABBIX_USER")
	cfg.ZabbixPassword = os.Getenv("ZABBIX_PASSWORD")
	cfg.GraphPeriod = getEnv("GRAPH_PERIOD", "now-1h")
	if cfg.GraphWidth, err = getEnvInt("GRAPH_WIDTH", 900); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SessionStore {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("SESSION_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("invalid value for SESSION_STORE: %q", c.SessionStore)
	}
	if c.GraphMaxOutput <= 0 {
		return errors.New("GRAPH_MAX_OUTPUT must be positive")
	}
	return nil
}

// ExecutableDir returns the directory holding the running binary, or "."
// when it cannot be determined.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}
