package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configFileEnv = "CONFIG_FILE"

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// Driver is one of sqlite3, pgx or mysql. DSN wins over Path when both are set;
	// Path is only meaningful for sqlite3.
	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	LogSQL          bool

	// RedisAddr empty disables the result cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// MQTTBroker empty disables dataset refresh notifications.
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	// RateLimitRPS <= 0 disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

func (c Config) CacheEnabled() bool { return c.RedisAddr != "" }

func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

// LoadFromEnv reads the configuration from the environment. If CONFIG_FILE names a YAML
// file, its keys (same names as the env vars) provide defaults that the environment overrides.
func LoadFromEnv() (Config, error) {
	src, err := newSource(strings.TrimSpace(os.Getenv(configFileEnv)))
	if err != nil {
		return Config{}, err
	}

	appEnv := src.get("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := src.get("LOG_LEVEL")
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := src.get("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	driver := src.get("DB_DRIVER")
	if driver == "" {
		driver = "sqlite3"
	}
	switch driver {
	case "sqlite3", "pgx", "mysql":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, pgx, mysql)", driver)
	}
	dsn := src.get("DB_DSN")
	if driver != "sqlite3" && dsn == "" {
		return Config{}, fmt.Errorf("DB_DSN is required for DB_DRIVER %q", driver)
	}
	path := src.get("SQLITE_PATH")
	if path == "" {
		path = "Resources/hawaii.sqlite"
	}

	maxOpenConns, err := src.int("DB_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := src.int("DB_MAX_IDLE_CONNS", 2)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := src.duration("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	queryTimeout, err := src.duration("DB_QUERY_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	logSQL, err := src.bool("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}

	redisDB, err := src.int("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := src.duration("CACHE_TTL", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}
	if cacheTTL <= 0 {
		return Config{}, fmt.Errorf("invalid CACHE_TTL %q: must be > 0", src.get("CACHE_TTL"))
	}

	mqttPort, err := src.int("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttClientID := src.get("MQTT_CLIENT_ID")
	if mqttClientID == "" {
		mqttClientID = "surfsup-server"
	}
	mqttTopic := src.get("MQTT_TOPIC")
	if mqttTopic == "" {
		mqttTopic = "surfsup/dataset/refresh"
	}

	rps, err := src.float("RATE_LIMIT_RPS", 0)
	if err != nil {
		return Config{}, err
	}
	burst, err := src.int("RATE_LIMIT_BURST", 20)
	if err != nil {
		return Config{}, err
	}
	if rps > 0 && burst < 1 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_BURST %d: must be >= 1 when rate limiting is on", burst)
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        httpAddr,
		Driver:          driver,
		DSN:             dsn,
		Path:            path,
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		QueryTimeout:    queryTimeout,
		LogSQL:          logSQL,
		RedisAddr:       src.get("REDIS_ADDR"),
		RedisPassword:   src.get("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		CacheTTL:        cacheTTL,
		MQTTBroker:      src.get("MQTT_BROKER"),
		MQTTPort:        mqttPort,
		MQTTClientID:    mqttClientID,
		MQTTTopic:       mqttTopic,
		RateLimitRPS:    rps,
		RateLimitBurst:  burst,
	}, nil
}

// source resolves a key from the environment first, then from the optional YAML file.
type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	if path == "" {
		return source{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("%s %q: %w", configFileEnv, path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return source{}, fmt.Errorf("%s %q: decode yaml: %w", configFileEnv, path, err)
	}
	file := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		file[strings.ToUpper(strings.TrimSpace(k))] = fmt.Sprint(v)
	}
	return source{file: file}, nil
}

func (s source) get(key string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s.file[key])
}

func (s source) int(key string, def int) (int, error) {
	v := s.get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func (s source) float(key string, def float64) (float64, error) {
	v := s.get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func (s source) bool(key string, def bool) (bool, error) {
	v := s.get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func (s source) duration(key string, def time.Duration) (time.Duration, error) {
	v := s.get(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
