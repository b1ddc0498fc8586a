package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	Modem  ModemConfig
	Phone  PhoneConfig
	Engine EngineConfig
	Redis  RedisConfig
}

type ServerConfig struct {
	Address string
}

type AuthConfig struct {
	HtpasswdFile string
}

type ModemConfig struct {
	URL string
}

type PhoneConfig struct {
	CountryPrefix  string
	ServiceNumbers []string
	BalanceNumber  string
	BalanceMarker  string
	RechargeNumber string
}

type EngineConfig struct {
	ContentMax         int
	DefaultReplyWindow time.Duration
	MaxReplyWindow     time.Duration
	QueueWait          time.Duration
	PollInterval       time.Duration
	SweepInterval      time.Duration
	Retention          time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":18180"),
		},
		Auth: AuthConfig{
			HtpasswdFile: mustEnv("HTPASSWD_FILE"),
		},
		Modem: ModemConfig{
			URL: mustEnv("MODEM_URL"),
		},
		Phone: PhoneConfig{
			CountryPrefix:  getEnv("COUNTRY_PREFIX", "+52"),
			ServiceNumbers: splitList(getEnv("SERVICE_NUMBERS", "2222,7373,333")),
			BalanceNumber:  getEnv("BALANCE_NUMBER", "333"),
			BalanceMarker:  getEnv("BALANCE_MARKER", "saldo"),
			RechargeNumber: getEnv("RECHARGE_NUMBER", "7373"),
		},
		Engine: EngineConfig{
			ContentMax:         getEnvInt("CONTENT_MAX", 160),
			DefaultReplyWindow: time.Duration(getEnvInt("REPLY_TIMEOUT_SECONDS", 60)) * time.Second,
			MaxReplyWindow:     time.Duration(getEnvInt("REPLY_TIMEOUT_MAX_SECONDS", 600)) * time.Second,
			QueueWait:          time.Duration(getEnvInt("QUEUE_WAIT_SECONDS", 1)) * time.Second,
			PollInterval:       time.Duration(getEnvInt("REPLY_POLL_SECONDS", 5)) * time.Second,
			SweepInterval:      time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 5)) * time.Second,
			Retention:          time.Duration(getEnvInt("RETENTION_SECONDS", 86400)) * time.Second,
		},
		Redis: loadRedisConfig(),
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func validate(cfg *Config) {
	if cfg.Engine.ContentMax <= 0 {
		panic("CONTENT_MAX must be > 0")
	}
	if cfg.Engine.DefaultReplyWindow <= 0 {
		panic("REPLY_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.Engine.MaxReplyWindow < cfg.Engine.DefaultReplyWindow {
		panic("REPLY_TIMEOUT_MAX_SECONDS must be >= REPLY_TIMEOUT_SECONDS")
	}
	if cfg.Engine.QueueWait <= 0 {
		panic("QUEUE_WAIT_SECONDS must be > 0")
	}
	if cfg.Engine.PollInterval <= 0 {
		panic("REPLY_POLL_SECONDS must be > 0")
	}
	if cfg.Engine.SweepInterval <= 0 {
		panic("SWEEP_INTERVAL_SECONDS must be > 0")
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}
