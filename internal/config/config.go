package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NatsURL           string
	JWTSecret         string
	EventChannelBase  string
	SweepInterval     time.Duration
	ScheduleInterval  time.Duration
	OccupancyCacheTTL time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PRESENCE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Campus Presence API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "presence")
	v.SetDefault("sweep.interval", "15m")
	v.SetDefault("schedule.interval", "1m")
	v.SetDefault("occupancy.cache_ttl", "30s")

	sweepInterval, err := parseDurationSetting(v, "sweep.interval", 15*time.Minute)
	if err != nil {
		return Config{}, err
	}

	scheduleInterval, err := parseDurationSetting(v, "schedule.interval", time.Minute)
	if err != nil {
		return Config{}, err
	}

	cacheTTL, err := parseDurationSetting(v, "occupancy.cache_ttl", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NatsURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		EventChannelBase:  v.GetString("events.channel"),
		SweepInterval:     sweepInterval,
		ScheduleInterval:  scheduleInterval,
		OccupancyCacheTTL: cacheTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

func parseDurationSetting(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return fallback, nil
	}

	return parsed, nil
}
