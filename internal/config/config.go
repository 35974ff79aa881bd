package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/caretide/caretide/internal/engine"
)

// Config holds all configuration for CareTide
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Security SecurityConfig `mapstructure:"security"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	RateLimit    int    `mapstructure:"rate_limit"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
}

// EngineConfig holds the timeline engine tuning knobs
type EngineConfig struct {
	GraceMinutes       int `mapstructure:"grace_minutes"`
	MorningStartHour   int `mapstructure:"morning_start_hour"`
	AfternoonStartHour int `mapstructure:"afternoon_start_hour"`
	EveningStartHour   int `mapstructure:"evening_start_hour"`
	NightStartHour     int `mapstructure:"night_start_hour"`
	TomorrowPreview    int `mapstructure:"tomorrow_preview"`
	DebounceSeconds    int `mapstructure:"debounce_seconds"`
	TrendMinRun        int `mapstructure:"trend_min_run"`
	AdherenceLookback  int `mapstructure:"adherence_lookback_days"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret     string   `mapstructure:"jwt_secret"`
	AdminPassword string   `mapstructure:"admin_password"`
	AllowOrigins  []string `mapstructure:"allow_origins"`
}

// JobsConfig holds scheduled job settings
type JobsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	RedFlagScanCron string `mapstructure:"red_flag_scan_cron"`
	CacheSweepCron  string `mapstructure:"cache_sweep_cron"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "caretide.db"))
	v.Set("storage.badger_path", filepath.Join(dataDir, "badger"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "caretide.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (CARETIDE_SERVER_PORT, CARETIDE_ENGINE_GRACE_MINUTES, etc.)
	v.SetEnvPrefix("CARETIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.rate_limit", 20)

	// Engine defaults
	v.SetDefault("engine.grace_minutes", 30)
	v.SetDefault("engine.morning_start_hour", 5)
	v.SetDefault("engine.afternoon_start_hour", 12)
	v.SetDefault("engine.evening_start_hour", 17)
	v.SetDefault("engine.night_start_hour", 21)
	v.SetDefault("engine.tomorrow_preview", 3)
	v.SetDefault("engine.debounce_seconds", 2)
	v.SetDefault("engine.trend_min_run", 3)
	v.SetDefault("engine.adherence_lookback_days", 7)

	// Jobs defaults
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.red_flag_scan_cron", "0 7 * * *")
	v.SetDefault("jobs.cache_sweep_cron", "30 3 * * *")

	// Security defaults
	v.SetDefault("security.allow_origins", []string{"*"})
}

func getDefaultDataDir() string {
	// Try XDG_DATA_HOME first
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "caretide")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "caretide")
}

// loadEnvOverrides loads specific env vars for settings callers most often
// override without a config file
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	cfg.Server.Address = getEnv("CARETIDE_SERVER_ADDRESS", cfg.Server.Address)
	if port := os.Getenv("CARETIDE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.Storage.DataDir = getEnv("CARETIDE_STORAGE_DATA_DIR", cfg.Storage.DataDir)

	if secret := resolveEnvWithAliases("CARETIDE_SECURITY_JWT_SECRET"); secret != "" {
		cfg.Security.JWTSecret = secret
	}
	if pw := resolveEnvWithAliases("CARETIDE_SECURITY_ADMIN_PASSWORD"); pw != "" {
		cfg.Security.AdminPassword = pw
	}
}

func validate(cfg *Config) error {
	e := cfg.Engine
	if e.GraceMinutes < 0 {
		return fmt.Errorf("engine.grace_minutes must not be negative")
	}
	if e.TomorrowPreview < 0 {
		return fmt.Errorf("engine.tomorrow_preview must not be negative")
	}
	if e.TrendMinRun < 2 {
		return fmt.Errorf("engine.trend_min_run must be at least 2")
	}
	if e.AdherenceLookback < 1 {
		return fmt.Errorf("engine.adherence_lookback_days must be at least 1")
	}
	ordered := e.MorningStartHour < e.AfternoonStartHour &&
		e.AfternoonStartHour < e.EveningStartHour &&
		e.EveningStartHour < e.NightStartHour
	if !ordered || e.MorningStartHour < 0 || e.NightStartHour > 23 {
		return fmt.Errorf("engine window start hours must be ordered within 0-23")
	}

	// Generate JWT secret if not provided
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = generateRandomString(32)
	}

	return nil
}

func generateRandomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b)
}

// EngineConfig converts the tuning knobs into the engine's runtime config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		GracePeriod: time.Duration(c.Engine.GraceMinutes) * time.Minute,
		Windows:     engine.WindowBounds{
			MorningStart:   c.Engine.MorningStartHour,
			AfternoonStart: c.Engine.AfternoonStartHour,
			EveningStart:   c.Engine.EveningStartHour,
			NightStart:     c.Engine.NightStartHour,
		},
		TomorrowPreviewLimit: c.Engine.TomorrowPreview,
		DebounceWindow:       time.Duration(c.Engine.DebounceSeconds) * time.Second,
		TrendMinRun:          c.Engine.TrendMinRun,
	}
}
