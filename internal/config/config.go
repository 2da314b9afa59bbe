package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"go-freshflow/pkg/database"
)

// Config is the full runtime configuration surface.
type Config struct {
	App       AppConfig
	Database  database.Config
	Auth      AuthConfig
	Pool      PoolConfig
	Scheduler SchedulerConfig
	Report    ReportConfig
	MongoDB   MongoDBConfig
	Forecast  ForecastConfig
	Seed      SeedConfig
}

type AppConfig struct {
	Name              string
	Port              string
	LogLevel          string
	MigrationsEnabled bool
	MetricsEnabled    bool
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	IdleExpiry time.Duration
}

// PoolConfig holds the redistribution thresholds. Both are optional; a zero
// value disables the matching sweep. No default is assumed for either.
type PoolConfig struct {
	NearExpiryDays int
	OverstockQty   int
}

type SchedulerConfig struct {
	PoolSweepCron string
	ReportCron    string
	Timezone      string
}

type ReportConfig struct {
	Dir         string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

type MongoDBConfig struct {
	URI    string
	DBName string
}

type ForecastConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Load reads an optional .env file, then the optional YAML file named by
// CONFIG_FILE, with process environment taking precedence over both.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		// missing .env is fine when configuration comes from the environment
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:              v.GetString("APP_NAME"),
			Port:              v.GetString("PORT"),
			LogLevel:          v.GetString("LOG_LEVEL"),
			MigrationsEnabled: v.GetBool("MIGRATIONS_ENABLED"),
			MetricsEnabled:    v.GetBool("METRICS_ENABLED"),
		},
		Database: database.Config{
			DSN:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			TimeZone:        v.GetString("DB_TIMEZONE"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("JWT_SECRET"),
			TokenTTL:   v.GetDuration("JWT_TTL"),
			IdleExpiry: v.GetDuration("SESSION_IDLE_EXPIRY"),
		},
		Pool: PoolConfig{
			NearExpiryDays: v.GetInt("POOL_NEAR_EXPIRY_DAYS"),
			OverstockQty:   v.GetInt("POOL_OVERSTOCK_QTY"),
		},
		Scheduler: SchedulerConfig{
			PoolSweepCron: v.GetString("POOL_SWEEP_CRON"),
			ReportCron:    v.GetString("REPORT_CRON"),
			Timezone:      v.GetString("TIMEZONE"),
		},
		Report: ReportConfig{
			Dir:         v.GetString("REPORT_DIR"),
			S3Bucket:    v.GetString("REPORT_S3_BUCKET"),
			S3Region:    v.GetString("REPORT_S3_REGION"),
			S3Endpoint:  v.GetString("REPORT_S3_ENDPOINT"),
			S3PathStyle: v.GetBool("REPORT_S3_PATH_STYLE"),
		},
		MongoDB: MongoDBConfig{
			URI:    v.GetString("MONGODB_URI"),
			DBName: v.GetString("MONGODB_DB_NAME"),
		},
		Forecast: ForecastConfig{
			BaseURL: v.GetString("FORECAST_API_URL"),
			Timeout: v.GetDuration("FORECAST_TIMEOUT"),
		},
		Seed: SeedConfig{
			AdminEmail:    v.GetString("ADMIN_EMAIL"),
			AdminPassword: v.GetString("ADMIN_PASSWORD"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "freshflow")
	v.SetDefault("PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MIGRATIONS_ENABLED", true)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("SESSION_IDLE_EXPIRY", "5m")
	v.SetDefault("POOL_SWEEP_CRON", "0 * * * *")
	v.SetDefault("REPORT_CRON", "0 20 * * *")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("MONGODB_DB_NAME", "freshflow")
	v.SetDefault("FORECAST_TIMEOUT", "15s")
	v.SetDefault("ADMIN_EMAIL", "admin@example.com")
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.App.Port == "" {
		return errors.New("PORT must be provided")
	}
	if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return errors.New("DATABASE_URL or DB_HOST and DB_NAME must be provided")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.Pool.NearExpiryDays < 0 {
		return errors.New("POOL_NEAR_EXPIRY_DAYS cannot be negative")
	}
	if c.Pool.OverstockQty < 0 {
		return errors.New("POOL_OVERSTOCK_QTY cannot be negative")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	if c.Report.S3Bucket != "" && c.Report.Dir != "" {
		return errors.New("set only one of REPORT_S3_BUCKET and REPORT_DIR")
	}
	return nil
}
