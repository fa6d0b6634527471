package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Cores    CoresConfig    `mapstructure:"cores"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	AllowedOrigins  string        `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PlannerConfig holds the min-stock forecasting policy.
type PlannerConfig struct {
	LookbackDays        int `mapstructure:"lookback_days"`
	OrderCycleDays      int `mapstructure:"order_cycle_days"`
	DefaultLeadTimeDays int `mapstructure:"default_lead_time_days"`
}

type ScoringConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type CoresConfig struct {
	OverdueDays int `mapstructure:"overdue_days"`
}

// Load reads .env (if present), then config.yaml from ./configs or the working
// directory, then environment variables. DATABASE_URL maps to database.url,
// PLANNER_ORDER_CYCLE_DAYS to planner.order_cycle_days, and so on.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// AutomaticEnv only resolves keys viper already knows about; bind the
	// two legacy names the deployment scripts still export.
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate_on_start", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", "")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("planner.lookback_days", 90)
	v.SetDefault("planner.order_cycle_days", 7)
	v.SetDefault("planner.default_lead_time_days", 3)

	v.SetDefault("scoring.concurrency", 4)

	v.SetDefault("cores.overdue_days", 30)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if c.Planner.LookbackDays <= 0 {
		return fmt.Errorf("planner.lookback_days must be positive, got %d", c.Planner.LookbackDays)
	}
	if c.Planner.OrderCycleDays < 0 || c.Planner.DefaultLeadTimeDays < 0 {
		return fmt.Errorf("planner cycle and lead time days cannot be negative")
	}
	if c.Scoring.Concurrency <= 0 {
		c.Scoring.Concurrency = 1
	}
	if c.Cores.OverdueDays < 0 {
		return fmt.Errorf("cores.overdue_days cannot be negative, got %d", c.Cores.OverdueDays)
	}
	return nil
}
