package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"surfscale-engine/internal/campaign"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr      string `mapstructure:"addr"`
		LogLevel  string `mapstructure:"log_level"`
		LogFormat string `mapstructure:"log_format"` // console | json
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Listener struct {
		Enabled          bool   `mapstructure:"enabled"`
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Storage struct {
		Driver          string `mapstructure:"driver"` // memory | postgres
		Cache           string `mapstructure:"cache"`  // memory | redis
		CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
	} `mapstructure:"storage"`

	Meta struct {
		BaseURL         string `mapstructure:"base_url"`
		MinSpacingMs    int    `mapstructure:"min_spacing_ms"`
		TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
		MaxAttempts     int    `mapstructure:"max_attempts"`
		BaseDelayMs     int    `mapstructure:"base_delay_ms"`
		RetryAfterDefMs int    `mapstructure:"retry_after_default_ms"`
	} `mapstructure:"meta"`

	TripleWhale struct {
		BaseURL         string `mapstructure:"base_url"`
		MinSpacingMs    int    `mapstructure:"min_spacing_ms"`
		TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
		MaxAttempts     int    `mapstructure:"max_attempts"`
		BaseDelayMs     int    `mapstructure:"base_delay_ms"`
		RetryAfterDefMs int    `mapstructure:"retry_after_default_ms"`
	} `mapstructure:"triple_whale"`

	Surf struct {
		RulesFile    string             `mapstructure:"rules_file"`
		ApplyBudgets bool               `mapstructure:"apply_budgets"`
		Period       string             `mapstructure:"period"`
		Accounts     []campaign.Account `mapstructure:"accounts"`
		Schedule     struct {
			Enabled     bool   `mapstructure:"enabled"`
			Interval    string `mapstructure:"interval"` // 1H | 3H | 6H | CUSTOM
			CustomHours []int  `mapstructure:"custom_hours"`
			Timezone    string `mapstructure:"timezone"`
		} `mapstructure:"schedule"`
	} `mapstructure:"surf"`
}

// Load reads configs/application.yaml (optional) and APP_ env overrides.
func Load() Config {
	cfg, err := LoadFrom("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadFrom reads the given file, or configs/application.yaml when path is empty.
func LoadFrom(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("unable to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("application")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		_ = v.ReadInConfig() // optional; env can fully configure
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	validate(&cfg)
	return cfg, nil
}

// AutomaticEnv only applies to keys viper already knows about.
func bindEnv(v *viper.Viper) {
	for _, k := range []string{
		"server.addr", "server.log_level", "server.log_format",
		"postgres.host", "postgres.port", "postgres.user", "postgres.password", "postgres.db_name", "postgres.ssl_mode",
		"listener.enabled", "listener.channel",
		"redis.addr", "redis.password", "redis.db",
		"storage.driver", "storage.cache",
		"meta.base_url", "meta.max_attempts", "triple_whale.base_url", "triple_whale.max_attempts",
		"surf.rules_file", "surf.apply_budgets", "surf.period",
		"surf.schedule.enabled", "surf.schedule.interval", "surf.schedule.timezone",
	} {
		_ = v.BindEnv(k)
	}
}

func validate(c *Config) {
	if c.Server.Addr == "" { c.Server.Addr = ":8080" }
	if c.Postgres.Port == 0 { c.Postgres.Port = 5432 }
	if c.Postgres.SSLMode == "" { c.Postgres.SSLMode = "disable" }
	if c.Postgres.MaxOpenConns == 0 { c.Postgres.MaxOpenConns = 10 }
	if c.Postgres.MaxIdleConns == 0 { c.Postgres.MaxIdleConns = 10 }
	if c.Listener.Channel == "" { c.Listener.Channel = "surf_rules_changed" }
	if c.Listener.ReconnectSeconds <= 0 { c.Listener.ReconnectSeconds = 5 }
	if c.Redis.Addr == "" { c.Redis.Addr = "localhost:6379" }
	if c.Redis.PoolSize <= 0 { c.Redis.PoolSize = 10 }
	if c.Storage.Driver == "" { c.Storage.Driver = "memory" }
	if c.Storage.Cache == "" { c.Storage.Cache = "memory" }
	if c.Storage.CacheTTLSeconds <= 0 { c.Storage.CacheTTLSeconds = 300 }
	if c.Meta.BaseURL == "" { c.Meta.BaseURL = "https://graph.facebook.com" }
	if c.TripleWhale.BaseURL == "" { c.TripleWhale.BaseURL = "https://api.triplewhale.com/api/v1" }
	for _, s := range []*int{&c.Meta.MinSpacingMs, &c.TripleWhale.MinSpacingMs} {
		if *s <= 0 { *s = 100 }
	}
	for _, s := range []*int{&c.Meta.TimeoutSeconds, &c.TripleWhale.TimeoutSeconds} {
		if *s <= 0 { *s = 30 }
	}
	for _, s := range []*int{&c.Meta.MaxAttempts, &c.TripleWhale.MaxAttempts} {
		if *s <= 0 { *s = 3 }
	}
	for _, s := range []*int{&c.Meta.BaseDelayMs, &c.TripleWhale.BaseDelayMs} {
		if *s <= 0 { *s = 1000 }
	}
	for _, s := range []*int{&c.Meta.RetryAfterDefMs, &c.TripleWhale.RetryAfterDefMs} {
		if *s <= 0 { *s = 60000 }
	}
	if c.Surf.Period == "" { c.Surf.Period = "today" }
	if c.Surf.Schedule.Interval == "" { c.Surf.Schedule.Interval = "1H" }
	if c.Surf.Schedule.Timezone == "" { c.Surf.Schedule.Timezone = "Local" }
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }

func (c Config) CacheTTL() time.Duration { return time.Duration(c.Storage.CacheTTLSeconds) * time.Second }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// HTTPSettings is the per-source client tuning shared by both adapters.
type HTTPSettings struct {
	BaseURL    string
	Spacing    time.Duration
	Timeout    time.Duration
	Attempts   int
	BaseDelay  time.Duration
	RetryAfter time.Duration
}

func (c Config) MetaHTTP() HTTPSettings {
	m := c.Meta
	return HTTPSettings{m.BaseURL, ms(m.MinSpacingMs), time.Duration(m.TimeoutSeconds) * time.Second,
		m.MaxAttempts, ms(m.BaseDelayMs), ms(m.RetryAfterDefMs)}
}

func (c Config) TripleWhaleHTTP() HTTPSettings {
	t := c.TripleWhale
	return HTTPSettings{t.BaseURL, ms(t.MinSpacingMs), time.Duration(t.TimeoutSeconds) * time.Second,
		t.MaxAttempts, ms(t.BaseDelayMs), ms(t.RetryAfterDefMs)}
}
