package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/skathuria/modelgw/pkg/ai"
)

// Config holds all the configuration for the gateway.
// The mapstructure tags tell Viper which YAML field maps to which Go field.
type Config struct {
	Server     ServerConfig          `mapstructure:"server"`
	Redis      RedisConfig           `mapstructure:"redis"`
	RateLimit  RateLimitConfig       `mapstructure:"ratelimit"`
	Breaker    BreakerConfig         `mapstructure:"breaker"`
	Retry      RetryConfig           `mapstructure:"retry"`
	Budget     BudgetConfig          `mapstructure:"budget"`
	Cache      CacheConfig           `mapstructure:"cache"`
	Moderation ModerationConfig      `mapstructure:"moderation"`
	Logging    LoggingConfig         `mapstructure:"logging"`
	Backends   []BackendConfig       `mapstructure:"backends"`
	Chains     map[string][]string   `mapstructure:"chains"`
	Pricing    map[string]ai.Pricing `mapstructure:"pricing"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"requests_per_second"`
	Burst   int     `mapstructure:"burst"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
}

type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

type BudgetConfig struct {
	DailyLimitUSD   float64 `mapstructure:"daily_limit_usd"`
	MonthlyLimitUSD float64 `mapstructure:"monthly_limit_usd"`
	WarnPercent     float64 `mapstructure:"warning_threshold_percent"`
}

type CacheConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

type ModerationConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

type LoggingConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
}

// BackendConfig declares one backend the gateway may route to. Real
// adapters are injected by the embedding platform; kind "mock" builds the
// in-memory simulator for local runs.
type BackendConfig struct {
	ID      string  `mapstructure:"id"`
	Kind    string  `mapstructure:"kind"`
	Payload string  `mapstructure:"payload"`
	CostUSD float64 `mapstructure:"cost_usd"`
}

// Validate rejects obviously invalid configuration at load time rather than
// at call time.
func (c *Config) Validate() error {
	if c.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("config: breaker.failure_threshold must be positive")
	}
	if c.Breaker.ResetTimeout <= 0 {
		return fmt.Errorf("config: breaker.reset_timeout must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.max_retries must not be negative")
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay <= 0 {
		return fmt.Errorf("config: retry delays must be positive")
	}
	if c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("config: retry.base_delay %v exceeds max_delay %v", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}
	if c.Budget.DailyLimitUSD <= 0 || c.Budget.MonthlyLimitUSD <= 0 {
		return fmt.Errorf("config: budget limits must be positive")
	}
	if c.Budget.WarnPercent < 0 || c.Budget.WarnPercent > 100 {
		return fmt.Errorf("config: budget.warning_threshold_percent %.1f outside 0-100", c.Budget.WarnPercent)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache.ttl must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("config: cache.max_entries must be positive")
	}
	if c.Moderation.Enabled && (c.Moderation.ConfidenceThreshold < 0 || c.Moderation.ConfidenceThreshold > 1) {
		return fmt.Errorf("config: moderation.confidence_threshold %.2f outside 0-1", c.Moderation.ConfidenceThreshold)
	}

	ids := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.ID == "" {
			return fmt.Errorf("config: backends[%d]: id is required", i)
		}
		if ids[b.ID] {
			return fmt.Errorf("config: duplicate backend id %q", b.ID)
		}
		ids[b.ID] = true
	}
	for intent, chain := range c.Chains {
		if len(chain) == 0 {
			return fmt.Errorf("config: chain %q is empty", intent)
		}
		for _, id := range chain {
			if !ids[id] {
				return fmt.Errorf("config: chain %q references unknown backend %q", intent, id)
			}
		}
	}
	return nil
}

// Store wraps configuration with thread-safe access and hot-reload updates.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil
	}
	cpy := *s.cfg
	return &cpy
}

// NewStatic wraps a fixed config without file watching. Embedding platforms
// and tests use it to inject configuration directly.
func NewStatic(cfg *Config) *Store {
	s := &Store{}
	s.set(cfg)
	return s
}

func (s *Store) set(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// LoadAndWatch loads the config and watches for on-disk changes. A reload
// that fails validation is rejected and the previous config stays active.
func LoadAndWatch() (*Store, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.AddConfigPath("./configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	store := &Store{}
	if err := refresh(v, store); err != nil {
		return nil, err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := refresh(v, store); err != nil {
			log.Printf("[CONFIG] reload rejected: %v", err)
		} else {
			log.Printf("[CONFIG] reloaded from %s", e.Name)
		}
	})

	return store, nil
}

// Load loads once and does not watch.
func Load() (*Config, error) {
	store, err := LoadAndWatch()
	if err != nil {
		return nil, err
	}
	return store.Get(), nil
}

func refresh(v *viper.Viper, store *Store) error {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	store.set(&cfg)
	return nil
}
