// Package config loads spacectl runtime settings.
//
// Precedence (lowest first): built-in defaults, TOML file keys that are
// present, SPACECTL_* environment variables. Validation runs last.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/danmuck/spacectl/internal/crds"
)

const (
	StoreMemory = "memory"
	StoreKube   = "kube"

	EnvPrefix = "SPACECTL_"
)

var ErrInvalid = errors.New("config: invalid")

type GameConfig struct {
	BaseURL  string        `env:"BASE_URL"`
	Timeout  time.Duration `env:"TIMEOUT"`
	Rate     float64       `env:"RATE"`
	Burst    int           `env:"BURST"`
	PageSize int           `env:"PAGE_SIZE"`
}

type AdminConfig struct {
	ListenAddr  string   `env:"LISTEN_ADDR"`
	Token       string   `env:"TOKEN"`
	CorsOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
}

// BootstrapConfig seeds a root Manager when the store starts empty.
type BootstrapConfig struct {
	Symbol  string `env:"SYMBOL"`
	Faction string `env:"FACTION"`
}

type Config struct {
	Store        string        `env:"STORE"`
	Kubeconfig   string        `env:"KUBECONFIG"`
	Namespace    string        `env:"NAMESPACE"`
	FieldManager string        `env:"FIELD_MANAGER"`
	RequeueDelay time.Duration `env:"REQUEUE_DELAY"`
	StepDelay    time.Duration `env:"STEP_DELAY"`
	ShipResync   time.Duration `env:"SHIP_RESYNC"`
	Workers      int           `env:"WORKERS"`

	Game      GameConfig      `envPrefix:"GAME_"`
	Admin     AdminConfig     `envPrefix:"ADMIN_"`
	Bootstrap BootstrapConfig `envPrefix:"BOOTSTRAP_"`
}

// Default returns the configuration used when no file or env is given.
func Default() Config {
	return Config{
		Store:        StoreKube,
		FieldManager: "spacectl-operator",
		RequeueDelay: 5 * time.Second,
		StepDelay:    5 * time.Second,
		Workers:      1,
		Game: GameConfig{
			BaseURL:  "https://api.spacetraders.io/v2",
			Timeout:  30 * time.Second,
			Rate:     2,
			Burst:    2,
			PageSize: 20,
		},
		Admin: AdminConfig{
			ListenAddr: ":9090",
		},
	}
}

// Load applies the file at path (optional) and the environment to Default
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays SPACECTL_* variables; unset variables leave fields alone.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: %s: unknown key %q", ErrInvalid, path, undecoded[0].String())
	}

	str := func(dst *string, value string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = strings.TrimSpace(value)
		}
	}
	str(&cfg.Store, raw.Store, "store")
	str(&cfg.Kubeconfig, raw.Kubeconfig, "kubeconfig")
	str(&cfg.Namespace, raw.Namespace, "namespace")
	str(&cfg.FieldManager, raw.FieldManager, "field_manager")
	str(&cfg.Game.BaseURL, raw.Game.BaseURL, "game", "base_url")
	str(&cfg.Admin.ListenAddr, raw.Admin.ListenAddr, "admin", "listen_addr")
	str(&cfg.Admin.Token, raw.Admin.Token, "admin", "token")
	str(&cfg.Bootstrap.Symbol, raw.Bootstrap.Symbol, "bootstrap", "symbol")
	str(&cfg.Bootstrap.Faction, raw.Bootstrap.Faction, "bootstrap", "faction")

	durations := []struct {
		dst   *time.Duration
		value string
		key   []string
	}{
		{&cfg.RequeueDelay, raw.RequeueDelay, []string{"requeue_delay"}},
		{&cfg.StepDelay, raw.StepDelay, []string{"step_delay"}},
		{&cfg.ShipResync, raw.ShipResync, []string{"ship_resync"}},
		{&cfg.Game.Timeout, raw.Game.Timeout, []string{"game", "timeout"}},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return fmt.Errorf("%w: %s: %s: %v", ErrInvalid, path, strings.Join(d.key, "."), err)
		}
		*d.dst = parsed
	}

	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("game", "rate") {
		cfg.Game.Rate = raw.Game.Rate
	}
	if meta.IsDefined("game", "burst") {
		cfg.Game.Burst = raw.Game.Burst
	}
	if meta.IsDefined("game", "page_size") {
		cfg.Game.PageSize = raw.Game.PageSize
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.Admin.CorsOrigins = raw.Admin.CorsOrigins
	}
	return nil
}

// Validate rejects settings the operator cannot run with.
func Validate(cfg Config) error {
	switch cfg.Store {
	case StoreMemory, StoreKube:
	default:
		return fmt.Errorf("%w: store must be %q or %q, got %q", ErrInvalid, StoreMemory, StoreKube, cfg.Store)
	}
	if strings.TrimSpace(cfg.FieldManager) == "" {
		return fmt.Errorf("%w: field_manager is required", ErrInvalid)
	}
	if cfg.RequeueDelay <= 0 {
		return fmt.Errorf("%w: requeue_delay must be positive", ErrInvalid)
	}
	if cfg.StepDelay < 0 || cfg.ShipResync < 0 {
		return fmt.Errorf("%w: step_delay and ship_resync must not be negative", ErrInvalid)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalid)
	}
	if strings.TrimSpace(cfg.Game.BaseURL) == "" {
		return fmt.Errorf("%w: game.base_url is required", ErrInvalid)
	}
	if cfg.Game.Rate < 0 || cfg.Game.Burst < 0 {
		return fmt.Errorf("%w: game.rate and game.burst must not be negative", ErrInvalid)
	}
	if cfg.Game.PageSize < 1 || cfg.Game.PageSize > 20 {
		return fmt.Errorf("%w: game.page_size must be within 1..20", ErrInvalid)
	}
	if cfg.Bootstrap.Symbol != "" || cfg.Bootstrap.Faction != "" {
		if strings.TrimSpace(cfg.Bootstrap.Symbol) == "" {
			return fmt.Errorf("%w: bootstrap.symbol is required with bootstrap.faction", ErrInvalid)
		}
		if _, err := crds.ParseFaction(cfg.Bootstrap.Faction); err != nil {
			return fmt.Errorf("%w: bootstrap.faction: %v", ErrInvalid, err)
		}
	}
	return nil
}
