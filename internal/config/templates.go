package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the on-disk TOML layout. Durations are Go duration strings.
type fileConfig struct {
	Store        string `toml:"store"`
	Kubeconfig   string `toml:"kubeconfig,omitempty"`
	Namespace    string `toml:"namespace"`
	FieldManager string `toml:"field_manager"`
	RequeueDelay string `toml:"requeue_delay"`
	StepDelay    string `toml:"step_delay"`
	ShipResync   string `toml:"ship_resync"`
	Workers      int    `toml:"workers"`

	Game struct {
		BaseURL  string  `toml:"base_url"`
		Timeout  string  `toml:"timeout"`
		Rate     float64 `toml:"rate"`
		Burst    int     `toml:"burst"`
		PageSize int     `toml:"page_size"`
	} `toml:"game"`

	Admin struct {
		ListenAddr  string   `toml:"listen_addr"`
		Token       string   `toml:"token"`
		CorsOrigins []string `toml:"cors_origins"`
	} `toml:"admin"`

	Bootstrap struct {
		Symbol  string `toml:"symbol"`
		Faction string `toml:"faction"`
	} `toml:"bootstrap"`
}

func toFile(cfg Config) fileConfig {
	var out fileConfig
	out.Store = cfg.Store
	out.Kubeconfig = cfg.Kubeconfig
	out.Namespace = cfg.Namespace
	out.FieldManager = cfg.FieldManager
	out.RequeueDelay = cfg.RequeueDelay.String()
	out.StepDelay = cfg.StepDelay.String()
	out.ShipResync = cfg.ShipResync.String()
	out.Workers = cfg.Workers
	out.Game.BaseURL = cfg.Game.BaseURL
	out.Game.Timeout = cfg.Game.Timeout.String()
	out.Game.Rate = cfg.Game.Rate
	out.Game.Burst = cfg.Game.Burst
	out.Game.PageSize = cfg.Game.PageSize
	out.Admin.ListenAddr = cfg.Admin.ListenAddr
	out.Admin.Token = cfg.Admin.Token
	out.Admin.CorsOrigins = cfg.Admin.CorsOrigins
	if out.Admin.CorsOrigins == nil {
		out.Admin.CorsOrigins = []string{}
	}
	out.Bootstrap.Symbol = cfg.Bootstrap.Symbol
	out.Bootstrap.Faction = cfg.Bootstrap.Faction
	return out
}

// Encode writes cfg as TOML in the layout Load reads.
func Encode(w io.Writer, cfg Config) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(toFile(cfg)); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteTemplate writes the default configuration to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	var buf bytes.Buffer
	if err := Encode(&buf, Default()); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
