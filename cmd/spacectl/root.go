package main

import (
	"github.com/danmuck/spacectl/internal/config"
	"github.com/danmuck/spacectl/internal/game"
	"github.com/danmuck/spacectl/internal/logging"
	"github.com/danmuck/spacectl/internal/operator"
	"github.com/danmuck/spacectl/internal/store"
	"github.com/spf13/cobra"
)

// deps are the process edges the commands reach through; tests swap them.
type deps struct {
	openStore func(config.Config) (store.Store, error)
	openGame  func(config.Config) (game.Service, error)
}

func defaultDeps() deps {
	return deps{
		openStore: operator.OpenStore,
		openGame: func(cfg config.Config) (game.Service, error) {
			return operator.NewGameClient(cfg)
		},
	}
}

type app struct {
	deps       deps
	configPath string
	cfg        config.Config
}

func newRootCmd(d deps) *cobra.Command {
	a := &app{deps: d}
	root := &cobra.Command{
		Use:           "spacectl",
		Short:         "Declarative operator for a SpaceTraders fleet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			logging.ConfigureRuntime()
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a TOML config file")
	root.AddCommand(
		a.runCmd(),
		a.initCmd(),
		crdgenCmd(),
		a.travelCmd(),
		a.configCmd(),
	)
	return root
}
