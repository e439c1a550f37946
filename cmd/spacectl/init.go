package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/spacectl/internal/config"
	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/operator"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (a *app) initCmd() *cobra.Command {
	var symbol, faction string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the namespace and root Manager for a new game account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var err error
			if strings.TrimSpace(symbol) == "" {
				if symbol, err = prompt(in, out, "Agent symbol: "); err != nil {
					return err
				}
			}
			if strings.TrimSpace(faction) == "" {
				fmt.Fprintf(out, "Factions: %s\n", joinFactions())
				if faction, err = prompt(in, out, "Starting faction: "); err != nil {
					return err
				}
			}
			parsed, err := crds.ParseFaction(faction)
			if err != nil {
				return err
			}

			if a.cfg.Store == config.StoreMemory {
				log.Warn().Msg("memory store selected; the manager will not outlive this process")
			}
			s, err := a.deps.openStore(a.cfg)
			if err != nil {
				return err
			}
			manager, created, err := operator.InitManager(contextOf(cmd), s, symbol, parsed)
			if err != nil {
				return err
			}
			verb := "created"
			if !created {
				verb = "already exists"
			}
			fmt.Fprintf(out, "manager %s/%s %s\n", manager.Metadata.Namespace, manager.Metadata.Name, verb)
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "agent symbol to register")
	cmd.Flags().StringVar(&faction, "faction", "", "starting faction")
	return cmd
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line != "" {
		return line, nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return "", fmt.Errorf("%s is required", strings.TrimSuffix(label, ": "))
}

func joinFactions() string {
	names := make([]string, 0, len(crds.Factions()))
	for _, f := range crds.Factions() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
