package main

import (
	"github.com/danmuck/spacectl/internal/crds"
	"github.com/spf13/cobra"
)

func crdgenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crdgen",
		Short: "Print the Manager, Agent and Ship CRDs as YAML",
		Args:  cobra.NoArgs,
		// CRD generation needs neither config nor logging.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return crds.WriteCRDs(cmd.OutOrStdout())
		},
	}
}
