package main

import (
	"fmt"

	"github.com/danmuck/spacectl/internal/config"
	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	var write string
	var force bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, or write a default template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if write != "" {
				if err := config.WriteTemplate(write, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote config template to %s\n", write)
				return nil
			}
			return config.Encode(cmd.OutOrStdout(), a.cfg)
		},
	}
	cmd.Flags().StringVar(&write, "write", "", "write the default template to this path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file with --write")
	return cmd
}
