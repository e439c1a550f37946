package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/danmuck/spacectl/internal/operator"
	"github.com/spf13/cobra"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the Manager, Agent and Ship controllers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := a.deps.openStore(a.cfg)
			if err != nil {
				return err
			}
			svc, err := a.deps.openGame(a.cfg)
			if err != nil {
				return err
			}
			op, err := operator.NewService(a.cfg, s, svc)
			if err != nil {
				return err
			}
			return op.Run(ctx)
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
