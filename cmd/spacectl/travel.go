package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/observability"
	"github.com/danmuck/spacectl/internal/operator"
	"github.com/danmuck/spacectl/internal/store"
	"github.com/danmuck/spacectl/internal/travel"
	"github.com/spf13/cobra"
)

func (a *app) travelCmd() *cobra.Command {
	var agentName, namespace, ship, destination string
	cmd := &cobra.Command{
		Use:   "travel",
		Short: "Fly one ship to a waypoint and dock it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			name := crds.NameFor(agentName)
			ns := namespace
			if ns == "" {
				ns = operator.NamespacePrefix + name
			}
			s, err := a.deps.openStore(a.cfg)
			if err != nil {
				return err
			}
			agent, err := store.Get[*crds.Agent](ctx, s, crds.Key{Kind: crds.KindAgent, Namespace: ns, Name: name})
			if err != nil {
				return fmt.Errorf("agent %s/%s: %w", ns, name, err)
			}
			if !agent.Spec.HasToken() || *agent.Spec.Token == "" {
				return fmt.Errorf("agent %s/%s is not registered yet", ns, name)
			}
			svc, err := a.deps.openGame(a.cfg)
			if err != nil {
				return err
			}

			m, err := travel.New(ctx, svc.Authenticate(*agent.Spec.Token), destination, ship, travel.WithStepDelay(a.cfg.StepDelay))
			if err != nil {
				return err
			}
			logger := observability.Logger("travel").With().Str("ship", m.Ship()).Str("destination", m.Destination()).Logger()
			logger.Info().Str("state", m.State().Name()).Msg("trip started")

			err = m.Run(ctx, func(from, to travel.State) {
				observability.RecordTravelTransition(from.Name(), to.Name())
				ev := logger.Info().Str("from", from.Name()).Str("to", to.Name())
				if transit, ok := to.(travel.InTransit); ok && !transit.Arrival.IsZero() {
					ev = ev.Time("arrival", transit.Arrival)
				}
				ev.Msg("transition")
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s docked at %s\n", m.Ship(), m.Destination())
			return nil
		},
	}
	cmd.Flags().StringVar(&agentName, "agent", "", "agent symbol or resource name")
	cmd.Flags().StringVar(&namespace, "namespace", "", "agent namespace (default spacetraders-<agent>)")
	cmd.Flags().StringVar(&ship, "ship", "", "ship symbol")
	cmd.Flags().StringVar(&destination, "to", "", "destination waypoint symbol")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("ship")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
