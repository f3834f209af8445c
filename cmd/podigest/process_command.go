package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"podigest/internal/config"
	"podigest/internal/lifecycle"
	"podigest/internal/pipeline"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var count int
	var warmUp bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Claim and process eligible episodes now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			return ctx.withPipeline(func(_ *config.Config, p *pipeline.Pipeline) error {
				if warmUp {
					p.WarmUp(cmd.Context())
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				failed := 0
				for range count {
					outcome, err := p.ProcessOne(cmd.Context())
					if errors.Is(err, lifecycle.ErrNoEligible) {
						fmt.Fprintln(out, "No eligible episodes")
						break
					}
					if err != nil {
						return err
					}
					writeLines(out, outcomeLines(outcome, colorize))
					if !outcome.Published() {
						failed++
					}
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d episode(s) failed", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of episodes to process")
	cmd.Flags().BoolVar(&warmUp, "warm-up", false, "Probe relays before processing")
	return cmd
}
