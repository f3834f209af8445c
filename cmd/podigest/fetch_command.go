package main

import (
	"github.com/spf13/cobra"

	"podigest/internal/config"
	"podigest/internal/pipeline"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Poll every feed in the catalog once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(_ *config.Config, p *pipeline.Pipeline) error {
				report, err := p.Fetch(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				writeLines(out, reportLines(report, shouldColorize(out)))
				return nil
			})
		},
	}
}
