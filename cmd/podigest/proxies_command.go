package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podigest/internal/config"
	"podigest/internal/pipeline"
)

func newProxiesCommand(ctx *commandContext) *cobra.Command {
	proxiesCmd := &cobra.Command{
		Use:   "proxies",
		Short: "Inspect the relay pool",
	}
	proxiesCmd.AddCommand(newProxiesCheckCommand(ctx))
	return proxiesCmd
}

func newProxiesCheckCommand(ctx *commandContext) *cobra.Command {
	var maxToTest int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe relays from the proxy list and report their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(cfg *config.Config, p *pipeline.Pipeline) error {
				out := cmd.OutOrStdout()
				if p.Pool == nil {
					fmt.Fprintf(out, "Proxy pool unavailable (enabled: %s, list: %s)\n", yesNo(cfg.Proxy.Enabled), cfg.Paths.ProxyFile)
					return nil
				}
				limit := maxToTest
				if limit <= 0 {
					limit = cfg.Proxy.MaxToTest
				}
				result := p.Pool.WarmUp(cmd.Context(), limit)
				fmt.Fprintln(out, renderTable(proxyHeaders, proxyRows(p.Pool.Records()), nil, nil))
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine("Tested", statusInfo, fmt.Sprint(result.Tested), colorize))
				workingKind := statusOK
				if len(p.Pool.Working()) == 0 {
					workingKind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Working", workingKind, fmt.Sprint(result.Working), colorize))
				fmt.Fprintln(out, renderStatusLine("Failed", countKind(result.Failed, statusWarn), fmt.Sprint(result.Failed), colorize))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxToTest, "max", 0, "Maximum relays to probe (defaults to proxy.max_to_test)")
	return cmd
}
