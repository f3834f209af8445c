package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podigest/internal/config"
	"podigest/internal/pipeline"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var label string
	var proxyAttempts int
	var appRetries int

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download one audio URL through the relay pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(cfg *config.Config, p *pipeline.Pipeline) error {
				if proxyAttempts <= 0 {
					proxyAttempts = cfg.Download.MaxProxyAttempts
				}
				if appRetries <= 0 {
					appRetries = cfg.Download.MaxAppRetries
				}
				name := strings.TrimSpace(label)
				if name == "" {
					name = "manual"
				}
				path, err := p.Downloader.Download(cmd.Context(), strings.TrimSpace(args[0]), name, proxyAttempts, appRetries)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "File name label for the download")
	cmd.Flags().IntVar(&proxyAttempts, "proxy-attempts", 0, "Relays to try per cycle (defaults to config)")
	cmd.Flags().IntVar(&appRetries, "cycles", 0, "Retry cycles (defaults to config)")
	return cmd
}
