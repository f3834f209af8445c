package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podigest/internal/episodes"
)

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	episodesCmd := &cobra.Command{
		Use:     "episodes",
		Aliases: []string{"ep"},
		Short:   "Inspect and manage stored episodes",
	}
	episodesCmd.AddCommand(newEpisodesListCommand(ctx))
	episodesCmd.AddCommand(newEpisodesStatsCommand(ctx))
	episodesCmd.AddCommand(newEpisodesRetryCommand(ctx))
	return episodesCmd
}

func withStore(ctx *commandContext, fn func(*episodes.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := episodes.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newEpisodesListCommand(ctx *commandContext) *cobra.Command {
	var pending bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored episodes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *episodes.Store) error {
				list, err := store.List(cmd.Context(), episodes.ListOptions{PendingOnly: pending, Limit: limit})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No episodes")
					return nil
				}
				fmt.Fprintln(out, renderTable(episodeHeaders, episodeRows(list), episodeAligns, episodeWidths))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "Only show unpublished episodes")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of episodes to show (0 for all)")
	return cmd
}

func newEpisodesStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the episode store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *episodes.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				writeLines(out, statsLines(stats, shouldColorize(out)))
				return nil
			})
		},
	}
}

func newEpisodesRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Clear failure attempts so episodes become eligible again",
		Long:  "Retry resets the attempt counter of the given unpublished episodes, or of every failing episode when no id is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid episode id %q", arg)
				}
				ids = append(ids, id)
			}
			return withStore(ctx, func(store *episodes.Store) error {
				n, err := store.ResetAttempts(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d episode(s)\n", n)
				return nil
			})
		},
	}
}
