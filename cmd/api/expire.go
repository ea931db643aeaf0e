package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func expireCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "expire-ai-requests",
		Short: "Mark stale pending or processing AI requests as timed out",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, gdb, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if !cmd.Flags().Changed("older-than") {
				olderThan = cfg.AIRequestTimeout
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}

			tr, err := newTracker(cmd.Context(), cfg, gdb, log)
			if err != nil {
				return err
			}
			n, err := tr.ExpireStale(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			log.Info("expire-ai-requests finished", zap.Int("expired", n), zap.Duration("older_than", olderThan))
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d requests\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age after which an unfinished request times out (default AI_REQUEST_TIMEOUT)")
	return cmd
}
