package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var asJSON bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display the gaapcheck log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logging.LogFilePath(cfg)
			if path == "" {
				return errors.New("paths.log_dir is not configured")
			}

			runCtx := cmd.Context()
			out := cmd.OutOrStdout()
			opts := logs.TailOptions{Offset: -1, Limit: lines, Filter: filter}
			if lines <= 0 {
				opts = logs.TailOptions{Offset: 0, Filter: filter}
			}
			enc := json.NewEncoder(out)
			printed := false
			for {
				result, err := logs.Tail(runCtx, path, opts)
				if err != nil {
					if follow && errors.Is(err, context.Canceled) {
						return nil
					}
					return fmt.Errorf("tail logs: %w", err)
				}
				for _, entry := range result.Entries {
					if asJSON {
						if err := enc.Encode(entry); err != nil {
							return err
						}
					} else {
						fmt.Fprintln(out, entry.Format())
					}
					printed = true
				}
				if !follow {
					if !printed && !asJSON {
						fmt.Fprintln(out, "No log entries available")
					}
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: time.Second, Filter: filter}
				select {
				case <-runCtx.Done():
					return nil
				default:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output entries as JSON lines")
	cmd.Flags().StringVar(&filter.DocumentID, "document", "", "Only entries for this document (file name)")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only entries for this audit run id")
	cmd.Flags().StringVar(&filter.CorrelationID, "request", "", "Only entries for this API request id")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only entries from this component")
	cmd.Flags().StringVar(&filter.Level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Only entries containing this text")
	return cmd
}
