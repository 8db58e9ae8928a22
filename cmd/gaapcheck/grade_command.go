package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/grading"
)

func newGradeCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "grade UNRESOLVED",
		Short:       "Print the compliance grade for a count of unresolved violations",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("unresolved count must be a non-negative integer, got %q", args[0])
			}
			grade := grading.FromUnresolved(n)
			if asJSON {
				return writeJSON(cmd, map[string]any{"unresolved": n, "grade": grade})
			}
			fmt.Fprintln(cmd.OutOrStdout(), grade)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
