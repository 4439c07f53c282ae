package main

import (
	"github.com/spf13/cobra"

	"kitcat/pkg/diff"
	"kitcat/pkg/repo"
)

func newDiffCmd() *cobra.Command {
	var cached bool
	var stat bool

	cmd := &cobra.Command{
		Use:   "diff [--cached] [C1 [C2]]",
		Short: "Show changes between working tree, index, and commits",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c1, c2 string
			if len(args) > 0 {
				c1 = args[0]
			}
			if len(args) > 1 {
				c2 = args[1]
			}

			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}
			pairs, err := r.Diff(cached, c1, c2)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if stat {
				stats := make([]diff.Stat, 0, len(pairs))
				for _, p := range pairs {
					stats = append(stats, diff.ComputeStat(p))
				}
				diff.WriteStatSummary(out, stats)
				return nil
			}

			for _, p := range pairs {
				if err := diff.WriteUnified(out, p); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "compare the index against HEAD instead of the working tree")
	cmd.Flags().BoolVar(&stat, "stat", false, "show a diffstat summary instead of full hunks")
	return cmd
}
