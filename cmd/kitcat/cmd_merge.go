package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"kitcat/pkg/repo"
)

func newMergeCmd() *cobra.Command {
	var continueMerge bool
	var abortMerge bool

	cmd := &cobra.Command{
		Use:   "merge [branch]",
		Short: "Merge a branch into the current branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			switch {
			case abortMerge:
				return r.MergeAbort()
			case continueMerge:
				report, err := r.MergeContinue()
				if err != nil {
					return err
				}
				printMergeReport(out, report)
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("merge: a branch name is required")
			}

			report, err := r.Merge(args[0])
			if err != nil {
				if report != nil && len(report.Conflicts) > 0 {
					for _, path := range report.Conflicts {
						fmt.Fprintf(out, "CONFLICT: %s\n", path)
					}
					fmt.Fprintln(out, "fix conflicts, add the resolved files, and run kitcat merge --continue, or kitcat merge --abort")
					return err
				}
				return err
			}
			printMergeReport(out, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&continueMerge, "continue", false, "complete a merge after resolving conflicts")
	cmd.Flags().BoolVar(&abortMerge, "abort", false, "abort an in-progress merge")
	return cmd
}

func printMergeReport(out io.Writer, report *repo.MergeReport) {
	switch {
	case report.UpToDate:
		fmt.Fprintln(out, "already up to date")
	case report.FastForward:
		fmt.Fprintf(out, "fast-forward to %s\n", report.CommitHash)
	default:
		fmt.Fprintf(out, "merge completed cleanly: %s\n", report.CommitHash)
	}
}
