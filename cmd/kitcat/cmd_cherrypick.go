package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kitcat/pkg/repo"
)

func newCherryPickCmd() *cobra.Command {
	var continuePick bool
	var abortPick bool

	cmd := &cobra.Command{
		Use:   "cherry-pick [hash]",
		Short: "Reapply a commit's changes onto the current branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			switch {
			case abortPick:
				return r.CherryPickAbort()
			case continuePick:
				report, err := r.CherryPickContinue()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "cherry-pick completed: %s\n", report.CommitHash)
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("cherry-pick: a commit hash is required")
			}
			h, err := r.Store.Resolve(args[0])
			if err != nil {
				return err
			}

			report, err := r.CherryPick(h)
			if err != nil {
				if report != nil && len(report.Conflicts) > 0 {
					for _, path := range report.Conflicts {
						fmt.Fprintf(out, "CONFLICT: %s\n", path)
					}
					fmt.Fprintln(out, "fix conflicts and run kitcat cherry-pick --continue, or --abort")
					return err
				}
				return err
			}
			fmt.Fprintf(out, "cherry-pick completed: %s\n", report.CommitHash)
			return nil
		},
	}

	cmd.Flags().BoolVar(&continuePick, "continue", false, "complete a cherry-pick after resolving conflicts")
	cmd.Flags().BoolVar(&abortPick, "abort", false, "abort an in-progress cherry-pick")
	return cmd
}
