package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kitcat/pkg/repo"
)

func newCheckoutCmd() *cobra.Command {
	var createBranch bool
	var force bool
	var file string
	var ours bool
	var theirs bool

	cmd := &cobra.Command{
		Use:   "checkout TARGET",
		Short: "Switch branches or restore a conflicted file from one side",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}

			if file != "" {
				side := ""
				switch {
				case ours:
					side = "ours"
				case theirs:
					side = "theirs"
				}
				return r.CheckoutFile(file, side)
			}

			if len(args) != 1 {
				return fmt.Errorf("checkout: TARGET is required")
			}
			target := args[0]

			if createBranch {
				head, err := r.Refs.Resolve("HEAD")
				if err != nil {
					return fmt.Errorf("cannot resolve HEAD: %w", err)
				}
				if err := r.CreateBranch(target, head); err != nil {
					return err
				}
			}

			if err := r.Checkout(target, force); err != nil {
				return err
			}

			if createBranch {
				fmt.Fprintf(cmd.OutOrStdout(), "switched to new branch '%s'\n", target)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "switched to '%s'\n", target)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&createBranch, "branch", "b", false, "create and switch to a new branch")
	cmd.Flags().BoolVar(&force, "force", false, "discard local changes")
	cmd.Flags().StringVar(&file, "file", "", "restore a single conflicted file instead of switching branches")
	cmd.Flags().BoolVar(&ours, "ours", false, "with --file, take the current branch's side")
	cmd.Flags().BoolVar(&theirs, "theirs", false, "with --file, take the merged-in branch's side")

	return cmd
}
