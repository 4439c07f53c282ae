package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kitcat/pkg/repo"
)

func newBranchCmd() *cobra.Command {
	var deleteBranch string
	var forceDelete string

	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}

			if name := deleteBranch; name != "" {
				if err := r.DeleteBranch(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted branch '%s'\n", name)
				return nil
			}
			if name := forceDelete; name != "" {
				if err := r.DeleteBranch(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted branch '%s'\n", name)
				return nil
			}

			if len(args) == 1 {
				head, err := r.Refs.Resolve("HEAD")
				if err != nil {
					return fmt.Errorf("cannot resolve HEAD: %w", err)
				}
				return r.CreateBranch(args[0], head)
			}

			branches, err := r.ListBranches()
			if err != nil {
				return err
			}
			current, _ := r.CurrentBranch()

			out := cmd.OutOrStdout()
			for _, b := range branches {
				if b == current {
					fmt.Fprintf(out, "* %s\n", b)
				} else {
					fmt.Fprintf(out, "  %s\n", b)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")
	cmd.Flags().StringVarP(&forceDelete, "force-delete", "D", "", "force-delete the named branch")

	return cmd
}
