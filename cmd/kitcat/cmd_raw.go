package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kitcat/pkg/repo"
)

// newReadIndexCmd dumps the index's entries, bypassing Status's tri-
// comparison — for inspecting exactly what's staged.
func newReadIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-index",
		Short: "List the raw contents of the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}
			idx, err := r.Index()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range idx.Paths() {
				if idx.IsConflicted(p) {
					fmt.Fprintf(out, "U %s\n", p)
					continue
				}
				e, _ := idx.Get(p)
				fmt.Fprintf(out, "%o %s %s\n", e.Mode, e.Hash, p)
			}
			return nil
		},
	}
}

func newWriteHeadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write-head <commit-or-branch>",
		Short: "Point HEAD at a commit or branch without touching the working tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}

			if branches, err := r.ListBranches(); err == nil {
				for _, b := range branches {
					if b == args[0] {
						return r.Refs.SetHeadSymbolic("refs/heads/" + b)
					}
				}
			}

			h, err := r.Store.Resolve(args[0])
			if err != nil {
				return err
			}
			return r.Refs.SetHeadDetached(h, nil)
		},
	}
}

func newReadHeadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-head",
		Short: "Print what HEAD points at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}
			target, detached, err := r.Refs.Head()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if detached {
				fmt.Fprintf(out, "HEAD detached at %s\n", target)
				return nil
			}
			fmt.Fprintf(out, "HEAD -> %s\n", target)
			return nil
		},
	}
}
