package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kitcat/pkg/repo"
)

func newWriteTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write-tree",
		Short: "Write the index as a tree object and print its hash",
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
			h, err := r.BuildTree(idx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func newListTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-tree HASH",
		Short: "List a tree object's files, recursively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}
			h, err := r.Store.Resolve(args[0])
			if err != nil {
				return err
			}
			entries, err := r.FlattenTree(h)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s %s %s\n", e.Mode, e.Hash, e.Path)
			}
			return nil
		},
	}
}
