package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kitcat/pkg/repo"
)

func newGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Pack loose objects into a pack file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}

			summary, err := r.GC()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.PackedObjects == 0 {
				fmt.Fprintln(out, "nothing to pack")
				return nil
			}
			fmt.Fprintf(out, "packed %d loose object(s) into pack %s\n", summary.PackedObjects, summary.PackID)
			return nil
		},
	}
}
