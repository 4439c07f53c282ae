package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kitcat/pkg/object"
	"kitcat/pkg/repo"
)

func newHashObjectCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "hash-object [-w] PATH",
		Short: "Compute (and optionally store) a blob's hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("hash-object: read %s: %w", args[0], err)
			}

			if !write {
				fmt.Fprintln(cmd.OutOrStdout(), object.HashObject(object.TypeBlob, object.MarshalBlob(&object.Blob{Data: data})))
				return nil
			}

			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}
			h, err := r.Store.WriteBlob(&object.Blob{Data: data})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the object into the store")
	return cmd
}
