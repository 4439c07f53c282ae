package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kitcat/pkg/repo"
)

func newReadFileCmd() *cobra.Command {
	var pretty bool
	var sizeOnly bool

	cmd := &cobra.Command{
		Use:   "read-file -p|-s HASH",
		Short: "Print or size-check a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}
			typ, content, err := r.Store.Read(args[0])
			if err != nil {
				return err
			}
			if sizeOnly {
				fmt.Fprintln(cmd.OutOrStdout(), len(content))
				return nil
			}
			if pretty {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", typ, len(content))
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "print the object type and size before the content")
	cmd.Flags().BoolVarP(&sizeOnly, "size", "s", false, "print only the object's content size")
	return cmd
}
