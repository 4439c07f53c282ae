package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kitcat/pkg/repo"
)

func newShowCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-commit HASH",
		Short: "Show a commit's metadata and tree",
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
			c, err := r.Store.ReadCommit(string(h))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "commit %s\n", h)
			for _, p := range c.Parents {
				fmt.Fprintf(out, "parent %s\n", p)
			}
			fmt.Fprintf(out, "tree   %s\n", c.TreeHash)
			fmt.Fprintf(out, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
			fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Author.Seconds, 0).UTC().Format(time.RFC1123Z))
			fmt.Fprintln(out)
			for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
				fmt.Fprintf(out, "    %s\n", line)
			}
			fmt.Fprintln(out)

			entries, err := r.FlattenTree(c.TreeHash)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s %s %s\n", e.Mode, e.Hash, e.Path)
			}
			return nil
		},
	}
}
