package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kitcat/pkg/object"
	"kitcat/pkg/repo"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}
			head, err := r.Refs.Resolve("HEAD")
			if err != nil {
				return nil // no commits yet
			}
			commits, err := r.Log(head, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range commits {
				h := object.HashObject(object.TypeCommit, object.MarshalCommit(c))
				if oneline {
					fmt.Fprintf(out, "%s %s\n", shortHash(h), firstLine(c.Message))
					continue
				}
				fmt.Fprintf(out, "commit %s\n", h)
				fmt.Fprintf(out, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Author.Seconds, 0).UTC().Format(time.RFC1123Z))
				fmt.Fprintln(out)
				for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "show one line per commit")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")
	return cmd
}

func shortHash(h object.Hash) string {
	s := string(h)
	if len(s) > 7 {
		return s[:7]
	}
	return s
}

func firstLine(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
