package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"kitcat/pkg/object"
	"kitcat/pkg/repo"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", openLogger(cmd))
			if err != nil {
				return err
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			target, detached, err := r.Refs.Head()
			noCommits := true
			if err == nil {
				if _, resolveErr := r.Refs.Resolve("HEAD"); resolveErr == nil {
					noCommits = false
				}
			}
			label := "main"
			if err == nil {
				if detached {
					label = "HEAD (detached at " + shortHash(object.Hash(target)) + ")"
				} else if branch, berr := r.CurrentBranch(); berr == nil {
					label = branch
				}
			}
			if noCommits {
				fmt.Fprintf(out, "on %s (no commits yet)\n", label)
			} else {
				fmt.Fprintf(out, "on %s\n", label)
			}

			var conflicts, staged, unstaged, untracked []string
			for _, e := range entries {
				if e.IndexStatus == repo.StatusConflict || e.WorkStatus == repo.StatusConflict {
					conflicts = append(conflicts, fmt.Sprintf("  ! %s", filepath.ToSlash(e.Path)))
					continue
				}

				switch e.IndexStatus {
				case repo.StatusNew:
					staged = append(staged, fmt.Sprintf("  + %s", filepath.ToSlash(e.Path)))
				case repo.StatusModified:
					staged = append(staged, fmt.Sprintf("  ~ %s", filepath.ToSlash(e.Path)))
				case repo.StatusDeleted:
					staged = append(staged, fmt.Sprintf("  - %s", filepath.ToSlash(e.Path)))
				}

				switch e.WorkStatus {
				case repo.StatusDirty:
					unstaged = append(unstaged, fmt.Sprintf("  ~ %s", filepath.ToSlash(e.Path)))
				case repo.StatusDeleted:
					if e.IndexStatus != repo.StatusUntracked {
						unstaged = append(unstaged, fmt.Sprintf("  - %s", filepath.ToSlash(e.Path)))
					}
				}

				if e.IndexStatus == repo.StatusUntracked {
					untracked = append(untracked, fmt.Sprintf("  %s", filepath.ToSlash(e.Path)))
				}
			}

			printGroup(out, "conflicts", conflicts)
			printGroup(out, "staged", staged)
			printGroup(out, "unstaged", unstaged)
			printGroup(out, "untracked", untracked)

			return nil
		},
	}
}

func printGroup(out io.Writer, label string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, label+":")
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}
