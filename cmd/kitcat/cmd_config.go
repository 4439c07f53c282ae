package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kitcat/pkg/config"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config KEY [VALUE]",
		Short: "Read or write a repository config key (user.name, user.email, remote.<name>)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gotDir, err := findGotDir(".")
			if err != nil {
				return err
			}

			key := args[0]
			if len(args) == 2 {
				return config.Set(gotDir, key, args[1])
			}

			value, err := config.Get(gotDir, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

// findGotDir walks upward from start looking for a .kitcat directory,
// mirroring repo.Open's subdirectory discovery without constructing a
// full Repo (config reads/writes don't need the object store or refs).
func findGotDir(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	dir := abs
	for {
		candidate := filepath.Join(dir, ".kitcat")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a kitcat repository (or any parent up to %s)", abs)
		}
		dir = parent
	}
}
