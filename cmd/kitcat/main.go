package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kitcat/internal/kcerr"
	"kitcat/internal/logging"
)

func main() {
	var logLevel string

	root := &cobra.Command{
		Use:   "kitcat",
		Short: "A minimal, Git-compatible version control core",
	}
	root.PersistentFlags().StringVar(&logLevel, "verbose", "", "log level (debug, info, warn, error)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newHashObjectCmd())
	root.AddCommand(newReadFileCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newWriteTreeCmd())
	root.AddCommand(newListTreeCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newShowCommitCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newCheckoutCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newCherryPickCmd())
	root.AddCommand(newGCCmd())
	root.AddCommand(newReadIndexCmd())
	root.AddCommand(newWriteHeadCmd())
	root.AddCommand(newReadHeadCmd())
	root.AddCommand(newConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kitcat 0.1.0-dev")
		},
	}
}

// exitCodeFor maps an error kind to the process exit code, so scripts
// driving kitcat can distinguish failure classes without parsing text.
func exitCodeFor(err error) int {
	switch {
	case kcerr.Is(err, kcerr.NotRepository):
		return 2
	case kcerr.Is(err, kcerr.NotFound):
		return 3
	case kcerr.Is(err, kcerr.AmbiguousHash):
		return 4
	case kcerr.Is(err, kcerr.Corrupt):
		return 5
	case kcerr.Is(err, kcerr.IndexLocked):
		return 6
	case kcerr.Is(err, kcerr.WouldOverwrite):
		return 7
	case kcerr.Is(err, kcerr.CurrentBranch):
		return 8
	case kcerr.Is(err, kcerr.NoCommonAncestor):
		return 9
	case kcerr.Is(err, kcerr.ConflictsPending):
		return 10
	case kcerr.Is(err, kcerr.InvalidArgument):
		return 11
	default:
		return 1
	}
}

// openLogger builds the shared diagnostic logger for a single command
// invocation, honoring --verbose/KITCAT_LOG (internal/logging.New).
func openLogger(cmd *cobra.Command) *logging.Logger {
	level, _ := cmd.Flags().GetString("verbose")
	log, err := logging.New(level)
	if err != nil {
		return logging.Nop()
	}
	return log
}
