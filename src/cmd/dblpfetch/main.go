package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"dblpfetch/src/cmd/dblpfetch/fetchcmd"
	"dblpfetch/src/internal/gitutil"
)

// newRootCmd wires the real git committer into the fetch command.
func newRootCmd() *cobra.Command {
	return fetchcmd.New(fetchcmd.Deps{Commit: gitutil.Commit})
}

func execute(args []string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func main() {
	if err := execute(os.Args[1:]); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
