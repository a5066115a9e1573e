package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/adharvest/internal/harvest"
	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
)

var version = "0.1.0"

// exitError carries the process exit status out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error to the process status. Errors that are not
// an exitError are configuration or validation problems.
func exitCode(err error) int {
	if err == nil {
		return harvest.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return harvest.ExitInvalid
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := newRootCmd(config.NewViper())
	err := root.Execute()
	os.Exit(printExit(root.ErrOrStderr(), err))
}

// printExit prints err, unless it only carries a status, and returns the exit
// code
func printExit(w io.Writer, err error) int {
	var ee *exitError
	if err != nil && !(errors.As(err, &ee) && ee.err == nil) {
		fmt.Fprintln(w, err)
	}
	return exitCode(err)
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "adharvest",
		Short: "adharvest - parallel Google Ads report harvester",
		Long: `adharvest runs a set of report queries against a set of Google Ads accounts
in parallel, retries transient API failures, writes every result row to a
warehouse table or to one file per account and report, and reports failures.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addGlobalFlags(root, v)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "adharvest v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newRunCmd(v))
	root.AddCommand(newCampaignsCmd(v))
	root.AddCommand(newAccountsCmd(v))
	root.AddCommand(newDatabasesCmd(v))
	return root
}
