// Package cli wires the cobra command tree for the inferadb binary.
package cli

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferadb/cli/internal/auth"
	"github.com/inferadb/cli/internal/client"
	"github.com/inferadb/cli/internal/config"
	"github.com/inferadb/cli/internal/logging"
)

// Version information set via ldflags at build time.
var (
	Version   = "dev"
	GitCommit = ""
)

var (
	flagProfile string
	flagVerbose bool
)

// cfg is loaded once before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:     "inferadb",
	Short:   "InferaDB command-line client",
	Long:    `Authenticate against InferaDB and work with organizations, vaults, and tokens from the terminal.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.SetVerbose(flagVerbose)

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		if cfg.LogFile != "" {
			if err = logging.ConfigureFileOutput(cfg.LogFile); err != nil {
				log.Warnf("failed to configure log file: %v", err)
			}
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("inferadb version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "profile to use (defaults to the configured default profile)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI and exits the process with a semantic exit code.
//
// Exit codes: 0 success, 1 general error, 2 usage or configuration error,
// 3 authentication required or failed, 5 not found, 10 network error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if suggestLogin(err) {
			fmt.Fprintln(os.Stderr, "Run 'inferadb login' to authenticate.")
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the CLI's semantic exit codes.
func exitCode(err error) int {
	var flowErr *auth.FlowError
	switch {
	case errors.As(err, &flowErr):
		if flowErr.Kind == auth.KindEndpointConfig {
			return 2
		}
		return 3
	case errors.Is(err, client.ErrAuthRequired):
		return 3
	case errors.Is(err, errProfileNotFound):
		return 5
	case errors.Is(err, errUsage):
		return 2
	case isNetworkError(err):
		return 10
	default:
		return 1
	}
}

// suggestLogin reports whether the error warrants a login hint.
func suggestLogin(err error) bool {
	return errors.Is(err, client.ErrAuthRequired)
}

// errProfileNotFound marks lookups of profiles that do not exist.
var errProfileNotFound = errors.New("profile not found")

// errUsage marks argument validation failures.
var errUsage = errors.New("invalid usage")

// isNetworkError takes a conservative view: only unwrapped transport
// failures from the API client count.
func isNetworkError(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr)
}
