package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inferadb/cli/internal/auth"
)

var (
	flagNoBrowser    bool
	flagCallbackPort int
	flagManual       bool
	flagYes          bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to InferaDB via OAuth",
	Long: `Authenticate with InferaDB using the browser-based OAuth flow.

The CLI opens your browser to the authorization page and waits for the
redirect on a local loopback port. Credentials are stored in the OS keychain
under the active profile.

Examples:
  # Log in with the default profile
  inferadb login

  # Log in without opening a browser (prints the URL instead)
  inferadb login --no-browser

  # Paste the callback URL by hand (e.g. over SSH)
  inferadb login --manual`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profileName := cfg.EffectiveProfileName(flagProfile)
		fmt.Fprintf(os.Stderr, "Logging in as profile '%s'...\n", profileName)

		opts := &auth.FlowOptions{
			NoBrowser:    flagNoBrowser || flagManual,
			CallbackPort: flagCallbackPort,
		}

		var credentials *auth.Credentials
		var err error
		if flagManual {
			credentials, err = manualLogin(cmd, opts)
		} else {
			credentials, err = auth.Login(cmd.Context(), auth.DefaultEndpoints(), opts)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, auth.UserFriendlyMessage(err))
			return err
		}

		if err = auth.NewCredentialStore().Store(profileName, credentials); err != nil {
			return err
		}

		fmt.Println("Login successful!")
		return nil
	},
}

// manualLogin runs the flow without the local listener: the user pastes the
// redirect URL and the flow verifies and exchanges it like any callback. No
// port is bound, so it works even when something else holds the callback port.
func manualLogin(cmd *cobra.Command, opts *auth.FlowOptions) (*auth.Credentials, error) {
	flow, err := auth.NewFlow(auth.DefaultEndpoints(), opts)
	if err != nil {
		return nil, err
	}
	flow.StartManual()

	fmt.Fprintf(os.Stderr, "Visit the following URL to authenticate:\n%s\n", flow.AuthURL())

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "Paste the callback URL: ")
		line, errRead := reader.ReadString('\n')
		if errRead != nil {
			return nil, fmt.Errorf("failed to read callback URL: %w", errRead)
		}
		result, errParse := auth.ParseCallbackURL(line)
		if errParse != nil {
			fmt.Fprintf(os.Stderr, "Could not parse that: %v\n", errParse)
			continue
		}
		if result == nil {
			continue
		}
		return flow.Complete(cmd.Context(), result)
	}
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and remove stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profileName := cfg.EffectiveProfileName(flagProfile)
		store := auth.NewCredentialStore()

		if !store.Exists(profileName) {
			fmt.Printf("Profile '%s' is not logged in.\n", profileName)
			return nil
		}

		if !flagYes && !confirm(fmt.Sprintf("Log out from profile '%s'?", profileName)) {
			fmt.Println("Cancelled.")
			return nil
		}

		if err := store.Delete(profileName); err != nil {
			return err
		}
		fmt.Printf("Logged out from profile '%s'.\n", profileName)
		return nil
	},
}

// confirm asks a yes/no question on stderr and reads the answer from stdin.
func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	loginCmd.Flags().BoolVar(&flagNoBrowser, "no-browser", false, "don't open the browser automatically")
	loginCmd.Flags().IntVar(&flagCallbackPort, "callback-port", 0, "override the OAuth callback port")
	loginCmd.Flags().BoolVar(&flagManual, "manual", false, "paste the callback URL instead of waiting for the redirect")
	logoutCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
