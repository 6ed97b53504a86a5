package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inferadb/cli/internal/auth"
	"github.com/inferadb/cli/internal/client"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		apiClient, err := clientForActiveProfile()
		if err != nil {
			return err
		}

		account, err := apiClient.Whoami(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Account: %s\n", account.Email)
		if account.Name != "" {
			fmt.Printf("Name:    %s\n", account.Name)
		}
		fmt.Printf("ID:      %s\n", account.ID)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check service health for the active profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		apiClient, err := clientForActiveProfile()
		if err != nil {
			return err
		}

		health, err := apiClient.Health(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Status: %s\n", health.Status)
		if health.Version != "" {
			fmt.Printf("Version: %s\n", health.Version)
		}
		return nil
	},
}

// clientForActiveProfile builds an API client for the active profile from
// its stored credentials. Expired, unrefreshable credentials surface as an
// auth-required error rather than a doomed API call.
func clientForActiveProfile() (*client.Client, error) {
	profileName := cfg.EffectiveProfileName(flagProfile)
	profile, ok := cfg.GetProfile(profileName)
	if !ok {
		return nil, fmt.Errorf("profile '%s': %w", profileName, errProfileNotFound)
	}

	credentials, err := auth.NewCredentialStore().Load(profileName)
	if err != nil {
		return nil, err
	}
	if credentials == nil || credentials.IsExpired() {
		return nil, client.ErrAuthRequired
	}

	return client.New(profile.URLOrDefault(), credentials)
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(healthCmd)
}
