package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inferadb/cli/internal/auth"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Inspect and refresh stored tokens",
}

var tokensListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show token status for all configured profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := auth.NewCredentialStore()

		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROFILE\tSTATUS\tEXPIRES\tREFRESHABLE")
		for _, name := range names {
			status, expires, refreshable := "not authenticated", "-", "-"
			if credentials, err := store.Load(name); err == nil && credentials != nil {
				switch {
				case credentials.IsExpired():
					status = "expired"
				case credentials.ExpiresSoon():
					status = "expires soon"
				default:
					status = "valid"
				}
				expires = "never"
				if credentials.ExpiresAt != nil {
					expires = credentials.ExpiresAt.Local().Format("2006-01-02 15:04")
				}
				refreshable = "no"
				if credentials.CanRefresh() {
					refreshable = "yes"
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, status, expires, refreshable)
		}
		return w.Flush()
	},
}

var tokensRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token for the active profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profileName := cfg.EffectiveProfileName(flagProfile)
		store := auth.NewCredentialStore()

		credentials, err := store.Load(profileName)
		if err != nil {
			return err
		}
		if credentials == nil {
			return fmt.Errorf("profile '%s' is not logged in: %w", profileName, errUsage)
		}
		if !credentials.CanRefresh() {
			return fmt.Errorf("profile '%s' has no refresh token; run 'inferadb login': %w", profileName, errUsage)
		}

		refreshed, err := auth.Refresh(cmd.Context(), auth.DefaultEndpoints(), credentials)
		if err != nil {
			return err
		}
		if err = store.Store(profileName, refreshed); err != nil {
			return err
		}

		fmt.Printf("Token for profile '%s' refreshed.\n", profileName)
		return nil
	},
}

func init() {
	tokensCmd.AddCommand(tokensListCmd)
	tokensCmd.AddCommand(tokensRefreshCmd)
	rootCmd.AddCommand(tokensCmd)
}
