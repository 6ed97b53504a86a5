package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inferadb/cli/internal/config"
)

var (
	flagProfileURL   string
	flagProfileOrg   string
	flagProfileVault string
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage connection profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tURL\tORG\tVAULT\tDEFAULT")
		for _, name := range names {
			profile := cfg.Profiles[name]
			isDefault := ""
			if name == cfg.DefaultProfile {
				isDefault = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, orDash(profile.URL), orDash(profile.Org), orDash(profile.Vault), isDefault)
		}
		return w.Flush()
	},
}

var profilesUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, ok := cfg.GetProfile(name); !ok {
			return fmt.Errorf("profile '%s': %w", name, errProfileNotFound)
		}
		cfg.DefaultProfile = name
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Default profile set to '%s'.\n", name)
		return nil
	},
}

var profilesSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a profile",
	Long: `Create or update a profile with the given connection settings.

Examples:
  inferadb profiles set staging --url https://staging.inferadb.com --org 42 --vault 7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		profile, ok := cfg.GetProfile(name)
		if !ok {
			profile = &config.Profile{}
		}
		if cmd.Flags().Changed("url") {
			profile.URL = flagProfileURL
		}
		if cmd.Flags().Changed("org") {
			profile.Org = flagProfileOrg
		}
		if cmd.Flags().Changed("vault") {
			profile.Vault = flagProfileVault
		}

		cfg.SetProfile(name, profile)
		if cfg.DefaultProfile == "" {
			cfg.DefaultProfile = name
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Profile '%s' saved.\n", name)
		return nil
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, ok := cfg.GetProfile(name); !ok {
			return fmt.Errorf("profile '%s': %w", name, errProfileNotFound)
		}
		cfg.DeleteProfile(name)
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Profile '%s' deleted. Stored credentials, if any, were kept; run 'inferadb logout --profile %s' to remove them.\n", name, name)
		return nil
	},
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func init() {
	profilesSetCmd.Flags().StringVar(&flagProfileURL, "url", "", "API endpoint URL")
	profilesSetCmd.Flags().StringVar(&flagProfileOrg, "org", "", "organization ID")
	profilesSetCmd.Flags().StringVar(&flagProfileVault, "vault", "", "vault ID")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesUseCmd)
	profilesCmd.AddCommand(profilesSetCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	rootCmd.AddCommand(profilesCmd)
}
