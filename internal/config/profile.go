package config

import "fmt"

// Profile is a named connection target: an API endpoint plus the
// organization and vault commands operate on. Credentials are stored
// separately, in the OS keychain, keyed by the profile name.
type Profile struct {
	// URL is the API endpoint.
	URL string `yaml:"url,omitempty"`
	// Org is the organization ID.
	Org string `yaml:"org,omitempty"`
	// Vault is the vault ID.
	Vault string `yaml:"vault,omitempty"`
}

// URLOrDefault returns the configured API endpoint, or the production
// default when unset.
func (p *Profile) URLOrDefault() string {
	if p.URL == "" {
		return DefaultAPIURL
	}
	return p.URL
}

// IsComplete reports whether the profile has everything needed to connect.
func (p *Profile) IsComplete() bool {
	return p.URL != "" && p.Org != "" && p.Vault != ""
}

// Validate checks that the fields commands rely on are present.
func (p *Profile) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("profile missing URL")
	}
	if p.Org == "" {
		return fmt.Errorf("organization not specified; use --org or configure the profile")
	}
	if p.Vault == "" {
		return fmt.Errorf("vault not specified; use --vault or configure the profile")
	}
	return nil
}
