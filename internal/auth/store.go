package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name credentials are filed under in the
// OS keychain.
const keyringService = "inferadb-cli"

// CredentialStore persists credentials in the operating system's secret
// store, keyed by profile name. The authentication flow hands credentials to
// the store after a successful exchange and never re-reads them itself.
type CredentialStore struct {
	service string
}

// NewCredentialStore creates a credential store using the default service name.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{service: keyringService}
}

// Store persists credentials for a profile, replacing any existing entry.
func (s *CredentialStore) Store(profile string, credentials *Credentials) error {
	data, err := json.Marshal(credentials)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err = keyring.Set(s.service, profile, string(data)); err != nil {
		return fmt.Errorf("failed to store credentials for profile %q: %w", profile, err)
	}
	return nil
}

// Load retrieves the credentials for a profile. A missing entry is not an
// error; it returns (nil, nil).
func (s *CredentialStore) Load(profile string) (*Credentials, error) {
	data, err := keyring.Get(s.service, profile)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load credentials for profile %q: %w", profile, err)
	}

	var credentials Credentials
	if err = json.Unmarshal([]byte(data), &credentials); err != nil {
		return nil, fmt.Errorf("failed to decode stored credentials for profile %q: %w", profile, err)
	}
	if credentials.AccessToken == "" {
		return nil, fmt.Errorf("stored credentials for profile %q are missing an access token", profile)
	}
	return &credentials, nil
}

// Delete removes the credentials for a profile. Deleting an entry that does
// not exist is not an error.
func (s *CredentialStore) Delete(profile string) error {
	if err := keyring.Delete(s.service, profile); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete credentials for profile %q: %w", profile, err)
	}
	return nil
}

// Exists reports whether credentials are stored for a profile.
func (s *CredentialStore) Exists(profile string) bool {
	_, err := keyring.Get(s.service, profile)
	return err == nil
}
