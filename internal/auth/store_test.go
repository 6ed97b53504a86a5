package auth

import (
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestCredentialStoreRoundTrip(t *testing.T) {
	keyring.MockInit()
	store := NewCredentialStore()

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	credentials := &Credentials{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    &expiresAt,
	}

	if err := store.Store("work", credentials); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if !store.Exists("work") {
		t.Error("Exists() = false after Store()")
	}

	loaded, err := store.Load("work")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() = nil after Store()")
	}
	if loaded.AccessToken != credentials.AccessToken {
		t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, credentials.AccessToken)
	}
	if loaded.RefreshToken != credentials.RefreshToken {
		t.Errorf("RefreshToken = %q, want %q", loaded.RefreshToken, credentials.RefreshToken)
	}
	if loaded.ExpiresAt == nil || !loaded.ExpiresAt.Equal(expiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.ExpiresAt, expiresAt)
	}

	if err = store.Delete("work"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Exists("work") {
		t.Error("Exists() = true after Delete()")
	}
}

func TestCredentialStoreMissingEntry(t *testing.T) {
	keyring.MockInit()
	store := NewCredentialStore()

	loaded, err := store.Load("nobody")
	if err != nil {
		t.Fatalf("Load() of a missing entry error = %v, want nil", err)
	}
	if loaded != nil {
		t.Errorf("Load() of a missing entry = %+v, want nil", loaded)
	}

	if err = store.Delete("nobody"); err != nil {
		t.Errorf("Delete() of a missing entry error = %v, want nil", err)
	}
	if store.Exists("nobody") {
		t.Error("Exists() = true for a missing entry")
	}
}
