package auth

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestCredentialsExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name            string
		credentials     *Credentials
		wantExpired     bool
		wantExpiresSoon bool
		wantCanRefresh  bool
	}{
		{
			"expired an hour ago",
			&Credentials{AccessToken: "tok", RefreshToken: "ref", ExpiresAt: timePtr(now.Add(-time.Hour))},
			true,
			true,
			true,
		},
		{
			"valid for another hour",
			&Credentials{AccessToken: "tok", RefreshToken: "ref", ExpiresAt: timePtr(now.Add(time.Hour))},
			false,
			false,
			true,
		},
		{
			"expires in three minutes",
			&Credentials{AccessToken: "tok", ExpiresAt: timePtr(now.Add(3 * time.Minute))},
			false,
			true,
			false,
		},
		{
			"access token only, never expires",
			NewCredentials("tok"),
			false,
			false,
			false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.credentials.IsExpired(); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
			if got := tt.credentials.ExpiresSoon(); got != tt.wantExpiresSoon {
				t.Errorf("ExpiresSoon() = %v, want %v", got, tt.wantExpiresSoon)
			}
			if got := tt.credentials.CanRefresh(); got != tt.wantCanRefresh {
				t.Errorf("CanRefresh() = %v, want %v", got, tt.wantCanRefresh)
			}
		})
	}
}
