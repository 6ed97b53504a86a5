package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockProvider is a scripted token endpoint. It records every exchange
// request so tests can assert on the wire shape and on whether the
// exchanger was invoked at all.
type mockProvider struct {
	server       *httptest.Server
	hits         atomic.Int32
	lastForm     url.Values
	refreshToken string
	status       int
	errorBody    string
}

func newMockProvider(t *testing.T) *mockProvider {
	t.Helper()
	p := &mockProvider{refreshToken: "refresh-tok", status: http.StatusOK}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.hits.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		p.lastForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		if p.status != http.StatusOK {
			w.WriteHeader(p.status)
			_, _ = w.Write([]byte(p.errorBody))
			return
		}
		response := map[string]any{
			"access_token": "access-tok",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if p.refreshToken != "" {
			response["refresh_token"] = p.refreshToken
		}
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *mockProvider) endpoints() Endpoints {
	return Endpoints{
		AuthURL:  p.server.URL + "/oauth/authorize",
		TokenURL: p.server.URL + "/oauth/token",
		ClientID: "inferadb-cli",
	}
}

func testFlowOptions() *FlowOptions {
	return &FlowOptions{CallbackPort: -1, Timeout: 5 * time.Second}
}

func TestNewFlowRejectsBadEndpoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		endpoints Endpoints
	}{
		{"relative auth URL", Endpoints{AuthURL: "not-a-url", TokenURL: "https://ok.example/token", ClientID: "cli"}},
		{"empty token URL", Endpoints{AuthURL: "https://ok.example/auth", TokenURL: "", ClientID: "cli"}},
		{"missing client id", Endpoints{AuthURL: "https://ok.example/auth", TokenURL: "https://ok.example/token", ClientID: ""}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFlow(tt.endpoints, nil)
			if !IsFlowErrorKind(err, KindEndpointConfig) {
				t.Errorf("NewFlow() error = %v, want kind %s", err, KindEndpointConfig)
			}
		})
	}
}

func TestAuthURLCarriesChallengeAndState(t *testing.T) {
	t.Parallel()

	provider := newMockProvider(t)
	flow, err := NewFlow(provider.endpoints(), testFlowOptions())
	if err != nil {
		t.Fatalf("NewFlow() error = %v", err)
	}
	if err = flow.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer flow.server.Close()

	parsed, err := url.Parse(flow.AuthURL())
	if err != nil {
		t.Fatalf("AuthURL() is not a valid URL: %v", err)
	}
	query := parsed.Query()

	if got := query.Get("response_type"); got != "code" {
		t.Errorf("response_type = %q, want code", got)
	}
	if got := query.Get("client_id"); got != "inferadb-cli" {
		t.Errorf("client_id = %q, want inferadb-cli", got)
	}
	if got := query.Get("scope"); got != "openid profile offline_access" {
		t.Errorf("scope = %q, want %q", got, "openid profile offline_access")
	}
	if got := query.Get("code_challenge_method"); got != "S256" {
		t.Errorf("code_challenge_method = %q, want S256", got)
	}
	if query.Get("code_challenge") == "" {
		t.Error("code_challenge is empty")
	}
	if query.Get("state") == "" {
		t.Error("state is empty")
	}
	redirect := query.Get("redirect_uri")
	if want := fmt.Sprintf("http://localhost:%d/callback", flow.server.Port()); redirect != want {
		t.Errorf("redirect_uri = %q, want %q", redirect, want)
	}
}

func TestLoginHappyPath(t *testing.T) {
	t.Parallel()

	provider := newMockProvider(t)
	flow, err := NewFlow(provider.endpoints(), testFlowOptions())
	if err != nil {
		t.Fatalf("NewFlow() error = %v", err)
	}
	if err = flow.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Stand in for the browser: follow the redirect the provider would
	// issue, echoing back the state from the authorization URL.
	authQuery, err := url.Parse(flow.AuthURL())
	if err != nil {
		t.Fatalf("invalid auth URL: %v", err)
	}
	state := authQuery.Query().Get("state")
	challenge := authQuery.Query().Get("code_challenge")

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/callback?code=auth-code-1&state=%s", flow.server.Port(), state))
	if err != nil {
		t.Fatalf("simulated callback failed: %v", err)
	}
	_ = resp.Body.Close()

	credentials, err := flow.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if credentials.AccessToken != "access-tok" {
		t.Errorf("AccessToken = %q, want access-tok", credentials.AccessToken)
	}
	if credentials.RefreshToken != "refresh-tok" {
		t.Errorf("RefreshToken = %q, want refresh-tok", credentials.RefreshToken)
	}
	if credentials.ExpiresAt == nil {
		t.Fatal("ExpiresAt = nil, want roughly an hour from now")
	}
	if until := time.Until(*credentials.ExpiresAt); until < 50*time.Minute || until > 70*time.Minute {
		t.Errorf("ExpiresAt in %v, want about an hour", until)
	}

	// The exchange must carry the code and the verifier matching the
	// challenge from the authorization URL, never the challenge itself.
	form := provider.lastForm
	if got := form.Get("grant_type"); got != "authorization_code" {
		t.Errorf("grant_type = %q, want authorization_code", got)
	}
	if got := form.Get("code"); got != "auth-code-1" {
		t.Errorf("code = %q, want auth-code-1", got)
	}
	verifier := form.Get("code_verifier")
	if verifier == "" {
		t.Fatal("code_verifier missing from exchange request")
	}
	hash := sha256.Sum256([]byte(verifier))
	if derived := base64.RawURLEncoding.EncodeToString(hash[:]); derived != challenge {
		t.Errorf("code_verifier does not match the advertised challenge")
	}
}

func TestManualCompleteSkipsListenerBind(t *testing.T) {
	t.Parallel()

	// Occupy a port to prove the manual path never tries to bind it.
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not reserve a port: %v", err)
	}
	defer func() {
		_ = busy.Close()
	}()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	provider := newMockProvider(t)
	flow, err := NewFlow(provider.endpoints(), &FlowOptions{CallbackPort: busyPort})
	if err != nil {
		t.Fatalf("NewFlow() error = %v", err)
	}
	flow.StartManual()

	authQuery, err := url.Parse(flow.AuthURL())
	if err != nil {
		t.Fatalf("invalid auth URL: %v", err)
	}
	if got, want := authQuery.Query().Get("redirect_uri"), fmt.Sprintf("http://localhost:%d/callback", busyPort); got != want {
		t.Errorf("redirect_uri = %q, want %q", got, want)
	}

	state := authQuery.Query().Get("state")
	credentials, err := flow.Complete(context.Background(), &CallbackResult{Code: "pasted-code", State: state})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if credentials.AccessToken != "access-tok" {
		t.Errorf("AccessToken = %q, want access-tok", credentials.AccessToken)
	}
	if got := provider.lastForm.Get("code"); got != "pasted-code" {
		t.Errorf("code = %q, want pasted-code", got)
	}
}

func TestCompleteProviderDenied(t *testing.T) {
	t.Parallel()

	provider := newMockProvider(t)
	flow, err := NewFlow(provider.endpoints(), testFlowOptions())
	if err != nil {
		t.Fatalf("NewFlow() error = %v", err)
	}
	if err = flow.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_, err = flow.Complete(context.Background(), &CallbackResult{Error: "access_denied", ErrorDescription: "User cancelled"})
	if !IsFlowErrorKind(err, KindProviderDenied) {
		t.Fatalf("Complete() error = %v, want kind %s", err, KindProviderDenied)
	}
	if !strings.Contains(err.Error(), "User cancelled") {
		t.Errorf("error %q does not carry the provider description", err)
	}
	if provider.hits.Load() != 0 {
		t.Error("token endpoint was called on a provider denial")
	}
}

func TestCompleteStateMismatchNeverExchanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state string
	}{
		{"different value", "abd"},
		{"empty state", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider := newMockProvider(t)
			flow, err := NewFlow(provider.endpoints(), testFlowOptions())
			if err != nil {
				t.Fatalf("NewFlow() error = %v", err)
			}
			if err = flow.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			_, err = flow.Complete(context.Background(), &CallbackResult{Code: "stolen-code", State: tt.state})
			if !IsFlowErrorKind(err, KindStateMismatch) {
				t.Fatalf("Complete() error = %v, want kind %s", err, KindStateMismatch)
			}
			if provider.hits.Load() != 0 {
				t.Error("authorization code was forwarded to the exchanger despite the mismatch")
			}
		})
	}
}

func TestCompleteTokenEndpointRejection(t *testing.T) {
	t.Parallel()

	provider := newMockProvider(t)
	provider.status = http.StatusBadRequest
	provider.errorBody = `{"error":"invalid_grant","error_description":"code already used"}`

	flow, err := NewFlow(provider.endpoints(), testFlowOptions())
	if err != nil {
		t.Fatalf("NewFlow() error = %v", err)
	}
	if err = flow.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_, err = flow.Complete(context.Background(), &CallbackResult{Code: "used-code", State: flow.state})
	if !IsFlowErrorKind(err, KindTokenExchange) {
		t.Fatalf("Complete() error = %v, want kind %s", err, KindTokenExchange)
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("error %q does not carry the OAuth error code", err)
	}
	if !strings.Contains(err.Error(), "code already used") {
		t.Errorf("error %q does not carry the OAuth error description", err)
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	provider := newMockProvider(t)
	provider.refreshToken = "" // provider omits the refresh token on rotation

	old := &Credentials{AccessToken: "stale", RefreshToken: "refresh-tok"}
	refreshed, err := Refresh(context.Background(), provider.endpoints(), old)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if got := provider.lastForm.Get("grant_type"); got != "refresh_token" {
		t.Errorf("grant_type = %q, want refresh_token", got)
	}
	if got := provider.lastForm.Get("refresh_token"); got != "refresh-tok" {
		t.Errorf("refresh_token = %q, want refresh-tok", got)
	}

	if refreshed.AccessToken != "access-tok" {
		t.Errorf("AccessToken = %q, want access-tok", refreshed.AccessToken)
	}
	if refreshed.RefreshToken != "refresh-tok" {
		t.Errorf("RefreshToken = %q, want the old token carried over", refreshed.RefreshToken)
	}
	if old.AccessToken != "stale" {
		t.Error("Refresh() mutated the old credentials")
	}
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	provider := newMockProvider(t)
	_, err := Refresh(context.Background(), provider.endpoints(), NewCredentials("only-access"))
	if !IsFlowErrorKind(err, KindTokenExchange) {
		t.Fatalf("Refresh() error = %v, want kind %s", err, KindTokenExchange)
	}
	if provider.hits.Load() != 0 {
		t.Error("token endpoint was called without a refresh token")
	}
}
