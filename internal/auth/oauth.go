package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/inferadb/cli/internal/browser"
)

// Default OAuth endpoints for the InferaDB control plane. The CLI is a
// public client: there is no client secret, PKCE binds the authorization
// code to this process instead.
const (
	DefaultAuthURL  = "https://auth.inferadb.com/oauth/authorize"
	DefaultTokenURL = "https://auth.inferadb.com/oauth/token"
	DefaultClientID = "inferadb-cli"
)

// scopes requested on every login: identity, profile, and offline access so
// the provider issues a refresh token.
var scopes = []string{"openid", "profile", "offline_access"}

// Endpoints identifies the authorization server a flow talks to.
type Endpoints struct {
	AuthURL  string
	TokenURL string
	ClientID string
}

// DefaultEndpoints returns the production InferaDB authorization server.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthURL:  DefaultAuthURL,
		TokenURL: DefaultTokenURL,
		ClientID: DefaultClientID,
	}
}

// validate rejects malformed endpoint URLs before any network activity.
func (e Endpoints) validate() error {
	for _, endpoint := range []string{e.AuthURL, e.TokenURL} {
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return newFlowError(KindEndpointConfig, fmt.Sprintf("invalid endpoint URL %q", endpoint), err)
		}
	}
	if e.ClientID == "" {
		return newFlowError(KindEndpointConfig, "client id is empty", nil)
	}
	return nil
}

// FlowOptions customizes a single login attempt.
type FlowOptions struct {
	// CallbackPort overrides the loopback callback port. Zero keeps the
	// default; a negative value binds an ephemeral port.
	CallbackPort int
	// NoBrowser suppresses the browser launch; the URL is only printed.
	NoBrowser bool
	// Timeout overrides the callback wait window. Zero keeps the default.
	Timeout time.Duration
	// HTTPClient overrides the client used for the token exchange. The flow
	// hands it to the oauth2 transport through the request context.
	HTTPClient *http.Client
}

// Flow is a single OAuth authorization-code attempt. The PKCE verifier and
// state token it holds are single-use: after any terminal outcome, success or
// failure, the Flow is spent and a retry needs a fresh one.
type Flow struct {
	config     *oauth2.Config
	pkce       *PKCECodes
	state      string
	server     *CallbackServer
	timeout    time.Duration
	httpClient *http.Client
}

// NewFlow prepares a login attempt against the given authorization server:
// it validates the endpoints and generates the per-attempt PKCE pair and
// state token. Nothing touches the network yet.
//
// Parameters:
//   - endpoints: The authorization server to authenticate against
//   - opts: Optional knobs; nil applies the defaults
//
// Returns:
//   - *Flow: A flow ready to Start
//   - error: A FlowError of kind endpoint_config_invalid on bad endpoints
func NewFlow(endpoints Endpoints, opts *FlowOptions) (*Flow, error) {
	if opts == nil {
		opts = &FlowOptions{}
	}
	if err := endpoints.validate(); err != nil {
		return nil, err
	}

	pkce, err := GeneratePKCECodes()
	if err != nil {
		return nil, fmt.Errorf("pkce generation failed: %w", err)
	}
	state, err := GenerateState()
	if err != nil {
		return nil, fmt.Errorf("state generation failed: %w", err)
	}

	// Zero keeps the well-known port; a negative value asks for an
	// ephemeral one, which only makes sense when the provider accepts
	// a dynamic redirect URI (the tests do).
	port := DefaultCallbackPort
	if opts.CallbackPort > 0 {
		port = opts.CallbackPort
	} else if opts.CallbackPort < 0 {
		port = 0
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = CallbackTimeout
	}

	return &Flow{
		config: &oauth2.Config{
			ClientID: endpoints.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:  endpoints.AuthURL,
				TokenURL: endpoints.TokenURL,
				// Public client: the client_id travels in the POST body,
				// there is no secret for Basic auth.
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: scopes,
		},
		pkce:       pkce,
		state:      state,
		server:     NewCallbackServer(port),
		timeout:    timeout,
		httpClient: opts.HTTPClient,
	}, nil
}

// Start binds the callback listener. The redirect URL is finalized here
// because an ephemeral port is only known after binding.
func (f *Flow) Start() error {
	if err := f.server.Start(); err != nil {
		return err
	}
	f.config.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", f.server.Port())
	return nil
}

// StartManual finalizes the redirect URL without binding the callback
// listener. The manual paste path relays the redirect by hand, typically over
// SSH, so no local socket is involved and a busy port must not fail the
// attempt.
func (f *Flow) StartManual() {
	f.config.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", f.server.Port())
}

// AuthURL returns the authorization URL the user must visit. It carries the
// client id, redirect URI, scopes, state token, and the S256 PKCE challenge.
func (f *Flow) AuthURL() string {
	return f.config.AuthCodeURL(f.state, oauth2.S256ChallengeOption(f.pkce.CodeVerifier))
}

// Wait blocks until the browser redirect arrives, verifies it, and exchanges
// the authorization code for tokens. On timeout the callback socket is closed
// so the port is freed for a later attempt.
//
// Returns:
//   - *Credentials: The issued tokens on success
//   - error: A FlowError describing the terminal failure
func (f *Flow) Wait(ctx context.Context) (*Credentials, error) {
	result, err := f.server.Wait(ctx, f.timeout)
	if err != nil {
		return nil, err
	}
	return f.Complete(ctx, result)
}

// Complete verifies a callback result and performs the token exchange. It is
// the tail of Wait and also serves the manual paste path, where the user
// relays the redirect URL by hand.
func (f *Flow) Complete(ctx context.Context, result *CallbackResult) (*Credentials, error) {
	defer f.server.Close()

	if result.Error != "" {
		return nil, newFlowError(KindProviderDenied, providerDetail(result), nil)
	}

	// The code must never reach the exchanger unless the state round-tripped
	// exactly; any difference is treated as a forgery attempt.
	if result.State != f.state {
		log.Errorf("callback carried an unexpected state token %q", result.State)
		return nil, newFlowError(KindStateMismatch, "callback state does not match this attempt", nil)
	}

	return f.exchange(ctx, result.Code)
}

// exchange submits the authorization code together with the PKCE verifier to
// the token endpoint. The concrete HTTP client is injected through the oauth2
// request context; transport failures and protocol errors from the endpoint
// are surfaced distinctly in the error detail.
func (f *Flow) exchange(ctx context.Context, code string) (*Credentials, error) {
	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}

	token, err := f.config.Exchange(ctx, code, oauth2.VerifierOption(f.pkce.CodeVerifier))
	if err != nil {
		return nil, mapTokenError("token exchange", err)
	}

	return credentialsFromToken(token), nil
}

// Refresh obtains a new access token using the refresh-token grant. It
// returns a brand-new Credentials value; the old one is left untouched.
//
// Parameters:
//   - ctx: The context for the request
//   - endpoints: The authorization server that issued the credentials
//   - credentials: The current credentials; CanRefresh must hold
//
// Returns:
//   - *Credentials: Fresh credentials with an updated access token
//   - error: A FlowError of kind token_exchange_failed on any failure
func Refresh(ctx context.Context, endpoints Endpoints, credentials *Credentials) (*Credentials, error) {
	if !credentials.CanRefresh() {
		return nil, newFlowError(KindTokenExchange, "credentials have no refresh token", nil)
	}
	if err := endpoints.validate(); err != nil {
		return nil, err
	}

	config := &oauth2.Config{
		ClientID: endpoints.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	source := config.TokenSource(ctx, &oauth2.Token{RefreshToken: credentials.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, mapTokenError("token refresh", err)
	}

	refreshed := credentialsFromToken(token)
	if refreshed.RefreshToken == "" {
		// Providers may omit the refresh token on rotation; keep the old one.
		refreshed.RefreshToken = credentials.RefreshToken
	}
	return refreshed, nil
}

// Login runs the complete flow: generate challenge, open the browser, wait
// for the callback, verify state, and exchange the code.
//
// The browser launch is advisory. Whether it succeeds or not, the URL is
// printed to stderr so the user can always open it manually.
func Login(ctx context.Context, endpoints Endpoints, opts *FlowOptions) (*Credentials, error) {
	if opts == nil {
		opts = &FlowOptions{}
	}

	flow, err := NewFlow(endpoints, opts)
	if err != nil {
		return nil, err
	}
	if err = flow.Start(); err != nil {
		return nil, err
	}
	defer flow.server.Close()

	authURL := flow.AuthURL()
	fmt.Fprintln(os.Stderr, "Opening browser for authentication...")
	fmt.Fprintf(os.Stderr, "If the browser doesn't open, visit:\n%s\n", authURL)

	if opts.NoBrowser {
		log.Debug("browser launch suppressed; waiting for manual navigation")
	} else if err = browser.OpenURL(authURL); err != nil {
		log.Warnf("failed to open browser automatically: %v", err)
	}

	fmt.Fprintln(os.Stderr, "Waiting for authentication callback...")
	return flow.Wait(ctx)
}

// providerDetail folds the provider error and optional description into one
// human-readable string.
func providerDetail(result *CallbackResult) string {
	if result.ErrorDescription != "" {
		return fmt.Sprintf("%s: %s", result.Error, result.ErrorDescription)
	}
	return result.Error
}

// mapTokenError converts an oauth2 failure into a FlowError, pulling the
// OAuth error body out of protocol-level rejections so the provider's reason
// survives into the message.
func mapTokenError(op string, err error) *FlowError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		detail := gjson.GetBytes(retrieveErr.Body, "error").String()
		if description := gjson.GetBytes(retrieveErr.Body, "error_description").String(); description != "" {
			detail = fmt.Sprintf("%s: %s", detail, description)
		}
		if detail == "" && retrieveErr.Response != nil {
			detail = fmt.Sprintf("token endpoint returned status %d", retrieveErr.Response.StatusCode)
		}
		if detail == "" {
			detail = "token endpoint rejected the request"
		}
		return newFlowError(KindTokenExchange, fmt.Sprintf("%s rejected: %s", op, detail), err)
	}
	return newFlowError(KindTokenExchange, fmt.Sprintf("%s request failed", op), err)
}

// credentialsFromToken converts an oauth2 token into immutable credentials,
// translating the relative expiry into an absolute timestamp. A token without
// an expiry yields never-expiring credentials.
func credentialsFromToken(token *oauth2.Token) *Credentials {
	credentials := &Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry
		credentials.ExpiresAt = &expiresAt
	}
	return credentials
}
