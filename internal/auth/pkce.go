// Package auth implements the OAuth2 Authorization Code flow with PKCE
// used to authenticate the CLI against the InferaDB control plane. It covers
// challenge generation, the browser hand-off, the loopback callback listener,
// authorization-code exchange, and the lifecycle of the issued credentials.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// PKCECodes holds a PKCE verifier and its derived challenge pair
// following RFC 7636 for the OAuth 2.0 PKCE extension. The verifier is
// single-use: it is kept local until token exchange and discarded afterwards.
type PKCECodes struct {
	// CodeVerifier is the random secret, never sent to the authorization endpoint.
	CodeVerifier string
	// CodeChallenge is the base64url-encoded SHA-256 digest of the verifier.
	CodeChallenge string
}

// GeneratePKCECodes generates a PKCE code verifier and challenge pair.
// Only the client that initiated the request can later exchange the
// authorization code, because the exchange requires the matching verifier.
//
// Returns:
//   - *PKCECodes: The generated verifier and challenge
//   - error: An error if the system randomness source fails
func GeneratePKCECodes() (*PKCECodes, error) {
	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	return &PKCECodes{
		CodeVerifier:  codeVerifier,
		CodeChallenge: generateCodeChallenge(codeVerifier),
	}, nil
}

// generateCodeVerifier creates a cryptographically random string of
// 128 URL-safe characters, the upper bound of the 43-128 range RFC 7636 allows.
func generateCodeVerifier() (string, error) {
	// 96 random bytes encode to exactly 128 base64 characters.
	bytes := make([]byte, 96)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// generateCodeChallenge derives the S256 challenge from a code verifier.
func generateCodeChallenge(codeVerifier string) string {
	hash := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState generates a cryptographically secure random state parameter
// for the authorization request. The value carries 128 bits of entropy and is
// unique per flow attempt; the callback must echo it back verbatim.
//
// Returns:
//   - string: A hexadecimal encoded random state string
//   - error: An error if the random generation fails, nil otherwise
func GenerateState() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
