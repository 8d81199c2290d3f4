package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	verifierBytes = 64
	stateBytes    = 24
)

// PKCEPair holds the login-scoped PKCE secrets and the anti-forgery state token.
type PKCEPair struct {
	Verifier  string
	Challenge string
	State     string
}

// CreatePair generates a verifier from 64 random bytes, its S256 challenge and an independent state token.
func CreatePair() (PKCEPair, error) {
	verifier, err := randomToken(verifierBytes)
	if err != nil {
		return PKCEPair{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	state, err := randomToken(stateBytes)
	if err != nil {
		return PKCEPair{}, fmt.Errorf("failed to generate state: %w", err)
	}

	return PKCEPair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
		State:     state,
	}, nil
}

// Challenge returns base64url-nopad(SHA-256(verifier)).
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
