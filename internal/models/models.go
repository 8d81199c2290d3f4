// package models defines the persisted credential record and the CLI result envelope
package models

import (
	"strings"
	"time"
)

// Leeway is subtracted from an access token's expiry before it is trusted.
const Leeway = 45 * time.Second

// AuthRecord is the persisted OAuth credential record, one per installation.
//
// ClientID is supplied by the user and never generated. Empty strings stand in for absent optional fields.
type AuthRecord struct {
	ClientID     string `json:"client_id"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresAt    int64  `json:"expires_at"` // Unix seconds
	UpdatedAt    int64  `json:"updated_at"` // Unix seconds of the last token write
}

// HasClientID reports whether a non-blank client id is configured.
func (r AuthRecord) HasClientID() bool {
	return strings.TrimSpace(r.ClientID) != ""
}

// HasRefreshToken reports whether a non-blank refresh token is stored.
func (r AuthRecord) HasRefreshToken() bool {
	return strings.TrimSpace(r.RefreshToken) != ""
}

// Usable reports whether the access token can be used at now, i.e. now + [Leeway] < expires_at.
func (r AuthRecord) Usable(now time.Time) bool {
	if strings.TrimSpace(r.AccessToken) == "" {
		return false
	}
	return r.ExpiresAt > now.Add(Leeway).Unix()
}

// ClearTokens drops every token field and keeps the client id.
func (r AuthRecord) ClearTokens() AuthRecord {
	return AuthRecord{ClientID: r.ClientID}
}

// Result is the single JSON object printed for every CLI invocation.
type Result struct {
	OK         bool   `json:"ok"`
	Authorized bool   `json:"authorized"`
	Liked      bool   `json:"liked"`
	Message    string `json:"message"`
	AuthFile   string `json:"authFile,omitempty"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
}

// Failure builds a Result for an operation that could not complete.
func Failure(message string) Result {
	return Result{Message: message}
}
