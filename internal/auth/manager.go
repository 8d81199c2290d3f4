package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotlike/internal/models"
	"github.com/desertthunder/spotlike/internal/server"
	"github.com/desertthunder/spotlike/internal/shared"
	"golang.org/x/oauth2"
)

const (
	minLifetime     = 30
	defaultLifetime = 3600
)

// ManagerOptions configures a [Manager]. Only Store is required.
type ManagerOptions struct {
	Store      Store
	Config     *shared.Config
	Logger     *log.Logger
	HTTPClient *http.Client           // used for every token endpoint call
	Opener     func(url string) error // opens the authorize URL; defaults to [shared.OpenBrowser]
	Now        func() time.Time
}

// Manager obtains, refreshes, and persists Spotify tokens for the single stored session.
type Manager struct {
	store      Store
	config     *shared.Config
	logger     *log.Logger
	httpClient *http.Client
	opener     func(string) error
	now        func() time.Time
}

// NewManager creates a [Manager], filling unset options with defaults.
func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		store:      opts.Store,
		config:     opts.Config,
		logger:     opts.Logger,
		httpClient: opts.HTTPClient,
		opener:     opts.Opener,
		now:        opts.Now,
	}
	if m.config == nil {
		m.config = shared.DefaultConfig()
	}
	if m.logger == nil {
		m.logger = shared.NewLogger(nil)
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: m.config.HTTPTimeout()}
	}
	if m.opener == nil {
		m.opener = shared.OpenBrowser
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// StorePath returns the location of the auth record.
func (m *Manager) StorePath() string {
	return m.store.Path()
}

// Load reads the stored record.
func (m *Manager) Load() (models.AuthRecord, error) {
	return m.store.Load()
}

// Login runs the interactive authorization code + PKCE flow and persists the resulting tokens.
//
// The listener is bound before the browser is opened. A missing client id fails before any bind or network call.
func (m *Manager) Login(ctx context.Context, rec models.AuthRecord) (models.AuthRecord, error) {
	if !rec.HasClientID() {
		return rec, m.missingClientID()
	}

	logger := shared.WithLogger(m.logger, "attempt", shared.GenerateID())

	pair, err := CreatePair()
	if err != nil {
		return rec, err
	}

	listener := server.NewCallbackListener(server.ListenerOptions{
		Addr:         m.config.CallbackAddr(),
		Path:         m.config.Auth.CallbackPath,
		PollInterval: m.config.PollInterval(),
		Logger:       logger,
	})
	if err := listener.Bind(); err != nil {
		return rec, err
	}
	defer listener.Close()

	oc := m.oauthConfig(strings.TrimSpace(rec.ClientID), listener.RedirectURI())
	authURL := oc.AuthCodeURL(pair.State, oauth2.S256ChallengeOption(pair.Verifier))

	logger.Info("waiting for Spotify authorization", "redirect_uri", listener.RedirectURI())
	if err := m.opener(authURL); err != nil {
		logger.Warn("could not open browser, open the URL manually", "url", authURL, "error", err)
	}

	code, err := listener.Await(ctx, pair.State, m.config.CallbackTimeout())
	if err != nil {
		return rec, err
	}

	tok, err := oc.Exchange(m.tokenContext(ctx), code, oauth2.VerifierOption(pair.Verifier))
	if err != nil {
		return rec, tokenError("authorization_code", err)
	}

	updated, err := m.mergeToken(rec, tok, "authorization_code")
	if err != nil {
		return rec, err
	}
	if err := m.store.Save(updated); err != nil {
		return rec, err
	}

	logger.Info("login complete", "expires_at", updated.ExpiresAt)
	return updated, nil
}

// AccessToken returns a usable access token, refreshing when the cached one is within [models.Leeway] of expiry.
//
// A cached token never causes network traffic.
func (m *Manager) AccessToken(ctx context.Context, rec models.AuthRecord) (string, models.AuthRecord, error) {
	if rec.Usable(m.now()) {
		return rec.AccessToken, rec, nil
	}
	if !rec.HasRefreshToken() {
		return "", rec, fmt.Errorf("%w: run login", shared.ErrNoSession)
	}

	updated, err := m.Refresh(ctx, rec)
	if err != nil {
		return "", rec, err
	}
	return updated.AccessToken, updated, nil
}

// Refresh performs the refresh_token grant and persists the merged record.
func (m *Manager) Refresh(ctx context.Context, rec models.AuthRecord) (models.AuthRecord, error) {
	if !rec.HasClientID() {
		return rec, m.missingClientID()
	}
	if !rec.HasRefreshToken() {
		return rec, fmt.Errorf("%w: no refresh token stored, run login", shared.ErrNoSession)
	}

	oc := m.oauthConfig(strings.TrimSpace(rec.ClientID), "")
	src := oc.TokenSource(m.tokenContext(ctx), &oauth2.Token{RefreshToken: strings.TrimSpace(rec.RefreshToken)})
	tok, err := src.Token()
	if err != nil {
		m.logger.Warn("token refresh failed", "error", err)
		return rec, tokenError("refresh_token", err)
	}

	updated, err := m.mergeToken(rec, tok, "refresh_token")
	if err != nil {
		return rec, err
	}
	if err := m.store.Save(updated); err != nil {
		return rec, err
	}

	m.logger.Debug("access token refreshed", "expires_at", updated.ExpiresAt)
	return updated, nil
}

// Logout drops the stored tokens and keeps the client id.
func (m *Manager) Logout(rec models.AuthRecord) (models.AuthRecord, error) {
	updated := rec.ClearTokens()
	updated.UpdatedAt = m.now().Unix()
	if err := m.store.Save(updated); err != nil {
		return rec, err
	}
	m.logger.Info("session cleared", "path", m.store.Path())
	return updated, nil
}

// Configure stores clientID. Switching to a different client id also drops tokens issued to the old one.
func (m *Manager) Configure(rec models.AuthRecord, clientID string) (models.AuthRecord, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return rec, fmt.Errorf("%w: client id must not be empty", shared.ErrValidation)
	}

	updated := rec
	if rec.HasClientID() && strings.TrimSpace(rec.ClientID) != clientID {
		updated = rec.ClearTokens()
	}
	updated.ClientID = clientID
	updated.UpdatedAt = m.now().Unix()

	if err := m.store.Save(updated); err != nil {
		return rec, err
	}
	m.logger.Info("client id saved", "path", m.store.Path())
	return updated, nil
}

func (m *Manager) missingClientID() error {
	return fmt.Errorf("%w: client_id missing in %s, run configure or add it to the file", shared.ErrConfig, m.store.Path())
}

func (m *Manager) oauthConfig(clientID, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.config.Spotify.AuthorizeURL,
			TokenURL:  m.config.Spotify.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      m.config.Auth.Scopes,
	}
}

func (m *Manager) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// mergeToken folds a token response into rec.
//
// The access token is always replaced. Refresh token and scope are replaced only when the response carries them.
func (m *Manager) mergeToken(rec models.AuthRecord, tok *oauth2.Token, grant string) (models.AuthRecord, error) {
	if tok == nil || strings.TrimSpace(tok.AccessToken) == "" {
		return rec, &shared.TokenExchangeError{Grant: grant, Description: "response missing access_token"}
	}

	now := m.now()
	updated := rec
	updated.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		updated.Scope = scope
	}
	updated.TokenType = tok.TokenType
	if updated.TokenType == "" {
		updated.TokenType = "Bearer"
	}
	updated.ExpiresAt = now.Unix() + max(minLifetime, lifetime(tok, now))
	updated.UpdatedAt = now.Unix()
	return updated, nil
}

// lifetime returns the token's expires_in in seconds, defaulting to one hour when the provider omits it.
//
// The raw response value is read first since [oauth2.Token] treats an explicit 0 like a missing field.
func lifetime(tok *oauth2.Token, now time.Time) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		if n, err := v.Float64(); err == nil {
			return int64(n)
		}
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int64(n)
		}
	}
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	if !tok.Expiry.IsZero() {
		return int64(tok.Expiry.Sub(now).Round(time.Second) / time.Second)
	}
	return defaultLifetime
}

// tokenError maps a token endpoint failure: provider rejections become [shared.TokenExchangeError],
// transport failures [shared.ErrNetwork].
func tokenError(grant string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		te := &shared.TokenExchangeError{
			Grant:       grant,
			Code:        re.ErrorCode,
			Description: re.ErrorDescription,
			Cause:       err,
		}
		if re.Response != nil {
			te.Status = re.Response.StatusCode
		}
		if te.Code == "" && te.Description == "" {
			te.Description = strings.TrimSpace(string(re.Body))
		}
		return te
	}

	var ue *url.Error
	var ne net.Error
	if errors.As(err, &ue) || errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: token endpoint unreachable: %v", shared.ErrNetwork, err)
	}

	return &shared.TokenExchangeError{Grant: grant, Cause: err}
}
