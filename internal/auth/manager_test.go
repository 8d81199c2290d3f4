package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotlike/internal/models"
	"github.com/desertthunder/spotlike/internal/shared"
	tu "github.com/desertthunder/spotlike/internal/testing"
	"golang.org/x/oauth2"
)

// tokenEndpoint is a fake accounts token endpoint that records every form it receives.
type tokenEndpoint struct {
	mu      sync.Mutex
	forms   []url.Values
	respond func(w http.ResponseWriter, form url.Values)
}

func newTokenEndpoint(t *testing.T, respond func(w http.ResponseWriter, form url.Values)) (*tokenEndpoint, *httptest.Server) {
	t.Helper()
	te := &tokenEndpoint{respond: respond}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		te.mu.Lock()
		te.forms = append(te.forms, r.PostForm)
		te.mu.Unlock()
		te.respond(w, r.PostForm)
	}))
	t.Cleanup(srv.Close)
	return te, srv
}

func (te *tokenEndpoint) calls() int {
	te.mu.Lock()
	defer te.mu.Unlock()
	return len(te.forms)
}

func (te *tokenEndpoint) form(i int) url.Values {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.forms[i]
}

func jsonToken(body string) func(w http.ResponseWriter, form url.Values) {
	return func(w http.ResponseWriter, form url.Values) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func testConfig(tokenURL string) *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.Auth.Host = "127.0.0.1"
	cfg.Auth.Port = 0
	cfg.Auth.PollIntervalMS = 10
	cfg.Auth.CallbackTimeoutSeconds = 5
	cfg.Spotify.AuthorizeURL = "https://accounts.example.test/authorize"
	cfg.Spotify.TokenURL = tokenURL
	return cfg
}

func newTestManager(store *tu.MemoryStore, cfg *shared.Config, opener func(string) error) *Manager {
	return NewManager(ManagerOptions{
		Store:  store,
		Config: cfg,
		Logger: log.New(io.Discard),
		Opener: opener,
	})
}

// redirectOpener follows the authorize URL the way a browser would after the user approves.
func redirectOpener(t *testing.T, mutate func(q url.Values)) *tu.RecordingOpener {
	return &tu.RecordingOpener{OnOpen: func(raw string) {
		u, err := url.Parse(raw)
		if err != nil {
			t.Errorf("invalid authorize URL: %v", err)
			return
		}
		q := url.Values{"code": {"the-code"}, "state": {u.Query().Get("state")}}
		if mutate != nil {
			mutate(q)
		}
		resp, err := http.Get(u.Query().Get("redirect_uri") + "?" + q.Encode())
		if err != nil {
			t.Errorf("redirect failed: %v", err)
			return
		}
		resp.Body.Close()
	}}
}

func within(t *testing.T, got, want, slack int64) {
	t.Helper()
	if got < want-slack || got > want+slack {
		t.Errorf("expected %d (+/-%d), got %d", want, slack, got)
	}
}

func TestManagerAccessToken(t *testing.T) {
	t.Run("Cached Token Makes No Request", func(t *testing.T) {
		te, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"new"}`))
		rec := models.AuthRecord{
			ClientID:     "client",
			AccessToken:  "cached",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		}
		store := tu.NewMemoryStore(rec)
		m := newTestManager(store, testConfig(srv.URL), nil)

		token, got, err := m.AccessToken(context.Background(), rec)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "cached" || got != rec {
			t.Errorf("expected cached token and unchanged record, got %s %+v", token, got)
		}
		if te.calls() != 0 {
			t.Errorf("expected no token requests, got %d", te.calls())
		}
		if _, saves := store.Snapshot(); saves != 0 {
			t.Errorf("expected no saves, got %d", saves)
		}
	})

	t.Run("Token Inside Leeway Is Refreshed Once", func(t *testing.T) {
		te, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
		old := time.Now().Add(30 * time.Second).Unix()
		rec := models.AuthRecord{ClientID: "client", AccessToken: "stale", RefreshToken: "refresh", ExpiresAt: old}
		store := tu.NewMemoryStore(rec)
		m := newTestManager(store, testConfig(srv.URL), nil)

		token, got, err := m.AccessToken(context.Background(), rec)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "fresh" {
			t.Errorf("expected fresh token, got %s", token)
		}
		if te.calls() != 1 {
			t.Fatalf("expected exactly one refresh, got %d", te.calls())
		}
		if got.ExpiresAt <= old {
			t.Errorf("expected expires_at to increase past %d, got %d", old, got.ExpiresAt)
		}
		if got.RefreshToken != "refresh" {
			t.Errorf("expected refresh token to be kept, got %s", got.RefreshToken)
		}

		form := te.form(0)
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "refresh" || form.Get("client_id") != "client" {
			t.Errorf("unexpected refresh form: %v", form)
		}

		stored, saves := store.Snapshot()
		if saves != 1 || stored != got {
			t.Errorf("expected merged record to be saved once, got %d saves %+v", saves, stored)
		}
	})

	t.Run("No Refresh Token", func(t *testing.T) {
		te, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"new"}`))
		rec := models.AuthRecord{ClientID: "client", AccessToken: "old", ExpiresAt: 1}
		m := newTestManager(tu.NewMemoryStore(rec), testConfig(srv.URL), nil)

		_, _, err := m.AccessToken(context.Background(), rec)
		if !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected no session error, got %v", err)
		}
		if te.calls() != 0 {
			t.Errorf("expected no token requests, got %d", te.calls())
		}
	})
}

func TestManagerRefresh(t *testing.T) {
	rec := models.AuthRecord{
		ClientID:     "client",
		AccessToken:  "old",
		RefreshToken: "refresh",
		Scope:        "user-library-read",
		ExpiresAt:    1,
	}

	t.Run("Merge Rules", func(t *testing.T) {
		_, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"a2","refresh_token":"r2","scope":"user-library-read user-library-modify","expires_in":10}`))
		m := newTestManager(tu.NewMemoryStore(rec), testConfig(srv.URL), nil)

		got, err := m.Refresh(context.Background(), rec)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.AccessToken != "a2" || got.RefreshToken != "r2" {
			t.Errorf("expected rotated tokens, got %+v", got)
		}
		if got.Scope != "user-library-read user-library-modify" {
			t.Errorf("expected scope update, got %s", got.Scope)
		}
		if got.TokenType != "Bearer" {
			t.Errorf("expected default token type, got %s", got.TokenType)
		}
		within(t, got.ExpiresAt, time.Now().Unix()+30, 5)
		within(t, got.UpdatedAt, time.Now().Unix(), 5)
	})

	t.Run("Missing Expires In Defaults To One Hour", func(t *testing.T) {
		_, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"a2"}`))
		m := newTestManager(tu.NewMemoryStore(rec), testConfig(srv.URL), nil)

		got, err := m.Refresh(context.Background(), rec)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		within(t, got.ExpiresAt, time.Now().Unix()+3600, 5)
		if got.Scope != rec.Scope {
			t.Errorf("expected scope to be kept, got %s", got.Scope)
		}
	})

	t.Run("Zero Expires In Clamps To 30s", func(t *testing.T) {
		_, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"a2","expires_in":0}`))
		m := newTestManager(tu.NewMemoryStore(rec), testConfig(srv.URL), nil)

		got, err := m.Refresh(context.Background(), rec)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		within(t, got.ExpiresAt, time.Now().Unix()+30, 5)
	})

	t.Run("Credentials Are Trimmed", func(t *testing.T) {
		te, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"a2","expires_in":3600}`))
		padded := rec
		padded.ClientID = " client "
		padded.RefreshToken = "refresh\n"
		m := newTestManager(tu.NewMemoryStore(padded), testConfig(srv.URL), nil)

		if _, err := m.Refresh(context.Background(), padded); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		form := te.form(0)
		if form.Get("client_id") != "client" || form.Get("refresh_token") != "refresh" {
			t.Errorf("expected trimmed credentials, got %v", form)
		}
	})

	t.Run("Provider Rejection", func(t *testing.T) {
		_, srv := newTokenEndpoint(t, func(w http.ResponseWriter, form url.Values) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
		})
		store := tu.NewMemoryStore(rec)
		m := newTestManager(store, testConfig(srv.URL), nil)

		_, err := m.Refresh(context.Background(), rec)
		if !errors.Is(err, shared.ErrTokenExchange) {
			t.Fatalf("expected token exchange error, got %v", err)
		}

		var te *shared.TokenExchangeError
		if !errors.As(err, &te) {
			t.Fatalf("expected *TokenExchangeError, got %T", err)
		}
		if te.Status != http.StatusBadRequest || te.Code != "invalid_grant" {
			t.Errorf("unexpected details: %+v", te)
		}
		if !strings.Contains(err.Error(), "Refresh token revoked") {
			t.Errorf("expected provider description in message, got %s", err)
		}
		if _, saves := store.Snapshot(); saves != 0 {
			t.Errorf("expected no saves, got %d", saves)
		}
	})

	t.Run("Empty Access Token", func(t *testing.T) {
		_, srv := newTokenEndpoint(t, jsonToken(`{"access_token":""}`))
		m := newTestManager(tu.NewMemoryStore(rec), testConfig(srv.URL), nil)

		_, err := m.Refresh(context.Background(), rec)
		if !errors.Is(err, shared.ErrTokenExchange) {
			t.Errorf("expected token exchange error, got %v", err)
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		m := NewManager(ManagerOptions{
			Store:  tu.NewMemoryStore(rec),
			Config: testConfig("http://accounts.example.test/api/token"),
			Logger: log.New(io.Discard),
			HTTPClient: &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused")),
			},
		})

		_, err := m.Refresh(context.Background(), rec)
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected network error, got %v", err)
		}
		if errors.Is(err, shared.ErrTokenExchange) {
			t.Error("transport failure must not be reported as a token exchange error")
		}
	})

	t.Run("Missing Client ID", func(t *testing.T) {
		m := newTestManager(tu.NewMemoryStore(models.AuthRecord{}), testConfig("http://unused"), nil)

		_, err := m.Refresh(context.Background(), models.AuthRecord{RefreshToken: "r"})
		if !errors.Is(err, shared.ErrConfig) {
			t.Errorf("expected config error, got %v", err)
		}
	})
}

func TestManagerLogin(t *testing.T) {
	t.Run("Missing Client ID", func(t *testing.T) {
		te, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"a"}`))
		store := tu.NewMemoryStore(models.AuthRecord{})
		opener := &tu.RecordingOpener{}
		m := newTestManager(store, testConfig(srv.URL), opener.Open)

		_, err := m.Login(context.Background(), models.AuthRecord{})
		if !errors.Is(err, shared.ErrConfig) {
			t.Fatalf("expected config error, got %v", err)
		}
		if !strings.Contains(err.Error(), store.Path()) {
			t.Errorf("expected message to name %s, got %s", store.Path(), err)
		}
		if opener.Count() != 0 || te.calls() != 0 {
			t.Error("expected no browser and no network activity")
		}
	})

	t.Run("Success", func(t *testing.T) {
		var (
			mu        sync.Mutex
			challenge string
		)
		te, srv := newTokenEndpoint(t, func(w http.ResponseWriter, form url.Values) {
			mu.Lock()
			want := challenge
			mu.Unlock()
			if Challenge(form.Get("code_verifier")) != want {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant","error_description":"code_verifier mismatch"}`)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"at","refresh_token":"rt","token_type":"Bearer","scope":"user-library-read user-library-modify","expires_in":3600}`)
		})

		store := tu.NewMemoryStore(models.AuthRecord{ClientID: "client"})
		opener := redirectOpener(t, nil)
		inner := opener.OnOpen
		opener.OnOpen = func(raw string) {
			u, _ := url.Parse(raw)
			mu.Lock()
			challenge = u.Query().Get("code_challenge")
			mu.Unlock()
			inner(raw)
		}
		m := newTestManager(store, testConfig(srv.URL), opener.Open)

		got, err := m.Login(context.Background(), models.AuthRecord{ClientID: "client"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.AccessToken != "at" || got.RefreshToken != "rt" || got.ClientID != "client" {
			t.Errorf("unexpected record %+v", got)
		}
		within(t, got.ExpiresAt, time.Now().Unix()+3600, 5)

		if opener.Count() != 1 {
			t.Fatalf("expected one browser open, got %d", opener.Count())
		}
		u, _ := url.Parse(opener.URLs[0])
		q := u.Query()
		for key, want := range map[string]string{
			"response_type":         "code",
			"client_id":             "client",
			"code_challenge_method": "S256",
			"scope":                 "user-library-read user-library-modify",
		} {
			if q.Get(key) != want {
				t.Errorf("expected %s=%s, got %s", key, want, q.Get(key))
			}
		}
		if q.Get("state") == "" || q.Get("code_challenge") == "" {
			t.Errorf("expected state and challenge in %s", u)
		}

		form := te.form(0)
		if form.Get("grant_type") != "authorization_code" || form.Get("code") != "the-code" {
			t.Errorf("unexpected exchange form %v", form)
		}
		if form.Get("redirect_uri") != q.Get("redirect_uri") {
			t.Errorf("expected redirect_uri %s, got %s", q.Get("redirect_uri"), form.Get("redirect_uri"))
		}

		stored, saves := store.Snapshot()
		if saves != 1 || stored != got {
			t.Errorf("expected record saved once, got %d %+v", saves, stored)
		}
	})

	t.Run("State Mismatch Is Rejected", func(t *testing.T) {
		te, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"a"}`))
		store := tu.NewMemoryStore(models.AuthRecord{ClientID: "client"})
		opener := redirectOpener(t, func(q url.Values) { q.Set("state", "forged") })
		m := newTestManager(store, testConfig(srv.URL), opener.Open)

		_, err := m.Login(context.Background(), models.AuthRecord{ClientID: "client"})
		if !errors.Is(err, shared.ErrCallback) {
			t.Fatalf("expected callback error, got %v", err)
		}
		if te.calls() != 0 {
			t.Errorf("expected no token exchange, got %d", te.calls())
		}
		if _, saves := store.Snapshot(); saves != 0 {
			t.Errorf("expected nothing saved, got %d", saves)
		}
	})

	t.Run("User Denied", func(t *testing.T) {
		_, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"a"}`))
		opener := redirectOpener(t, func(q url.Values) {
			q.Del("code")
			q.Set("error", "access_denied")
		})
		m := newTestManager(tu.NewMemoryStore(models.AuthRecord{ClientID: "client"}), testConfig(srv.URL), opener.Open)

		_, err := m.Login(context.Background(), models.AuthRecord{ClientID: "client"})
		if !errors.Is(err, shared.ErrCallback) || !strings.Contains(err.Error(), "access_denied") {
			t.Errorf("expected access_denied callback error, got %v", err)
		}
	})

	t.Run("Browser Failure Still Waits", func(t *testing.T) {
		_, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"at","refresh_token":"rt","expires_in":3600}`))
		opener := redirectOpener(t, nil)
		opener.Err = errors.New("no display")
		m := newTestManager(tu.NewMemoryStore(models.AuthRecord{ClientID: "client"}), testConfig(srv.URL), opener.Open)

		got, err := m.Login(context.Background(), models.AuthRecord{ClientID: "client"})
		if err != nil {
			t.Fatalf("expected login to succeed, got %v", err)
		}
		if got.AccessToken != "at" {
			t.Errorf("expected access token, got %s", got.AccessToken)
		}
	})

	t.Run("Stored Refresh Token Kept When Exchange Omits It", func(t *testing.T) {
		_, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
		rec := models.AuthRecord{ClientID: "client", AccessToken: "old", RefreshToken: "kept", ExpiresAt: 1}
		store := tu.NewMemoryStore(rec)
		m := newTestManager(store, testConfig(srv.URL), redirectOpener(t, nil).Open)

		got, err := m.Login(context.Background(), rec)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.AccessToken != "at" || got.RefreshToken != "kept" {
			t.Errorf("expected new access token and stored refresh token, got %+v", got)
		}
		if stored, _ := store.Snapshot(); stored.RefreshToken != "kept" {
			t.Errorf("expected saved refresh token kept, got %s", stored.RefreshToken)
		}
	})

	t.Run("Client ID Is Trimmed", func(t *testing.T) {
		te, srv := newTokenEndpoint(t, jsonToken(`{"access_token":"at","refresh_token":"rt","expires_in":3600}`))
		rec := models.AuthRecord{ClientID: "  client\n"}
		opener := redirectOpener(t, nil)
		m := newTestManager(tu.NewMemoryStore(rec), testConfig(srv.URL), opener.Open)

		if _, err := m.Login(context.Background(), rec); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		u, _ := url.Parse(opener.URLs[0])
		if got := u.Query().Get("client_id"); got != "client" {
			t.Errorf("expected trimmed client_id in authorize URL, got %q", got)
		}
		if got := te.form(0).Get("client_id"); got != "client" {
			t.Errorf("expected trimmed client_id in exchange, got %q", got)
		}
	})

	t.Run("Exchange Rejected", func(t *testing.T) {
		_, srv := newTokenEndpoint(t, func(w http.ResponseWriter, form url.Values) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Invalid authorization code"}`)
		})
		store := tu.NewMemoryStore(models.AuthRecord{ClientID: "client"})
		m := newTestManager(store, testConfig(srv.URL), redirectOpener(t, nil).Open)

		_, err := m.Login(context.Background(), models.AuthRecord{ClientID: "client"})
		if !errors.Is(err, shared.ErrTokenExchange) {
			t.Fatalf("expected token exchange error, got %v", err)
		}
		if !strings.Contains(err.Error(), "Invalid authorization code") {
			t.Errorf("expected provider description, got %s", err)
		}
		if _, saves := store.Snapshot(); saves != 0 {
			t.Errorf("expected nothing saved, got %d", saves)
		}
	})
}

func TestManagerLogoutAndConfigure(t *testing.T) {
	full := models.AuthRecord{ClientID: "client", AccessToken: "a", RefreshToken: "r", ExpiresAt: 99}

	t.Run("Logout Keeps Client ID", func(t *testing.T) {
		store := tu.NewMemoryStore(full)
		m := newTestManager(store, testConfig("http://unused"), nil)

		got, err := m.Logout(full)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.ClientID != "client" || got.AccessToken != "" || got.RefreshToken != "" || got.ExpiresAt != 0 {
			t.Errorf("unexpected record %+v", got)
		}
		if stored, _ := store.Snapshot(); stored != got {
			t.Errorf("expected cleared record to be saved, got %+v", stored)
		}
	})

	t.Run("Configure", func(t *testing.T) {
		tests := []struct {
			name       string
			start      models.AuthRecord
			clientID   string
			wantTokens bool
			wantErr    error
		}{
			{"first client id", models.AuthRecord{}, " new-client ", false, nil},
			{"same client id keeps tokens", full, "client", true, nil},
			{"new client id drops tokens", full, "other", false, nil},
			{"blank", full, "   ", true, shared.ErrValidation},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := tu.NewMemoryStore(tt.start)
				m := newTestManager(store, testConfig("http://unused"), nil)

				got, err := m.Configure(tt.start, tt.clientID)
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Fatalf("expected %v, got %v", tt.wantErr, err)
					}
					return
				}
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got.ClientID != strings.TrimSpace(tt.clientID) {
					t.Errorf("expected client id %q, got %q", strings.TrimSpace(tt.clientID), got.ClientID)
				}
				if (got.AccessToken != "") != tt.wantTokens {
					t.Errorf("token presence mismatch: %+v", got)
				}
			})
		}
	})
}

func TestLifetime(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name string
		tok  *oauth2.Token
		want int64
	}{
		{"explicit zero", (&oauth2.Token{}).WithExtra(map[string]any{"expires_in": float64(0)}), 0},
		{"numeric", (&oauth2.Token{}).WithExtra(map[string]any{"expires_in": float64(120)}), 120},
		{"string", (&oauth2.Token{}).WithExtra(map[string]any{"expires_in": "90"}), 90},
		{"not a number", (&oauth2.Token{}).WithExtra(map[string]any{"expires_in": "soon"}), defaultLifetime},
		{"expiry only", &oauth2.Token{Expiry: now.Add(10 * time.Minute)}, 600},
		{"missing", &oauth2.Token{}, defaultLifetime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lifetime(tt.tok, now); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
