// Spotify Web API client
//
// Reference: https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotlike/internal/models"
	"github.com/desertthunder/spotlike/internal/shared"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// APIResponse is the status and raw body of a Web API call.
type APIResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	IsJSON     bool
}

// JSON returns the body as a [gjson.Result]; empty when the body is not JSON.
func (r *APIResponse) JSON() gjson.Result {
	if r == nil || !r.IsJSON {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

// ErrorMessage returns error.message from the provider's error envelope, or fallback.
func (r *APIResponse) ErrorMessage(fallback string) string {
	if msg := r.JSON().Get("error.message"); msg.Type == gjson.String && msg.String() != "" {
		return msg.String()
	}
	return fallback
}

// ClientOptions configures a [SpotifyClient].
type ClientOptions struct {
	Tokens     TokenProvider
	Record     models.AuthRecord
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
}

// SpotifyClient issues Bearer-authenticated Web API calls for the stored session.
//
// Outgoing requests pass through a token-bucket limiter.
type SpotifyClient struct {
	tokens     TokenProvider
	record     models.AuthRecord
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyClient creates a client bound to opts.Record.
func NewSpotifyClient(opts ClientOptions) *SpotifyClient {
	cfg := opts.Config
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout()}
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if cfg.HTTP.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.HTTP.RequestsPerSecond)
	}
	burst := max(cfg.HTTP.Burst, 1)

	return &SpotifyClient{
		tokens:     opts.Tokens,
		record:     opts.Record,
		baseURL:    strings.TrimRight(cfg.Spotify.APIBaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// Record returns the session record as of the last token operation.
func (c *SpotifyClient) Record() models.AuthRecord {
	return c.record
}

// CallWithRefresh issues method path?params with a valid token.
//
// A 401 with a refresh token stored triggers exactly one refresh and one retry; the retry's response is returned
// with authorized=true even when it is another 401. A 401 without a refresh token is returned with authorized=false.
func (c *SpotifyClient) CallWithRefresh(ctx context.Context, method, path string, params url.Values) (*APIResponse, bool, error) {
	token, rec, err := c.tokens.AccessToken(ctx, c.record)
	if err != nil {
		return nil, false, err
	}
	c.record = rec

	resp, err := c.do(ctx, method, path, params, token)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, true, nil
	}

	if !c.record.HasRefreshToken() {
		return resp, false, nil
	}

	c.logger.Debug("access token rejected, refreshing once", "method", method, "path", path)
	rec, err = c.tokens.Refresh(ctx, c.record)
	if err != nil {
		return nil, false, err
	}
	c.record = rec

	retry, err := c.do(ctx, method, path, params, rec.AccessToken)
	if err != nil {
		return nil, false, err
	}
	return retry, true, nil
}

// do performs a single request. Non-2xx statuses are returned as responses, not errors.
func (c *SpotifyClient) do(ctx context.Context, method, path string, params url.Values, token string) (*APIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}

	apiURL := c.baseURL + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request to Spotify API failed: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrNetwork, err)
	}

	c.logger.Debug("spotify api call", "method", method, "path", path, "status", resp.StatusCode)

	trimmed := strings.TrimSpace(string(body))
	return &APIResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		IsJSON:     trimmed != "" && gjson.Valid(trimmed),
	}, nil
}
