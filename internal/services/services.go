// package services implements authenticated calls to the Spotify Web API and the saved-tracks operations built on them
package services

import (
	"context"
	"net/url"

	"github.com/desertthunder/spotlike/internal/models"
)

// TokenProvider supplies and renews access tokens for the stored session.
//
// Implemented by [auth.Manager].
type TokenProvider interface {
	// AccessToken returns a usable token for rec, refreshing it when close to expiry.
	AccessToken(ctx context.Context, rec models.AuthRecord) (string, models.AuthRecord, error)

	// Refresh performs the refresh grant unconditionally.
	Refresh(ctx context.Context, rec models.AuthRecord) (models.AuthRecord, error)
}

// Caller issues API calls that are retried once after a transparent refresh.
type Caller interface {
	// CallWithRefresh returns the final response and whether the session is still considered authorized.
	CallWithRefresh(ctx context.Context, method, path string, params url.Values) (*APIResponse, bool, error)
}

// LibraryService reads and flips the saved state of a track.
type LibraryService interface {
	LikeStatus(ctx context.Context, trackID string) (models.Result, error)
	ToggleLike(ctx context.Context, trackID string) (models.Result, error)
}
