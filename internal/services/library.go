package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotlike/internal/models"
	"github.com/desertthunder/spotlike/internal/shared"
)

const (
	containsPath = "/me/tracks/contains"
	tracksPath   = "/me/tracks"
)

// Result messages.
const (
	MsgStatusRead     = "liked state read"
	MsgSaved          = "saved to liked songs"
	MsgRemoved        = "removed from liked songs"
	MsgNotAuthorized  = "Spotify API session not authorized"
	MsgStatusFailed   = "could not read liked state"
	MsgToggleFailed   = "could not update liked songs"
	MsgInvalidTrackID = "invalid track id"
)

var trackIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)

// ValidateTrackID trims id and checks it is a 22 character base62 Spotify track id.
func ValidateTrackID(id string) (string, error) {
	clean := strings.TrimSpace(id)
	if !trackIDPattern.MatchString(clean) {
		return "", fmt.Errorf("%w: %s %q", shared.ErrValidation, MsgInvalidTrackID, id)
	}
	return clean, nil
}

// Library implements [LibraryService] over a [Caller].
type Library struct {
	caller Caller
	logger *log.Logger
}

// NewLibrary creates a Library issuing calls through caller.
func NewLibrary(caller Caller, logger *log.Logger) *Library {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Library{caller: caller, logger: logger}
}

// LikeStatus reports whether trackID is in the user's saved tracks.
//
// 401 and 403 are reported as not authorized, never as errors. Other failures carry the provider's error message.
func (l *Library) LikeStatus(ctx context.Context, trackID string) (models.Result, error) {
	id, err := ValidateTrackID(trackID)
	if err != nil {
		return models.Result{}, err
	}

	resp, authorized, err := l.caller.CallWithRefresh(ctx, http.MethodGet, containsPath, url.Values{"ids": {id}})
	if err != nil {
		return models.Result{}, err
	}

	if resp.StatusCode == http.StatusOK {
		if arr := resp.JSON(); arr.IsArray() && arr.Get("0").Exists() {
			first := arr.Get("0")
			return models.Result{OK: true, Authorized: true, Liked: first.Bool(), Message: MsgStatusRead}, nil
		}
	}

	if notAuthorized(resp.StatusCode) {
		return models.Result{Message: MsgNotAuthorized}, nil
	}

	l.logger.Warn("like status failed", "track", id, "status", resp.StatusCode)
	return models.Result{Authorized: authorized, Message: resp.ErrorMessage(MsgStatusFailed)}, nil
}

// ToggleLike reads the current state of trackID and flips it.
//
// No mutation is attempted when the session is not authorized. A status that could not be read counts as not liked.
func (l *Library) ToggleLike(ctx context.Context, trackID string) (models.Result, error) {
	id, err := ValidateTrackID(trackID)
	if err != nil {
		return models.Result{}, err
	}

	current, err := l.LikeStatus(ctx, id)
	if err != nil {
		return models.Result{}, err
	}
	if !current.Authorized {
		return models.Result{Message: orDefault(current.Message, MsgNotAuthorized)}, nil
	}
	was := current.Liked
	method := http.MethodPut
	if was {
		method = http.MethodDelete
	}

	resp, authorized, err := l.caller.CallWithRefresh(ctx, method, tracksPath, url.Values{"ids": {id}})
	if err != nil {
		return models.Result{}, err
	}

	switch {
	case toggled(resp.StatusCode):
		msg := MsgSaved
		if was {
			msg = MsgRemoved
		}
		l.logger.Info("liked state changed", "track", id, "liked", !was)
		return models.Result{OK: true, Authorized: true, Liked: !was, Message: msg}, nil
	case notAuthorized(resp.StatusCode):
		return models.Result{Liked: was, Message: MsgNotAuthorized}, nil
	default:
		l.logger.Warn("toggle like failed", "track", id, "status", resp.StatusCode)
		return models.Result{Authorized: authorized, Liked: was, Message: resp.ErrorMessage(MsgToggleFailed)}, nil
	}
}

func notAuthorized(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func toggled(status int) bool {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return true
	}
	return false
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// compile-time checks
var (
	_ Caller         = (*SpotifyClient)(nil)
	_ LibraryService = (*Library)(nil)
)
