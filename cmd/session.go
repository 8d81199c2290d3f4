package main

import (
	"context"
	"strings"

	"github.com/desertthunder/spotlike/internal/models"
	"github.com/desertthunder/spotlike/internal/shared"
	"github.com/urfave/cli/v3"
)

// Session messages.
const (
	MsgLoggedIn        = "Spotify session connected"
	MsgLoggedOut       = "Spotify session cleared"
	MsgConfigured      = "client id saved"
	MsgNoClientID      = "client id not configured"
	MsgSessionActive   = "session active"
	MsgSessionRefresh  = "access token expired, it will be refreshed on the next call"
	MsgSessionNotFound = "not logged in"
)

// Login runs the interactive authorization flow. The result always names the auth file.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) (models.Result, error) {
	res := models.Result{AuthFile: r.manager.StorePath()}

	rec, err := r.manager.Load()
	if err != nil {
		return res, err
	}

	updated, err := r.manager.Login(ctx, rec)
	if err != nil {
		r.hints.Hint(r.hints.Err, "Spotify login failed: %s", shared.Message(err))
		return res, err
	}

	r.hints.Hint(r.hints.OK, "Spotify connected. You can close the browser tab.")
	res.OK = true
	res.Authorized = true
	res.Message = MsgLoggedIn
	res.ExpiresAt = updated.ExpiresAt
	return res, nil
}

// Status reports the stored session without contacting Spotify.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) (models.Result, error) {
	res := models.Result{AuthFile: r.manager.StorePath()}

	rec, err := r.manager.Load()
	if err != nil {
		return res, err
	}

	res.OK = true
	res.ExpiresAt = rec.ExpiresAt
	switch {
	case !rec.HasClientID():
		res.Message = MsgNoClientID
	case rec.Usable(r.now()):
		res.Authorized = true
		res.Message = MsgSessionActive
	case rec.HasRefreshToken():
		res.Authorized = true
		res.Message = MsgSessionRefresh
	default:
		res.Message = MsgSessionNotFound
	}
	return res, nil
}

// Logout clears the stored tokens.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) (models.Result, error) {
	res := models.Result{AuthFile: r.manager.StorePath()}

	rec, err := r.manager.Load()
	if err != nil {
		return res, err
	}
	if _, err := r.manager.Logout(rec); err != nil {
		return res, err
	}

	res.OK = true
	res.Message = MsgLoggedOut
	return res, nil
}

// Configure stores the client id from --client-id, prompting when it is omitted.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (models.Result, error) {
	res := models.Result{AuthFile: r.manager.StorePath()}

	clientID := strings.TrimSpace(cmd.String("client-id"))
	if clientID == "" {
		id, err := r.prompt()
		if err != nil {
			return res, err
		}
		clientID = id
	}

	rec, err := r.manager.Load()
	if err != nil {
		return res, err
	}
	updated, err := r.manager.Configure(rec, clientID)
	if err != nil {
		return res, err
	}

	res.OK = true
	res.Authorized = updated.Usable(r.now()) || updated.HasRefreshToken()
	res.Message = MsgConfigured
	return res, nil
}
