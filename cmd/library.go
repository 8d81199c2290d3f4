package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotlike/internal/models"
	"github.com/desertthunder/spotlike/internal/services"
	"github.com/desertthunder/spotlike/internal/shared"
	"github.com/urfave/cli/v3"
)

// LikeStatus reports whether --track-id is saved.
func (r *Runner) LikeStatus(ctx context.Context, cmd *cli.Command) (models.Result, error) {
	lib, id, err := r.library(cmd)
	if err != nil {
		return models.Result{}, err
	}
	return lib.LikeStatus(ctx, id)
}

// ToggleLike saves or removes --track-id.
func (r *Runner) ToggleLike(ctx context.Context, cmd *cli.Command) (models.Result, error) {
	lib, id, err := r.library(cmd)
	if err != nil {
		return models.Result{}, err
	}
	return lib.ToggleLike(ctx, id)
}

// library validates the track id before touching the store, then binds a client to the stored session.
func (r *Runner) library(cmd *cli.Command) (services.LibraryService, string, error) {
	raw := cmd.String("track-id")
	if raw == "" {
		return nil, "", fmt.Errorf("%w: --track-id", shared.ErrMissingArgument)
	}
	id, err := services.ValidateTrackID(raw)
	if err != nil {
		return nil, "", err
	}

	rec, err := r.manager.Load()
	if err != nil {
		return nil, "", err
	}

	client := services.NewSpotifyClient(services.ClientOptions{
		Tokens:     r.manager,
		Record:     rec,
		Config:     r.config,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})
	return services.NewLibrary(client, r.logger), id, nil
}
