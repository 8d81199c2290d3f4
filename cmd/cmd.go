// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func trackIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "track-id",
		Aliases: []string{"t"},
		Usage:   "22 character Spotify track id",
	}
}

// loginCommand runs the browser-based PKCE login
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Authorize with Spotify in the browser and store the tokens",
		Action: r.action(r.Login),
	}
}

// likeStatusCommand reports whether a track is saved
func likeStatusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "like-status",
		Usage:  "Report whether a track is in Liked Songs",
		Flags:  []cli.Flag{trackIDFlag()},
		Action: r.action(r.LikeStatus),
	}
}

// toggleLikeCommand flips the saved state of a track
func toggleLikeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "toggle-like",
		Usage:  "Save or remove a track from Liked Songs",
		Flags:  []cli.Flag{trackIDFlag()},
		Action: r.action(r.ToggleLike),
	}
}

// statusCommand reports the stored session without network access
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the stored session state (offline)",
		Action: r.action(r.Status),
	}
}

// logoutCommand drops stored tokens
func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget stored tokens, keeping the client id",
		Action: r.action(r.Logout),
	}
}

// configureCommand stores the Spotify app client id
func configureCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "configure",
		Usage: "Store the Spotify app client id (prompts when omitted)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "client-id",
				Usage: "Client id of your Spotify developer app",
			},
		},
		Action: r.action(r.Configure),
	}
}
