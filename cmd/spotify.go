package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/questsync/internal/server"
	"github.com/desertthunder/questsync/internal/services"
	"github.com/desertthunder/questsync/internal/shared"
)

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	oauthSrv, ok := r.spotify.(services.OAuthService)
	if !ok {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	token, err := r.doOAuth(ctx, oauthSrv, "authorization")
	if err != nil {
		return err
	}

	if err := oauthSrv.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}
	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("Mark a quest with `questsync quest sync <id>` and run `questsync tracker run`.\n")
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	httpServer := &http.Server{
		Addr:              r.config.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}

// SpotifyStatus reports whether the bridge is authenticated and for which account.
func (r *Runner) SpotifyStatus(ctx context.Context, cmd *cli.Command) error {
	status := struct {
		Configured    bool               `json:"configured"`
		Authenticated bool               `json:"authenticated"`
		User          *services.UserInfo `json:"user"`
	}{}

	if r.spotify != nil {
		status.Configured = true
		status.Authenticated = r.spotify.IsAuthenticated(ctx)
		if status.Authenticated {
			status.User = r.spotify.UserInfo(ctx)
		}
	}

	return r.emit(cmd, status, func() error {
		switch {
		case !status.Configured:
			return r.writePlain("✗ Spotify is not configured (set credentials.spotify in %s)\n", r.configPath)
		case !status.Authenticated:
			return r.writePlain("✗ Not authenticated. Run `questsync spotify auth`.\n")
		}
		r.writePlain("✓ Authenticated\n")
		if u := status.User; u != nil {
			r.writePlain("  User: %s (%s)\n", u.DisplayName, u.ID)
			if u.Premium {
				r.writePlain("  Plan: premium\n")
			} else {
				r.writePlain("  Plan: free (playback controls need premium)\n")
			}
		}
		return nil
	})
}

// SpotifyCurrent prints the track playing now.
func (r *Runner) SpotifyCurrent(ctx context.Context, cmd *cli.Command) error {
	player, err := r.requireSpotify(ctx)
	if err != nil {
		return err
	}

	track := player.CurrentTrack(ctx)
	return r.emit(cmd, map[string]any{"playing": track != nil && track.IsPlaying, "track": track}, func() error {
		if track == nil {
			return r.writePlain("Nothing playing\n")
		}
		state := "▶"
		if !track.IsPlaying {
			state = "⏸"
		}
		r.writePlain("%s %s - %s\n", state, track.Artist, track.TrackName)
		if track.Album != "" {
			r.writePlain("  Album: %s\n", track.Album)
		}
		return r.writePlain("  %s / %s\n", shared.FormatDuration(track.ProgressMs), shared.FormatDuration(track.DurationMs))
	})
}

// SpotifyControl returns the action for a transport command (play, pause, next, previous).
func (r *Runner) SpotifyControl(action string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		player, err := r.requireSpotify(ctx)
		if err != nil {
			return err
		}

		var ok bool
		switch action {
		case "play":
			ok = player.Play(ctx)
		case "pause":
			ok = player.Pause(ctx)
		case "next":
			ok = player.Next(ctx)
		case "previous":
			ok = player.Previous(ctx)
		default:
			return fmt.Errorf("%w: unknown action %q", shared.ErrInvalidArgument, action)
		}

		if !ok {
			return fmt.Errorf("%w: %s failed (is a device active?)", shared.ErrAPIRequest, action)
		}
		return r.writePlain("✓ %s\n", action)
	}
}

// SpotifyVolume sets the volume, clamped to 0-100.
func (r *Runner) SpotifyVolume(ctx context.Context, cmd *cli.Command) error {
	raw, err := requireArg(cmd, "percent")
	if err != nil {
		return err
	}
	percent, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: volume %q is not a number", shared.ErrInvalidArgument, raw)
	}
	percent = max(0, min(100, percent))

	player, err := r.requireSpotify(ctx)
	if err != nil {
		return err
	}
	if !player.SetVolume(ctx, percent) {
		return fmt.Errorf("%w: failed to set volume", shared.ErrAPIRequest)
	}
	return r.writePlain("✓ Volume %d%%\n", percent)
}

// SpotifyDevices lists playback devices.
func (r *Runner) SpotifyDevices(ctx context.Context, cmd *cli.Command) error {
	player, err := r.requireSpotify(ctx)
	if err != nil {
		return err
	}
	svc, ok := player.(*services.SpotifyService)
	if !ok {
		return fmt.Errorf("%w: device listing needs the Spotify bridge", shared.ErrServiceUnavailable)
	}

	devices, err := svc.Devices(ctx)
	if err != nil {
		return err
	}
	return r.emit(cmd, devices, func() error {
		if len(devices) == 0 {
			return r.writePlain("No devices found. Open Spotify on a device first.\n")
		}
		for _, d := range devices {
			active := ""
			if d.IsActive {
				active = " (active)"
			}
			r.writePlain("%s [%s]%s\n  ID: %s\n", d.Name, d.Type, active, d.ID)
		}
		return nil
	})
}

// SpotifyTransfer moves playback to a device.
func (r *Runner) SpotifyTransfer(ctx context.Context, cmd *cli.Command) error {
	deviceID, err := requireArg(cmd, "device-id")
	if err != nil {
		return err
	}
	player, err := r.requireSpotify(ctx)
	if err != nil {
		return err
	}

	if !player.TransferPlayback(ctx, deviceID) {
		return fmt.Errorf("%w: failed to transfer playback to %s", shared.ErrAPIRequest, deviceID)
	}
	return r.writePlain("✓ Playback moved to %s\n", deviceID)
}

// SpotifyLogout drops the token in memory and in the config file.
func (r *Runner) SpotifyLogout(ctx context.Context, cmd *cli.Command) error {
	if auth, ok := r.spotify.(services.OAuthService); ok {
		auth.Logout()
	}
	if err := r.saveTokens(nil); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out of Spotify\n")
}
