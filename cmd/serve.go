package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/questsync/internal/server"
	"github.com/desertthunder/questsync/internal/services"
	"github.com/desertthunder/questsync/internal/tasks"
)

// newTracker builds a tracker over the configured bridge.
func (r *Runner) newTracker(ctx context.Context, interval time.Duration) (*tasks.Tracker, error) {
	player, err := r.requireSpotify(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = r.config.Tracker.Interval()
	}
	return tasks.NewTracker(engine, player, interval, r.logger), nil
}

// logProgress drains tracker updates into the logger until progress is closed.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) {
	for update := range progress {
		switch update.Phase {
		case tasks.RecordTrack:
			r.logger.Info(update.Message)
		default:
			r.logger.Debug(update.Message, "phase", update.Phase.String())
		}
	}
}

// TrackerRun polls Spotify in the foreground until interrupted.
func (r *Runner) TrackerRun(ctx context.Context, cmd *cli.Command) error {
	tracker, err := r.newTracker(ctx, cmd.Duration("interval"))
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	go r.logProgress(progress)
	defer close(progress)

	r.writePlain("→ Tracking Spotify into the syncing quest (ctrl+c to stop)\n")
	if err := tracker.Run(ctx, progress); err != nil {
		return err
	}
	return r.writePlain("✓ Tracker stopped after %d polls\n", tracker.Polls())
}

// Serve runs the HTTP API until interrupted. With --track the tracker runs in the same process.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	host, port := r.config.Server.Host, r.config.Server.Port
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	opts := server.APIOpts{
		Player:         r.spotify,
		Logger:         r.logger,
		AllowedOrigins: r.config.Server.AllowedOrigins,
		OnToken: func(token *oauth2.Token) {
			if err := r.saveTokens(token); err != nil {
				r.logger.Warn("failed to persist spotify token", "error", err)
			}
		},
	}
	if auth, ok := r.spotify.(services.OAuthService); ok {
		opts.Auth = auth
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           server.NewAPI(engine, opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var tracker *tasks.Tracker
	if cmd.Bool("track") {
		if tracker, err = r.newTracker(ctx, 0); err != nil {
			return fmt.Errorf("cannot start tracker: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.logger.Info("serving questsync API", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if tracker != nil {
		g.Go(func() error {
			progress := make(chan tasks.ProgressUpdate, 16)
			go r.logProgress(progress)
			defer close(progress)
			return tracker.Run(ctx, progress)
		})
	}

	return g.Wait()
}
