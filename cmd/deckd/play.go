package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/famish99/deckd/internal/playlist"
)

func playCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "play <url>...",
		Short: "Play files or URLs in order, crossfading between them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, urls []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			st, err := newStack(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st.player.AddURLs(urls)
			logger.Info("starting playback", "tracks", len(urls))
			if err := st.player.Play(); err != nil {
				return fmt.Errorf("failed to start playback: %w", err)
			}

			<-ctx.Done()
			logger.Info("shutting down")
			st.player.Stop()
			return nil
		},
	}
}

func crossfadeCmd(g *globals) *cobra.Command {
	var (
		seconds float64
		after   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "crossfade <a> <b>",
		Short: "Play a, crossfade to b and report the outcome",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			st, err := newStack(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCrossfade(ctx, st, args[0], args[1], seconds, after, cfg.Timings.ReadyTimeout, logger)
		},
	}
	cmd.Flags().Float64Var(&seconds, "seconds", 6, "Crossfade length in seconds")
	cmd.Flags().DurationVar(&after, "after", 5*time.Second, "How long to play a before fading")
	return cmd
}

func runCrossfade(ctx context.Context, st *stack, a, b string, seconds float64, after, readyTimeout time.Duration, logger *log.Logger) error {
	p := st.player
	eng := p.Engine()
	// Only the manual fade below may move to b
	if err := p.SetCrossfade(0); err != nil {
		return err
	}
	if err := p.SetSkipCrossfade(time.Duration(seconds * float64(time.Second))); err != nil {
		return err
	}

	songs := p.AddURLs([]string{a, b})
	if err := p.Play(); err != nil {
		return err
	}
	if err := waitPlaying(ctx, eng); err != nil {
		return err
	}
	logger.Info("playing", "url", a)

	select {
	case <-time.After(after):
	case <-ctx.Done():
		return nil
	}

	done := make(chan playlist.Song, 1)
	sub := eng.WatchNowPlaying(func(s playlist.Song) {
		select {
		case done <- s:
		default:
		}
	})
	defer sub.Close()

	logger.Info("crossfading", "to", b, "seconds", seconds)
	if err := p.Next(); err != nil {
		return err
	}

	wait := time.Duration(seconds*float64(time.Second)) + readyTimeout + time.Second
	select {
	case s := <-done:
		if s.ID == songs[1].ID {
			logger.Info("crossfade complete", "now", s.URL)
		} else {
			logger.Warn("crossfade ended on another song", "now", s.URL)
		}
	case <-time.After(wait):
		logger.Warn("crossfade did not complete", "now", eng.NowPlaying().URL, "state", eng.CrossfadeState())
	case <-ctx.Done():
		return nil
	}

	select {
	case <-time.After(3 * time.Second):
	case <-ctx.Done():
	}
	p.Stop()
	return nil
}
