package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/famish99/deckd/internal/config"
	"github.com/famish99/deckd/internal/logging"
	"github.com/famish99/deckd/internal/mediasession"
	"github.com/famish99/deckd/internal/mpd"
	"github.com/famish99/deckd/internal/surface/mpris"
)

func daemonCmd(g *globals) *cobra.Command {
	var (
		mpdAddr string
		noMPRIS bool
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Serve the MPD protocol and export an MPRIS media player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			if mpdAddr != "" {
				cfg.MPD.Address = mpdAddr
			}
			if noMPRIS {
				cfg.MPRIS.Enabled = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, g.configPath, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&mpdAddr, "mpd-addr", "", "MPD server listen address (default from config)")
	cmd.Flags().BoolVar(&noMPRIS, "no-mpris", false, "Do not export the MPRIS media player")
	return cmd
}

func runDaemon(ctx context.Context, configPath string, cfg *config.Config, logger *log.Logger) error {
	st, err := newStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	p := st.player

	server := mpd.NewServer(cfg.MPD.Address, p, mpd.Options{
		OutputName: "deckd",
		Logger:     logging.With(logger, "component", "mpd"),
	})
	surfaces := []mediasession.Surface{server}

	if cfg.MPRIS.Enabled {
		bus, err := mpris.New(mpris.Options{
			Name:     cfg.MPRIS.Name,
			Identity: "deckd",
			Logger:   logging.With(logger, "component", "mpris"),
			OpenURI: func(uri string) error {
				songs := p.AddURLs([]string{uri})
				return p.PlayAt(p.GetPlaylist().IndexOf(songs[0].ID))
			},
		})
		if err != nil {
			// Headless hosts have no session bus
			logger.Warn("MPRIS unavailable", "err", err)
		} else {
			defer bus.Close()
			surfaces = append(surfaces, bus)
		}
	}

	session := mediasession.New(p.Engine(), mediasession.Multi(surfaces...), mediasession.Options{
		Timings: cfg.SessionTimings(),
		Logger:  logging.With(logger, "component", "session"),
		OnNext: func() {
			if err := p.Next(); err != nil {
				logger.Debug("next ignored", "err", err)
			}
		},
		OnPrevious: func() {
			if err := p.Previous(); err != nil {
				logger.Debug("previous ignored", "err", err)
			}
		},
	})
	session.Start()
	defer session.Close()

	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	go func() {
		if err := config.Watch(ctx, configPath, logger, st.apply); err != nil {
			logger.Warn("config hot reload disabled", "err", err)
		}
	}()

	logger.Info("deckd running", "mpd", cfg.MPD.Address, "crossfade", cfg.CrossfadeDuration())
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
