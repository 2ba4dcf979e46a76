package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/backends/beepdeck"
	"github.com/famish99/deckd/internal/cache"
	"github.com/famish99/deckd/internal/config"
	"github.com/famish99/deckd/internal/decoder"
	"github.com/famish99/deckd/internal/engine"
	"github.com/famish99/deckd/internal/logging"
	"github.com/famish99/deckd/internal/player"
)

// stack is the audio output, decks and player shared by the subcommands
type stack struct {
	cache  *cache.DiskCache
	output *beepdeck.Output
	player *player.Player
	logger *log.Logger
}

// openCache opens the decoded-audio cache the config points at
func openCache(cfg *config.Config, logger *log.Logger) (*cache.DiskCache, error) {
	maxBytes := int64(cfg.Cache.MaxSizeGB) << 30
	dc, err := cache.NewDiskCache(cfg.Cache.Directory, maxBytes, logging.With(logger, "component", "cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return dc, nil
}

func newStack(cfg *config.Config, logger *log.Logger) (*stack, error) {
	if !beepdeck.AudioAvailable {
		return nil, errors.New("this build has no audio output (rebuild with cgo)")
	}

	dc, err := openCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	decode := cache.FFmpegDecoder(cfg.Playback.SampleRate)
	files := beepdeck.Source{
		Resolve: func(ctx context.Context, url string) (string, error) {
			return dc.EnsureDecoded(ctx, url, decode)
		},
		Invalidate: dc.Invalidate,
	}

	out, err := beepdeck.NewOutput(cfg.Playback.SampleRate, files, logging.With(logger, "component", "audio"))
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	a, err := out.NewDeck("A")
	if err != nil {
		out.Close()
		return nil, err
	}
	b, err := out.NewDeck("B")
	if err != nil {
		a.Close()
		out.Close()
		return nil, err
	}

	p, err := player.New(a, b, player.Options{
		Engine: engine.Options{
			Timings:     cfg.EngineTimings(),
			Placeholder: cfg.Playback.SilenceSource,
			Logger:      logging.With(logger, "component", "engine"),
		},
		Crossfade:       cfg.CrossfadeDuration(),
		SkipCrossfade:   cfg.SkipCrossfadeDuration(),
		MonitorInterval: cfg.Timings.MonitorInterval,
		Cache:           dc,
		Decode:          decode,
		Tags:            decoder.ProbeMetadata,
		Logger:          logging.With(logger, "component", "player"),
	})
	if err != nil {
		a.Close()
		b.Close()
		out.Close()
		return nil, err
	}

	// Native output has no autoplay gate, but priming parks both decks on
	// the placeholder before the first crossfade needs them.
	p.Engine().Prime()
	p.Start()

	return &stack{cache: dc, output: out, player: p, logger: logger}, nil
}

// apply pushes the live-reloadable settings to the player
func (s *stack) apply(cfg *config.Config) {
	if err := s.player.SetCrossfade(cfg.CrossfadeDuration()); err != nil {
		s.logger.Warn("crossfade not applied", "err", err)
	}
	if err := s.player.SetSkipCrossfade(cfg.SkipCrossfadeDuration()); err != nil {
		s.logger.Warn("skip crossfade not applied", "err", err)
	}
	if cfg.Log.Level != "" && !logging.SetLevel(s.logger, cfg.Log.Level) {
		s.logger.Warn("unknown log level", "level", cfg.Log.Level)
	}
}

func (s *stack) Close() {
	if err := s.player.Close(); err != nil {
		s.logger.Warn("player close failed", "err", err)
	}
	s.output.Close()
}

// waitPlaying blocks until the engine reports playback or ctx ends
func waitPlaying(ctx context.Context, eng *engine.Engine) error {
	started := make(chan struct{}, 1)
	sub := eng.WatchPlaying(func(playing bool) {
		if playing {
			select {
			case started <- struct{}{}:
			default:
			}
		}
	})
	defer sub.Close()

	if eng.Playing() {
		return nil
	}
	select {
	case <-started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
