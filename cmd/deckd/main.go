package main

import (
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/famish99/deckd/internal/config"
	"github.com/famish99/deckd/internal/logging"
)

// globals are the persistent flags shared by every subcommand
type globals struct {
	configPath string
	logLevel   string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "deckd",
		Short:        "Dual-deck crossfading music daemon",
		Version:      appVersion(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", defaultConfigPath(), "Path to configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")

	root.AddCommand(
		daemonCmd(g),
		playCmd(g),
		crossfadeCmd(g),
		configCmd(g),
		cacheCmd(g),
	)
	return root
}

// load reads the config and builds the logger it asks for
func (g *globals) load() (*config.Config, *log.Logger, error) {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stderr)
	level := cfg.Log.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	if !logging.SetLevel(logger, level) {
		logger.Warn("unknown log level, using info", "level", level)
	}
	log.SetDefault(logger)
	return cfg, logger, nil
}

func defaultConfigPath() string {
	// Check common locations
	locations := []string{
		"./deckd.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "deckd", "config.yaml"),
		"/etc/deckd/config.yaml",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	// Default to first location if none exist
	return locations[0]
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "unknown"
	}
	return bi.Main.Version
}
