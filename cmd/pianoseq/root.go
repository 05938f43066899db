package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cbegin/pianoseq-go/internal/config"
)

var (
	configPath string
	logLevel   string

	cfg    = config.Default()
	logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "pianoseq"})
)

var rootCmd = &cobra.Command{
	Use:           "pianoseq",
	Short:         "Play two-hand piano notation",
	Long:          `pianoseq reads a plain-text piano sequence (L: and R: lines of notes, chords and rests) and plays it through the built-in synthesizer or a MIDI port.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if configPath != "" {
				return fmt.Errorf("config %s not found", configPath)
			}
			c = config.Default()
		case err != nil:
			return err
		}
		level := c.LogLevel
		if cmd.Root().PersistentFlags().Changed("log-level") || level == "" {
			level = logLevel
		}
		lvl, err := log.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("log level %q: %w", level, err)
		}
		logger.SetLevel(lvl)
		log.SetDefault(logger)
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is pianoseq/config.json in the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
