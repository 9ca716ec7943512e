package cmd

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"timepilot/config"
)

var (
	cfg    *config.Config
	logger = logrus.New()

	logLevel  string
	logFormat string
)

// RootCmd is the timepilot command
var RootCmd = &cobra.Command{
	Use:   "timepilot",
	Short: "Send MIDI Time Code and Art-Net timecode locked to audio playback",
	Long: `timepilot derives SMPTE-style timecode from a playback clock and sends it as
MIDI Time Code (quarter frames and full-frame SysEx) and Art-Net ArtTimecode.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		return setupLogging(cfg.LogLevel, cfg.LogFormat)
	},
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json (default $LOG_FORMAT or text)")
}

// Execute runs the root command
func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "parsing log level")
	}
	logger.SetLevel(lvl)

	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("unknown log format %q", format)
	}

	if lvl >= logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}
