package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"timepilot/config"
	"timepilot/internal/playback/audio"
	"timepilot/pkg/models"
)

var (
	playOffset string
	playFPS    float64
	playMode   string
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Play an audio file once and send timecode while it plays",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		track, err := audio.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "opening audio")
		}
		defer track.Close()

		eng, err := newEngine(ctx, cfg, track)
		if err != nil {
			return errors.Wrap(err, "creating engine")
		}
		defer eng.Close()

		settings, err := playSettings(eng.store.Current(), cmd)
		if err != nil {
			return err
		}

		updates, cleanup := eng.display.Subscribe(cfg.SSEBuffer)
		defer cleanup()

		if _, err := eng.sched.Start(settings); err != nil {
			return errors.Wrap(err, "starting session")
		}

		out := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(out)
				return nil
			case <-track.Done():
				fmt.Fprintln(out)
				return nil
			case tc, ok := <-updates:
				if !ok {
					return nil
				}
				fmt.Fprintf(out, "\r%s", tc)
			}
		}
	},
}

func init() {
	flags := playCmd.Flags()
	flags.StringVar(&playOffset, "offset", "", "start timecode HH:MM:SS:FF (default from settings)")
	flags.Float64Var(&playFPS, "fps", 0, "frame rate: 24, 25, 29.97 or 30 (default from settings)")
	flags.StringVar(&playMode, "mtc-mode", "", "quarter-frame cadence: burst or quarter (default from settings)")
	RootCmd.AddCommand(playCmd)
}

// playSettings applies the command line overrides to the stored settings
func playSettings(s config.Settings, cmd *cobra.Command) (config.Settings, error) {
	flags := cmd.Flags()
	if flags.Changed("fps") {
		s.FrameRate = models.FrameRate(playFPS)
	}
	if flags.Changed("mtc-mode") {
		s.MTCMode = config.MTCMode(playMode)
	}
	if flags.Changed("offset") {
		offset, err := models.ParseOffset(playOffset)
		if err != nil {
			return s, err
		}
		s.Offset = offset
	}
	return s, nil
}
