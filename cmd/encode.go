package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"timepilot/internal/artnet"
	"timepilot/internal/mtc"
	"timepilot/pkg/models"
)

var encodeFPS float64

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode HH:MM:SS:FF",
	Short: "Print the MTC and Art-Net messages for a timecode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, err := models.ParseOffset(args[0])
		if err != nil {
			return err
		}

		rate := models.FrameRate(encodeFPS)
		if !rate.IsSupported() {
			logger.WithField("fps", encodeFPS).Warnf("unsupported frame rate, using %s fps", models.DefaultFrameRate)
			rate = models.DefaultFrameRate
		}
		if err := offset.Validate(rate); err != nil {
			return err
		}

		writeEncoding(cmd.OutOrStdout(), offset.Timecode(), rate)
		return nil
	},
}

func init() {
	encodeCmd.Flags().Float64Var(&encodeFPS, "fps", float64(models.DefaultFrameRate), "frame rate: 24, 25, 29.97 or 30")
	RootCmd.AddCommand(encodeCmd)
}

func writeEncoding(w io.Writer, tc models.Timecode, rate models.FrameRate) {
	fmt.Fprintf(w, "timecode  %s @ %s fps\n", tc, rate)
	for i, msg := range mtc.QuarterFrames(tc, rate) {
		fmt.Fprintf(w, "quarter %d % X\n", i, []byte(msg))
	}
	fmt.Fprintf(w, "full      % X\n", []byte(mtc.FullFrame(tc, rate)))
	fmt.Fprintf(w, "artnet    % X\n", artnet.Timecode(tc, rate))
}
