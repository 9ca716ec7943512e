package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"timepilot/internal/midiout"
	"timepilot/internal/midiout/rtmidi"
)

// portsCmd represents the ports command
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI outputs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := rtmidi.Open()
		if err != nil {
			return err
		}
		defer driver.Close()

		names, err := midiout.NewRouter(driver, logrus.NewEntry(logger)).Outputs()
		if err != nil {
			return errors.Wrap(err, "listing outputs")
		}

		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "no MIDI outputs")
			return nil
		}
		for i, name := range names {
			fmt.Fprintf(out, "%d\t%s\n", i, name)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(portsCmd)
}
