// Package rtmidi lists system MIDI outputs through RtMidi.
package rtmidi

import (
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"timepilot/internal/midiout"
)

var _ midiout.Lister = (*Driver)(nil)

// Driver lists system MIDI outputs through RtMidi
type Driver struct {
	drv *rtmididrv.Driver
}

// Open initializes the RtMidi driver
func Open() (*Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize MIDI driver")
	}
	return &Driver{drv: drv}, nil
}

// Outs returns the system's MIDI output ports
func (d *Driver) Outs() ([]midiout.Port, error) {
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, err
	}
	ports := make([]midiout.Port, len(outs))
	for i, out := range outs {
		ports[i] = out
	}
	return ports, nil
}

// Close closes the driver and every port it opened
func (d *Driver) Close() error {
	return d.drv.Close()
}
