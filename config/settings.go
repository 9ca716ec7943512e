package config

import (
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"timepilot/pkg/models"
)

// MTCMode selects how quarter-frame messages are paced
type MTCMode string

const (
	// MTCModeBurst sends all eight quarter frames once per frame period
	MTCModeBurst MTCMode = "burst"
	// MTCModeQuarter sends one quarter frame every quarter of a frame period
	MTCModeQuarter MTCMode = "quarter"
)

// Settings are the user-facing engine settings, persisted between runs
type Settings struct {
	ArtNetIP   string           `json:"artnetIp" yaml:"artnetIp"`
	ArtNetPort int              `json:"artnetPort" yaml:"artnetPort"`
	FrameRate  models.FrameRate `json:"frameRate" yaml:"frameRate"`
	Offset     models.Offset    `json:"offset" yaml:"offset"`
	MIDIOutput string           `json:"midiOutput" yaml:"midiOutput"`
	MTCMode    MTCMode          `json:"mtcMode" yaml:"mtcMode"`
}

// DefaultSettings returns the out-of-the-box settings
func DefaultSettings() Settings {
	return Settings{
		ArtNetIP:   "255.255.255.255",
		ArtNetPort: 6454,
		FrameRate:  models.DefaultFrameRate,
		MTCMode:    MTCModeBurst,
	}
}

// Validate checks s and returns a copy with fallbacks applied.
// Unsupported frame rates and cadence modes fall back to their defaults with a warning;
// a bad address, port or offset is an error.
func (s Settings) Validate(log logrus.FieldLogger) (Settings, error) {
	out := s

	if !out.FrameRate.IsSupported() {
		if log != nil {
			log.WithField("frameRate", float64(s.FrameRate)).
				Warnf("unsupported frame rate, using %s fps", models.DefaultFrameRate)
		}
		out.FrameRate = models.DefaultFrameRate
	}

	switch out.MTCMode {
	case MTCModeBurst, MTCModeQuarter:
	case "":
		out.MTCMode = MTCModeBurst
	default:
		if log != nil {
			log.WithField("mtcMode", s.MTCMode).Warn("unknown MTC mode, using burst")
		}
		out.MTCMode = MTCModeBurst
	}

	if out.ArtNetIP == "" {
		out.ArtNetIP = "255.255.255.255"
	}
	ip := net.ParseIP(out.ArtNetIP)
	if ip == nil || ip.To4() == nil {
		return s, errors.Errorf("artnet ip %q is not an IPv4 address", s.ArtNetIP)
	}

	if out.ArtNetPort == 0 {
		out.ArtNetPort = 6454
	}
	if out.ArtNetPort < 1 || out.ArtNetPort > 65535 {
		return s, errors.Errorf("artnet port %d out of range 1-65535", s.ArtNetPort)
	}

	if err := out.Offset.Validate(out.FrameRate); err != nil {
		return s, errors.Wrap(err, "invalid start offset")
	}

	return out, nil
}
