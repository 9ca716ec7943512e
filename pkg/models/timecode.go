package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FrameRate is a nominal timecode frame rate in frames per second
type FrameRate float64

// Supported frame rates. 29.97 is carried as non-drop-frame.
const (
	FrameRate24   FrameRate = 24
	FrameRate25   FrameRate = 25
	FrameRate2997 FrameRate = 29.97
	FrameRate30   FrameRate = 30
)

// DefaultFrameRate is used whenever a configured rate is not one of the supported values
const DefaultFrameRate = FrameRate30

// IsSupported reports whether r is one of the four protocol rates
func (r FrameRate) IsSupported() bool {
	switch r {
	case FrameRate24, FrameRate25, FrameRate2997, FrameRate30:
		return true
	}
	return false
}

// Normalize returns r if it is supported and DefaultFrameRate otherwise
func (r FrameRate) Normalize() FrameRate {
	if r.IsSupported() {
		return r
	}
	return DefaultFrameRate
}

func (r FrameRate) String() string {
	if r == FrameRate2997 {
		return "29.97"
	}
	return fmt.Sprintf("%g", float64(r))
}

// Timecode is one hours:minutes:seconds:frames instant
type Timecode struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
	Frames  int `json:"frames"`
}

// String renders the timecode as HH:MM:SS:FF
func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}

// IsZero reports whether tc is 00:00:00:00
func (tc Timecode) IsZero() bool {
	return tc == Timecode{}
}

// Offset is a user-entered start timecode added to the playback position
type Offset struct {
	Hours   int `json:"hours" yaml:"hours"`
	Minutes int `json:"minutes" yaml:"minutes"`
	Seconds int `json:"seconds" yaml:"seconds"`
	Frames  int `json:"frames" yaml:"frames"`
}

// InSeconds converts the offset to seconds at the given frame rate
func (o Offset) InSeconds(rate FrameRate) float64 {
	whole := float64(o.Hours*3600 + o.Minutes*60 + o.Seconds)
	if rate <= 0 {
		return whole
	}
	return whole + float64(o.Frames)/float64(rate)
}

// Timecode returns the offset as a timecode, hours wrapped at 24
func (o Offset) Timecode() Timecode {
	return Timecode{
		Hours:   o.Hours % 24,
		Minutes: o.Minutes,
		Seconds: o.Seconds,
		Frames:  o.Frames,
	}
}

// Validate checks that every field is inside its timecode range for rate
func (o Offset) Validate(rate FrameRate) error {
	switch {
	case o.Hours < 0 || o.Hours > 23:
		return errors.Errorf("offset hours %d out of range 0-23", o.Hours)
	case o.Minutes < 0 || o.Minutes > 59:
		return errors.Errorf("offset minutes %d out of range 0-59", o.Minutes)
	case o.Seconds < 0 || o.Seconds > 59:
		return errors.Errorf("offset seconds %d out of range 0-59", o.Seconds)
	case o.Frames < 0 || float64(o.Frames) >= float64(rate):
		return errors.Errorf("offset frames %d out of range for %s fps", o.Frames, rate)
	}
	return nil
}

// ParseOffset parses an HH:MM:SS:FF string. Range checks are left to Validate.
func ParseOffset(s string) (Offset, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 4 {
		return Offset{}, errors.Errorf("timecode %q is not HH:MM:SS:FF", s)
	}

	var fields [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Offset{}, errors.Errorf("timecode %q has a bad field %q", s, p)
		}
		fields[i] = n
	}
	return Offset{Hours: fields[0], Minutes: fields[1], Seconds: fields[2], Frames: fields[3]}, nil
}
