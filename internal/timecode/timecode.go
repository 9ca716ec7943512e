// Package timecode derives SMPTE-style timecode values from an absolute playback position.
package timecode

import (
	"math"
	"time"

	"timepilot/pkg/models"
)

// Rate codes shared by the MTC hours nibble, the full-frame HH byte and the Art-Net fps byte
const (
	RateCode24   uint8 = 0
	RateCode25   uint8 = 1
	RateCode2997 uint8 = 2
	RateCode30   uint8 = 3
)

// RateCode maps a frame rate to its 2-bit protocol code. Unknown rates map to 30 fps.
func RateCode(rate models.FrameRate) uint8 {
	switch rate {
	case models.FrameRate24:
		return RateCode24
	case models.FrameRate25:
		return RateCode25
	case models.FrameRate2997:
		return RateCode2997
	default:
		return RateCode30
	}
}

// boundaryTolerance is how close, in frames or seconds, a product must be to
// the next integer to count as reaching it. Offsets built from whole frames
// land a few ulps short of the boundary otherwise.
const boundaryTolerance = 1e-6

// secondsPerDay is where hours wrap
const secondsPerDay = 24 * 3600

// Derive converts a playback position in seconds into a timecode at the given rate.
//
// Frames are counted from the absolute position on every call, never accumulated,
// so repeated sampling of a monotonic clock cannot drift. Hours wrap at 24.
// Negative and non-finite positions derive 00:00:00:00.
func Derive(position float64, rate models.FrameRate) models.Timecode {
	if position < 0 || math.IsNaN(position) || math.IsInf(position, 0) {
		position = 0
	}
	if position >= secondsPerDay {
		position = math.Mod(position, secondsPerDay)
	}
	fps := float64(rate)
	if fps <= 0 {
		fps = float64(models.DefaultFrameRate)
	}

	totalFrames := floor(position * fps)
	frame := int(floor(math.Mod(totalFrames, fps)))
	totalSeconds := int64(floor(position))

	return models.Timecode{
		Hours:   int((totalSeconds / 3600) % 24),
		Minutes: int((totalSeconds % 3600) / 60),
		Seconds: int(totalSeconds % 60),
		Frames:  frame,
	}
}

// floor is math.Floor, except that x within boundaryTolerance below an
// integer rounds up to it
func floor(x float64) float64 {
	if n := math.Round(x); n > x && n-x < boundaryTolerance {
		return n
	}
	return math.Floor(x)
}

// FramePeriod returns the duration of one frame at rate
func FramePeriod(rate models.FrameRate) time.Duration {
	fps := float64(rate)
	if fps <= 0 {
		fps = float64(models.DefaultFrameRate)
	}
	return time.Duration(float64(time.Second) / fps)
}

// Seconds converts a timecode back to seconds at rate
func Seconds(tc models.Timecode, rate models.FrameRate) float64 {
	return float64(tc.Hours*3600+tc.Minutes*60+tc.Seconds) + float64(tc.Frames)/float64(rate)
}
