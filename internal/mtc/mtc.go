// Package mtc encodes MIDI Time Code quarter-frame and full-frame messages.
package mtc

import (
	"gitlab.com/gomidi/midi/v2"

	"timepilot/internal/timecode"
	"timepilot/pkg/models"
)

// MIDI status and SysEx framing bytes
const (
	StatusQuarterFrame = 0xF1
	SysExStart         = 0xF0
	SysExEnd           = 0xF7
	SysExRealTime      = 0x7F
	SysExAllDevices    = 0x7F
	SubIDTimeCode      = 0x01
	SubIDFullMessage   = 0x01
)

// QuarterFramesPerTimecode is the number of quarter-frame messages that carry one timecode
const QuarterFramesPerTimecode = 8

// FullFrameLength is the size of a full-frame SysEx message in bytes
const FullFrameLength = 10

// Quarter-frame piece indexes
const (
	PieceFramesLow = iota
	PieceFramesHigh
	PieceSecondsLow
	PieceSecondsHigh
	PieceMinutesLow
	PieceMinutesHigh
	PieceHoursLow
	PieceHoursHighRate
)

// nibble returns the 4-bit value carried by quarter-frame piece idx
func nibble(tc models.Timecode, rateCode uint8, idx int) uint8 {
	switch idx {
	case PieceFramesLow:
		return uint8(tc.Frames) & 0x0F
	case PieceFramesHigh:
		return uint8(tc.Frames>>4) & 0x03
	case PieceSecondsLow:
		return uint8(tc.Seconds) & 0x0F
	case PieceSecondsHigh:
		return uint8(tc.Seconds>>4) & 0x07
	case PieceMinutesLow:
		return uint8(tc.Minutes) & 0x0F
	case PieceMinutesHigh:
		return uint8(tc.Minutes>>4) & 0x07
	case PieceHoursLow:
		return uint8(tc.Hours) & 0x0F
	default:
		return (rateCode << 1) | (uint8(tc.Hours>>4) & 0x01)
	}
}

// QuarterFrame returns the quarter-frame message for piece idx (0-7) of tc
func QuarterFrame(tc models.Timecode, rate models.FrameRate, idx int) midi.Message {
	idx &= 0x07
	value := nibble(tc, timecode.RateCode(rate), idx)
	return midi.Message{StatusQuarterFrame, byte(idx<<4) | (value & 0x0F)}
}

// QuarterFrames returns all eight quarter-frame messages for tc, piece 0 first
func QuarterFrames(tc models.Timecode, rate models.FrameRate) []midi.Message {
	msgs := make([]midi.Message, QuarterFramesPerTimecode)
	for idx := range msgs {
		msgs[idx] = QuarterFrame(tc, rate, idx)
	}
	return msgs
}

// FullFrame returns the full-frame SysEx used to locate a receiver to tc
func FullFrame(tc models.Timecode, rate models.FrameRate) midi.Message {
	hh := ((timecode.RateCode(rate) & 0x03) << 5) | (uint8(tc.Hours) & 0x1F)
	return midi.Message{
		SysExStart, SysExRealTime, SysExAllDevices, SubIDTimeCode, SubIDFullMessage,
		hh,
		uint8(tc.Minutes),
		uint8(tc.Seconds),
		uint8(tc.Frames),
		SysExEnd,
	}
}
