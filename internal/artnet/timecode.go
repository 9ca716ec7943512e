// Package artnet builds ArtTimecode packets and sends them over UDP.
package artnet

import (
	"timepilot/internal/timecode"
	"timepilot/pkg/models"
)

// Art-Net header constants
const (
	ID              = "Art-Net\x00"
	OpTimeCode      = 0x0097
	ProtocolVersion = 14
	DefaultPort     = 6454
	DefaultIP       = "255.255.255.255"
)

// TimecodePacketLength is the size of an ArtTimecode packet as built by Timecode
const TimecodePacketLength = 19

// Byte offsets within the packet
const (
	offsetOpCode   = 8
	offsetVersion  = 10
	offsetReserved = 12
	offsetFPS      = 14
	offsetHours    = 15
	offsetMinutes  = 16
	offsetSeconds  = 17
	offsetFrames   = 18
)

// Timecode builds the ArtTimecode payload for tc.
// The opcode is little-endian, the protocol version big-endian.
func Timecode(tc models.Timecode, rate models.FrameRate) []byte {
	pkt := make([]byte, TimecodePacketLength)
	copy(pkt, ID)
	pkt[offsetOpCode] = byte(OpTimeCode & 0xFF)
	pkt[offsetOpCode+1] = byte(OpTimeCode >> 8)
	pkt[offsetVersion] = byte(ProtocolVersion >> 8)
	pkt[offsetVersion+1] = byte(ProtocolVersion & 0xFF)
	pkt[offsetReserved] = 0x00
	pkt[offsetReserved+1] = 0x00
	pkt[offsetFPS] = timecode.RateCode(rate)
	pkt[offsetHours] = byte(tc.Hours)
	pkt[offsetMinutes] = byte(tc.Minutes)
	pkt[offsetSeconds] = byte(tc.Seconds)
	pkt[offsetFrames] = byte(tc.Frames)
	return pkt
}
