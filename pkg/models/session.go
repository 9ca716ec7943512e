package models

import (
	"sync"
	"time"
)

// SessionState represents the current state of the synchronization engine
type SessionState string

const (
	SessionStateIdle    SessionState = "idle"
	SessionStateRunning SessionState = "running"
)

// SessionStats tracks emission statistics for one session
type SessionStats struct {
	Ticks            uint64    `json:"ticks"`
	MIDIMessages     uint64    `json:"midiMessages"`
	ArtNetPackets    uint64    `json:"artnetPackets"`
	MIDIErrors       uint64    `json:"midiErrors"`
	ArtNetErrors     uint64    `json:"artnetErrors"`
	SkippedMIDITicks uint64    `json:"skippedMidiTicks"` // ticks with no MIDI output selected
	LastTick         time.Time `json:"lastTick"`
	LastTimecode     Timecode  `json:"lastTimecode"`
}

// SessionStatsRecorder guards SessionStats for concurrent readers
type SessionStatsRecorder struct {
	stats SessionStats
	mu    sync.RWMutex
}

// RecordTick records one completed tick and the timecode it carried
func (r *SessionStatsRecorder) RecordTick(tc Timecode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Ticks++
	r.stats.LastTick = time.Now()
	r.stats.LastTimecode = tc
}

// RecordMIDI records MIDI emissions for a tick
func (r *SessionStatsRecorder) RecordMIDI(sent int, failed int, skipped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.MIDIMessages += uint64(sent)
	r.stats.MIDIErrors += uint64(failed)
	if skipped {
		r.stats.SkippedMIDITicks++
	}
}

// RecordArtNet records one Art-Net send attempt
func (r *SessionStatsRecorder) RecordArtNet(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.stats.ArtNetErrors++
		return
	}
	r.stats.ArtNetPackets++
}

// Snapshot returns a copy of the current statistics
func (r *SessionStatsRecorder) Snapshot() SessionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// SessionInfo describes a running session as returned by the API
type SessionInfo struct {
	ID        string       `json:"id"`
	StartedAt string       `json:"startedAt"`
	Duration  int          `json:"duration"` // seconds
	FrameRate string       `json:"frameRate"`
	MTCMode   string       `json:"mtcMode"`
	Offset    Offset       `json:"offset"`
	ArtNet    string       `json:"artnet"` // ip:port
	MIDI      string       `json:"midi,omitempty"`
	Stats     SessionStats `json:"stats"`
}

// TransportStatus is the engine state plus the displayed timecode
type TransportStatus struct {
	State    SessionState `json:"state"`
	Timecode string       `json:"timecode"`
	Session  *SessionInfo `json:"session,omitempty"`
}
