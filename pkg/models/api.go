package models

// PlayRequest starts a session. A nil Offset keeps the stored start offset.
type PlayRequest struct {
	Offset *Offset `json:"offset"`
}

// TimecodeResponse is the displayed timecode returned by the API
type TimecodeResponse struct {
	Timecode string   `json:"timecode"`
	Value    Timecode `json:"value"`
	State    string   `json:"state"`
}

// MIDIOutputRequest selects a MIDI output by name; empty deselects
type MIDIOutputRequest struct {
	Name string `json:"name"`
}

// MIDIOutputListResponse lists available MIDI outputs
type MIDIOutputListResponse struct {
	Outputs  []string `json:"outputs"`
	Selected string   `json:"selected"`
	Total    int      `json:"total"`
}
