package playback

import (
	"sync"
	"time"
)

// Transport is a playback clock the scheduler samples every tick
type Transport interface {
	// Start begins playback from the top
	Start() error
	// Stop halts playback and rewinds
	Stop() error
	// Position returns the elapsed playback time in seconds
	Position() float64
}

// Finisher is implemented by transports that end on their own
type Finisher interface {
	// Done is closed when playback started by the last Start reaches the end
	Done() <-chan struct{}
}

// FreeRun is a wall-clock transport for running timecode without audio
type FreeRun struct {
	now func() time.Time

	mu      sync.Mutex
	started time.Time
	running bool
}

// NewFreeRun creates a stopped wall-clock transport
func NewFreeRun() *FreeRun {
	return &FreeRun{now: time.Now}
}

// Start restarts the clock at zero
func (f *FreeRun) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = f.now()
	f.running = true
	return nil
}

// Stop halts the clock; Position reads zero until the next Start
func (f *FreeRun) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

// Position returns seconds since Start
func (f *FreeRun) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return 0
	}
	return f.now().Sub(f.started).Seconds()
}
