package midiout

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoOutput is returned by Send when no output is selected
	ErrNoOutput = errors.New("midiout: no output selected")
	// ErrNotFound is returned by Select for an unknown output name
	ErrNotFound = errors.New("midiout: output not found")
)

// Sink accepts raw MIDI messages
type Sink interface {
	Send(msg []byte) error
}

// Port is an output port as exposed by a MIDI driver
type Port interface {
	Sink
	Open() error
	Close() error
	IsOpen() bool
	String() string
}

// Lister enumerates the output ports of a MIDI driver
type Lister interface {
	Outs() ([]Port, error)
}

// Router holds the currently selected output and forwards messages to it
type Router struct {
	lister Lister
	log    *logrus.Entry

	mu       sync.Mutex
	selected Port
}

// NewRouter creates a router with no output selected
func NewRouter(lister Lister, log *logrus.Entry) *Router {
	return &Router{
		lister: lister,
		log:    log.WithField("component", "midiout"),
	}
}

// Outputs returns the names of the available outputs
func (r *Router) Outputs() ([]string, error) {
	if r.lister == nil {
		return []string{}, nil
	}
	ports, err := r.lister.Outs()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list MIDI outputs")
	}
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.String())
	}
	return names, nil
}

// Select opens the output called name and makes it current.
// An empty name closes the current output and deselects it.
func (r *Router) Select(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		r.closeSelected()
		return nil
	}
	if r.selected != nil && r.selected.String() == name {
		return nil
	}
	if r.lister == nil {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}

	ports, err := r.lister.Outs()
	if err != nil {
		return errors.Wrap(err, "failed to list MIDI outputs")
	}
	var found Port
	for _, p := range ports {
		if p.String() == name {
			found = p
			break
		}
	}
	if found == nil {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	if !found.IsOpen() {
		if err := found.Open(); err != nil {
			return errors.Wrapf(err, "failed to open MIDI output %q", name)
		}
	}

	r.closeSelected()
	r.selected = found
	r.log.WithField("output", name).Info("MIDI output selected")
	return nil
}

// Selected returns the name of the current output and whether one is selected
func (r *Router) Selected() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return "", false
	}
	return r.selected.String(), true
}

// Send forwards msg to the current output
func (r *Router) Send(msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return ErrNoOutput
	}
	return r.selected.Send(msg)
}

// Close closes the current output
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeSelected()
	return nil
}

func (r *Router) closeSelected() {
	if r.selected == nil {
		return
	}
	name := r.selected.String()
	if err := r.selected.Close(); err != nil {
		r.log.WithError(err).WithField("output", name).Warn("failed to close MIDI output")
	}
	r.selected = nil
	r.log.WithField("output", name).Info("MIDI output closed")
}
