// Package audio plays mp3 and wav files through the system speaker as a
// playback transport.
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"

	"timepilot/internal/playback"
)

// ErrUnsupportedFormat is returned for audio files that are neither mp3 nor wav
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

var (
	_ playback.Transport = (*File)(nil)
	_ playback.Finisher  = (*File)(nil)
)

// File plays an mp3 or wav file through the system speaker.
// Position follows the decoder, so timecode tracks what is actually heard.
type File struct {
	path   string
	stream beep.StreamSeekCloser
	format beep.Format

	mu   sync.Mutex
	done chan struct{}
}

// Open decodes path and initializes the speaker at its sample rate
func Open(path string) (*File, error) {
	stream, format, err := decodeAudio(path)
	if err != nil {
		return nil, err
	}
	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		stream.Close()
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}

	done := make(chan struct{})
	close(done)
	return &File{
		path:   path,
		stream: stream,
		format: format,
		done:   done,
	}, nil
}

// decodeAudio opens and decodes an mp3 or wav file
func decodeAudio(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp3" && ext != ".wav" {
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "failed to open audio file")
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	if ext == ".mp3" {
		stream, format, err = mp3.Decode(file)
	} else {
		stream, format, err = wav.Decode(file)
	}
	if err != nil {
		file.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", filepath.Base(path))
	}
	return stream, format, nil
}

// Start rewinds and plays the file
func (a *File) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	speaker.Clear()
	speaker.Lock()
	err := a.stream.Seek(0)
	speaker.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to rewind audio")
	}

	done := make(chan struct{})
	var once sync.Once
	a.done = done
	speaker.Play(beep.Seq(a.stream, beep.Callback(func() {
		once.Do(func() { close(done) })
	})))
	return nil
}

// Stop silences the speaker and rewinds
func (a *File) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	speaker.Clear()
	speaker.Lock()
	err := a.stream.Seek(0)
	speaker.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to rewind audio")
	}
	return nil
}

// Position returns the decoder position in seconds
func (a *File) Position() float64 {
	speaker.Lock()
	p := a.stream.Position()
	speaker.Unlock()
	return a.format.SampleRate.D(p).Seconds()
}

// Done is closed when the current playback reaches the end of the file
func (a *File) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Duration returns the length of the file
func (a *File) Duration() time.Duration {
	return a.format.SampleRate.D(a.stream.Len())
}

// Path returns the file being played
func (a *File) Path() string {
	return a.path
}

// Close stops playback and releases the decoder
func (a *File) Close() error {
	speaker.Clear()
	return a.stream.Close()
}
