package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"

	"timepilot/config"
	"timepilot/internal/artnet"
	"timepilot/internal/display"
	"timepilot/internal/metrics"
	"timepilot/internal/midiout"
	"timepilot/internal/mtc"
	"timepilot/internal/playback"
	"timepilot/internal/timecode"
	"timepilot/pkg/models"
)

// Reasons a session ends, used as a metrics label
const (
	StopReasonStop     = "stop"
	StopReasonReplaced = "replaced"
	StopReasonFinished = "finished"
)

// DefaultStopTimeout bounds how long Stop waits for the tick goroutine
const DefaultStopTimeout = 2 * time.Second

// MIDIOutput is the selectable MIDI sink. Send returns midiout.ErrNoOutput
// when nothing is selected.
type MIDIOutput interface {
	midiout.Sink
	Selected() (string, bool)
}

// Scheduler drives one session at a time: it samples the playback transport
// every tick, derives the timecode and sends it as MTC and Art-Net
type Scheduler struct {
	transport playback.Transport
	midi      MIDIOutput
	dial      artnet.DialFunc
	display   *display.Hub
	metrics   *metrics.Metrics
	log       *logrus.Entry

	StopTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	session *Session
}

// New creates an idle scheduler. out and m may be nil.
func New(transport playback.Transport, out MIDIOutput, dial artnet.DialFunc, hub *display.Hub, m *metrics.Metrics, log *logrus.Entry) *Scheduler {
	if dial == nil {
		dial = artnet.Dial
	}
	if hub == nil {
		hub = display.New(m)
	}
	return &Scheduler{
		transport:   transport,
		midi:        out,
		dial:        dial,
		display:     hub,
		metrics:     m,
		log:         log.WithField("component", "scheduler"),
		StopTimeout: DefaultStopTimeout,
		now:         time.Now,
	}
}

// Display returns the hub the scheduler publishes timecode to
func (s *Scheduler) Display() *display.Hub {
	return s.display
}

// Start validates settings, tears down any running session and starts a new one.
// Once the Art-Net socket is open, the full-frame message for the start
// offset goes out before the first tick.
func (s *Scheduler) Start(settings config.Settings) (models.SessionInfo, error) {
	validated, err := settings.Validate(s.log)
	if err != nil {
		return models.SessionInfo{}, errors.Wrap(err, "invalid settings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		s.stopLocked(StopReasonReplaced)
	}

	sender, err := s.dial(validated.ArtNetIP, validated.ArtNetPort)
	if err != nil {
		return models.SessionInfo{}, errors.Wrap(err, "failed to open Art-Net socket")
	}

	midiName, _ := s.selectedMIDI()
	sess := newSession(validated, sender, midiName, s.now(), s.log)

	// Full frame at the start offset lets receivers lock before quarter frames begin.
	start := validated.Offset.Timecode()
	s.sendMIDI(sess, "full", mtc.FullFrame(start, validated.FrameRate))

	if err := s.transport.Start(); err != nil {
		s.closeSessionSender(sess)
		return models.SessionInfo{}, errors.Wrap(err, "failed to start playback")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	s.session = sess
	go s.run(ctx, sess)

	if s.metrics != nil {
		s.metrics.RecordSessionStart()
	}
	sess.log.WithFields(logrus.Fields{
		"frameRate": validated.FrameRate.String(),
		"mtcMode":   validated.MTCMode,
		"offset":    start.String(),
		"artnet":    sess.artnetAddr(),
		"midi":      midiName,
	}).Info("session started")

	return sess.Info(s.now()), nil
}

// Stop ends the running session and resets the display to 00:00:00:00.
// Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		s.display.Reset()
		return nil
	}
	s.stopLocked(StopReasonStop)
	return nil
}

// Status returns the engine state and the displayed timecode
func (s *Scheduler) Status() models.TransportStatus {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	status := models.TransportStatus{
		State:    models.SessionStateIdle,
		Timecode: s.display.Current().String(),
	}
	if sess != nil {
		info := sess.Info(s.now())
		status.State = models.SessionStateRunning
		status.Session = &info
	}
	return status
}

// Running reports whether a session is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// stopLocked cancels the tick goroutine, waits for it, then releases the
// session's resources. s.mu must be held.
func (s *Scheduler) stopLocked(reason string) {
	sess := s.session
	s.session = nil

	sess.cancel()
	select {
	case <-sess.done:
	case <-time.After(s.StopTimeout):
		sess.log.WithField("timeout", s.StopTimeout).Warn("tick loop did not exit in time")
	}

	s.closeSessionSender(sess)

	if err := s.transport.Stop(); err != nil {
		sess.log.WithError(err).Warn("failed to stop playback")
	}
	s.display.Reset()

	duration := s.now().Sub(sess.StartedAt)
	if s.metrics != nil {
		s.metrics.RecordSessionStop(reason, duration.Seconds())
	}
	stats := sess.Stats()
	sess.log.WithFields(logrus.Fields{
		"reason":        reason,
		"duration":      duration.Round(time.Millisecond),
		"ticks":         stats.Ticks,
		"midiMessages":  stats.MIDIMessages,
		"artnetPackets": stats.ArtNetPackets,
		"sendErrors":    stats.MIDIErrors + stats.ArtNetErrors,
	}).Info("session stopped")
}

// closeSessionSender closes the session's socket; a failure is logged only
func (s *Scheduler) closeSessionSender(sess *Session) {
	if err := sess.closeSender(); err != nil {
		sess.log.WithError(err).Warn("failed to close Art-Net socket")
		if s.metrics != nil {
			s.metrics.RecordCloseError()
		}
	}
}

// run owns the session's ticker until the session is cancelled or playback ends
func (s *Scheduler) run(ctx context.Context, sess *Session) {
	defer close(sess.done)

	var finished <-chan struct{}
	if f, ok := s.transport.(playback.Finisher); ok {
		finished = f.Done()
	}

	ticker := time.NewTicker(sess.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-finished:
			sess.log.Info("playback finished")
			go s.finish(sess)
			return
		case t := <-ticker.C:
			s.tick(sess, t)
		}
	}
}

// finish stops sess if it is still the current session
func (s *Scheduler) finish(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == sess {
		s.stopLocked(StopReasonFinished)
	}
}

// tick samples the transport and emits one tick's worth of timecode.
// MIDI always goes out before Art-Net.
func (s *Scheduler) tick(sess *Session, scheduled time.Time) {
	rate := sess.Settings.FrameRate
	position := s.transport.Position() + sess.offset
	tc := timecode.Derive(position, rate)

	if sess.Settings.MTCMode == config.MTCModeQuarter {
		idx := int(sess.seq % mtc.QuarterFramesPerTimecode)
		if idx == 0 {
			sess.latched = tc
		}
		s.sendMIDI(sess, "quarter", mtc.QuarterFrame(sess.latched, rate, idx))
		// One Art-Net packet per frame, every fourth quarter tick.
		if sess.seq%4 == 0 {
			s.sendArtNet(sess, tc)
			s.display.Publish(tc)
		}
	} else {
		s.sendMIDI(sess, "quarter", mtc.QuarterFrames(tc, rate)...)
		s.sendArtNet(sess, tc)
		s.display.Publish(tc)
	}

	sess.seq++
	sess.stats.RecordTick(tc)
	if s.metrics != nil {
		s.metrics.RecordTick(string(sess.Settings.MTCMode), s.now().Sub(scheduled).Seconds())
	}
}

// sendMIDI sends msgs to the selected output, skipping silently when none is selected
func (s *Scheduler) sendMIDI(sess *Session, kind string, msgs ...midi.Message) {
	if _, ok := s.selectedMIDI(); !ok {
		sess.stats.RecordMIDI(0, 0, true)
		if s.metrics != nil {
			s.metrics.RecordMIDISkipped()
		}
		return
	}

	sent, failed := 0, 0
	var lastErr error
	for _, msg := range msgs {
		err := s.midi.Send(msg)
		if errors.Is(err, midiout.ErrNoOutput) {
			// deselected mid-tick
			break
		}
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		sent++
	}

	sess.stats.RecordMIDI(sent, failed, false)
	if s.metrics != nil {
		s.metrics.RecordSent(metrics.SinkMIDI, kind, sent)
		for i := 0; i < failed; i++ {
			s.metrics.RecordSendError(metrics.SinkMIDI)
		}
	}

	switch {
	case lastErr != nil && !sess.midiFailing:
		sess.midiFailing = true
		sess.log.WithError(lastErr).Warn("MIDI send failed")
	case lastErr != nil:
		sess.log.WithError(lastErr).Debug("MIDI send failed")
	case sent > 0 && sess.midiFailing:
		sess.midiFailing = false
		sess.log.Info("MIDI send recovered")
	}
}

// sendArtNet sends one ArtTimecode packet to the session's socket
func (s *Scheduler) sendArtNet(sess *Session, tc models.Timecode) {
	err := sess.sender.Send(artnet.Timecode(tc, sess.Settings.FrameRate))
	sess.stats.RecordArtNet(err)

	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSendError(metrics.SinkArtNet)
		}
		if !sess.artnetFailing {
			sess.artnetFailing = true
			sess.log.WithError(err).Warn("Art-Net send failed")
		} else {
			sess.log.WithError(err).Debug("Art-Net send failed")
		}
		return
	}

	if s.metrics != nil {
		s.metrics.RecordSent(metrics.SinkArtNet, "timecode", 1)
	}
	if sess.artnetFailing {
		sess.artnetFailing = false
		sess.log.Info("Art-Net send recovered")
	}
}

func (s *Scheduler) selectedMIDI() (string, bool) {
	if s.midi == nil {
		return "", false
	}
	return s.midi.Selected()
}
