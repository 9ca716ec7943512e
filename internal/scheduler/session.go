package scheduler

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"timepilot/config"
	"timepilot/internal/artnet"
	"timepilot/internal/timecode"
	"timepilot/pkg/models"
)

// Session is one playback-to-timecode run, from transport start to stop.
// It owns the UDP sender and the tick goroutine.
type Session struct {
	ID        string
	StartedAt time.Time
	Settings  config.Settings

	offset float64 // seconds, added to every sampled position
	period time.Duration
	midi   string // output selected when the session started

	sender    artnet.Sender
	closeOnce sync.Once
	closeErr  error

	cancel context.CancelFunc
	done   chan struct{}

	stats models.SessionStatsRecorder
	log   *logrus.Entry

	// owned by the tick goroutine
	seq           uint64
	latched       models.Timecode
	midiFailing   bool
	artnetFailing bool
}

func newSession(settings config.Settings, sender artnet.Sender, midiName string, now time.Time, log *logrus.Entry) *Session {
	id := uuid.New().String()
	period := timecode.FramePeriod(settings.FrameRate)
	if settings.MTCMode == config.MTCModeQuarter {
		period /= 4
	}

	return &Session{
		ID:        id,
		StartedAt: now,
		Settings:  settings,
		offset:    settings.Offset.InSeconds(settings.FrameRate),
		period:    period,
		midi:      midiName,
		sender:    sender,
		done:      make(chan struct{}),
		log:       log.WithField("session", id),
	}
}

// closeSender closes the UDP sender exactly once
func (s *Session) closeSender() error {
	s.closeOnce.Do(func() {
		if s.sender != nil {
			s.closeErr = s.sender.Close()
		}
	})
	return s.closeErr
}

// Stats returns a snapshot of the session's emission counters
func (s *Session) Stats() models.SessionStats {
	return s.stats.Snapshot()
}

// Info describes the session for the API
func (s *Session) Info(now time.Time) models.SessionInfo {
	return models.SessionInfo{
		ID:        s.ID,
		StartedAt: s.StartedAt.Format(time.RFC3339),
		Duration:  int(now.Sub(s.StartedAt).Seconds()),
		FrameRate: s.Settings.FrameRate.String(),
		MTCMode:   string(s.Settings.MTCMode),
		Offset:    s.Settings.Offset,
		ArtNet:    s.artnetAddr(),
		MIDI:      s.midi,
		Stats:     s.stats.Snapshot(),
	}
}

func (s *Session) artnetAddr() string {
	return net.JoinHostPort(s.Settings.ArtNetIP, strconv.Itoa(s.Settings.ArtNetPort))
}
