package scheduler

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"timepilot/config"
	"timepilot/internal/artnet"
	"timepilot/internal/metrics"
	"timepilot/internal/midiout"
	"timepilot/internal/mtc"
	"timepilot/pkg/models"
)

// wire records every emission in order across both sinks
type wire struct {
	mu     sync.Mutex
	events []event
}

type event struct {
	sink string
	data []byte
}

func (w *wire) record(sink string, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event{sink: sink, data: append([]byte(nil), data...)})
}

func (w *wire) snapshot() []event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]event(nil), w.events...)
}

func (w *wire) count(sink string) int {
	n := 0
	for _, e := range w.snapshot() {
		if e.sink == sink {
			n++
		}
	}
	return n
}

type fakeSender struct {
	wire     *wire
	mu       sync.Mutex
	closes   int
	sendErr  error
	closeErr error
}

func (f *fakeSender) Send(payload []byte) error {
	f.mu.Lock()
	err := f.sendErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.wire.record("artnet", payload)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func (f *fakeSender) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeMIDI struct {
	wire     *wire
	mu       sync.Mutex
	selected bool
	sendErr  error
}

func (f *fakeMIDI) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.selected {
		return midiout.ErrNoOutput
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.wire.record("midi", msg)
	return nil
}

func (f *fakeMIDI) Selected() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.selected {
		return "", false
	}
	return "Test Port", true
}

type fakeTransport struct {
	mu       sync.Mutex
	position float64
	starts   int
	stops    int
	startErr error
	done     chan struct{}
}

func (f *fakeTransport) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	return nil
}

func (f *fakeTransport) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.position = 0
	return nil
}

func (f *fakeTransport) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeTransport) set(p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = p
}

// finishingTransport reports the end of playback through Done
type finishingTransport struct {
	fakeTransport
}

func (f *finishingTransport) Done() <-chan struct{} {
	return f.done
}

type harness struct {
	s         *Scheduler
	wire      *wire
	midi      *fakeMIDI
	transport *fakeTransport
	senders   []*fakeSender
	dialErr   error
	metrics   *metrics.Metrics
	hook      *test.Hook
}

func newHarness(t *testing.T, midiSelected bool) *harness {
	t.Helper()
	h := &harness{wire: &wire{}, transport: &fakeTransport{}}
	h.midi = &fakeMIDI{wire: h.wire, selected: midiSelected}
	h.metrics = metrics.New(prometheus.NewRegistry())

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h.hook = hook

	dial := func(ip string, port int) (artnet.Sender, error) {
		if h.dialErr != nil {
			return nil, h.dialErr
		}
		snd := &fakeSender{wire: h.wire}
		h.senders = append(h.senders, snd)
		return snd, nil
	}
	h.s = New(h.transport, h.midi, dial, nil, h.metrics, logrus.NewEntry(logger))
	t.Cleanup(func() { h.s.Stop() })
	return h
}

// session builds a session that is not ticked by a goroutine
func (h *harness) session(settings config.Settings) *Session {
	snd := &fakeSender{wire: h.wire}
	h.senders = append(h.senders, snd)
	name, _ := h.midi.Selected()
	return newSession(settings, snd, name, time.Now(), h.s.log)
}

func settings30() config.Settings {
	s := config.DefaultSettings()
	s.FrameRate = models.FrameRate30
	return s
}

func TestTickBurstEncodesBothSinks(t *testing.T) {
	h := newHarness(t, true)
	sess := h.session(settings30())
	h.transport.set(3661.5)

	h.s.tick(sess, time.Now())

	events := h.wire.snapshot()
	if len(events) != 9 {
		t.Fatalf("emitted %d messages, want 8 MIDI + 1 Art-Net", len(events))
	}
	wantMIDI := []byte{0x0F, 0x10, 0x21, 0x30, 0x41, 0x50, 0x61, 0x76}
	for i, want := range wantMIDI {
		e := events[i]
		if e.sink != "midi" || !bytes.Equal(e.data, []byte{0xF1, want}) {
			t.Errorf("event %d = %s % X, want midi F1 %02X", i, e.sink, e.data, want)
		}
	}

	last := events[8]
	if last.sink != "artnet" {
		t.Fatalf("last event sink = %s, want artnet after MIDI", last.sink)
	}
	wantArtNet := []byte{
		0x41, 0x72, 0x74, 0x2D, 0x4E, 0x65, 0x74, 0x00, // "Art-Net\0"
		0x97, 0x00, // OpTimeCode, low byte first
		0x00, 0x0E, // protocol version 14
		0x00, 0x00, // reserved
		0x03, 0x01, 0x01, 0x01, 0x0F, // fps code, hh mm ss ff
	}
	if !bytes.Equal(last.data, wantArtNet) {
		t.Errorf("Art-Net payload = % X\nwant              % X", last.data, wantArtNet)
	}

	if got := h.s.Display().Current().String(); got != "01:01:01:15" {
		t.Errorf("display = %s, want 01:01:01:15", got)
	}
	stats := sess.Stats()
	if stats.Ticks != 1 || stats.MIDIMessages != 8 || stats.ArtNetPackets != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestTickAddsOffset(t *testing.T) {
	h := newHarness(t, false)
	settings := settings30()
	settings.Offset = models.Offset{Hours: 1, Minutes: 1}
	sess := h.session(settings)
	h.transport.set(1.5)

	h.s.tick(sess, time.Now())

	if got := h.s.Display().Current().String(); got != "01:01:01:15" {
		t.Errorf("display = %s, want 01:01:01:15", got)
	}
}

func TestTickWithoutMIDIOutputSkipsSilently(t *testing.T) {
	h := newHarness(t, false)
	sess := h.session(settings30())
	h.transport.set(10)

	h.s.tick(sess, time.Now())
	h.s.tick(sess, time.Now())

	if n := h.wire.count("midi"); n != 0 {
		t.Errorf("MIDI messages = %d, want 0", n)
	}
	if n := h.wire.count("artnet"); n != 2 {
		t.Errorf("Art-Net packets = %d, want 2", n)
	}
	if got := sess.Stats().SkippedMIDITicks; got != 2 {
		t.Errorf("SkippedMIDITicks = %d, want 2", got)
	}
	if got := sess.Stats().MIDIErrors; got != 0 {
		t.Errorf("MIDIErrors = %d, want 0", got)
	}
	for _, e := range h.hook.AllEntries() {
		if e.Level <= logrus.WarnLevel {
			t.Errorf("unexpected %s log: %s", e.Level, e.Message)
		}
	}
}

func TestTickSendErrorsAreNotFatal(t *testing.T) {
	h := newHarness(t, true)
	sess := h.session(settings30())
	h.midi.sendErr = errors.New("device unplugged")
	h.senders[0].sendErr = errors.New("network unreachable")

	for i := 0; i < 3; i++ {
		h.transport.set(float64(i))
		h.s.tick(sess, time.Now())
	}

	stats := sess.Stats()
	if stats.Ticks != 3 {
		t.Errorf("Ticks = %d, want 3", stats.Ticks)
	}
	if stats.MIDIErrors != 24 || stats.ArtNetErrors != 3 {
		t.Errorf("errors midi=%d artnet=%d, want 24 and 3", stats.MIDIErrors, stats.ArtNetErrors)
	}
	if got := testutil.ToFloat64(h.metrics.SendErrors.WithLabelValues(metrics.SinkArtNet)); got != 3 {
		t.Errorf("artnet send errors metric = %v, want 3", got)
	}
	if got := testutil.ToFloat64(h.metrics.SendErrors.WithLabelValues(metrics.SinkMIDI)); got != 24 {
		t.Errorf("midi send errors metric = %v, want 24", got)
	}
	if got := h.s.Display().Current().String(); got != "00:00:02:00" {
		t.Errorf("display = %s, want 00:00:02:00", got)
	}

	warnings := 0
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	if warnings != 2 {
		t.Errorf("warnings = %d, want one per failing sink", warnings)
	}

	// Recovery is logged once the sink works again.
	h.senders[0].mu.Lock()
	h.senders[0].sendErr = nil
	h.senders[0].mu.Unlock()
	h.s.tick(sess, time.Now())
	if entry := h.hook.LastEntry(); entry == nil || entry.Message != "Art-Net send recovered" {
		t.Errorf("last log = %+v, want recovery message", entry)
	}
}

func TestTickQuarterCadence(t *testing.T) {
	h := newHarness(t, true)
	settings := settings30()
	settings.MTCMode = config.MTCModeQuarter
	sess := h.session(settings)

	// Position moves every tick; the eight nibbles still describe the latched value.
	for i := 0; i < 8; i++ {
		h.transport.set(3661.5 + float64(i)/120)
		h.s.tick(sess, time.Now())
	}

	var midiData []byte
	var artnetTicks []int
	for i, e := range h.wire.snapshot() {
		switch e.sink {
		case "midi":
			if len(e.data) != 2 || e.data[0] != 0xF1 {
				t.Fatalf("event %d = % X, want a quarter frame", i, e.data)
			}
			midiData = append(midiData, e.data[1])
		case "artnet":
			artnetTicks = append(artnetTicks, i)
		}
	}

	want := []byte{0x0F, 0x10, 0x21, 0x30, 0x41, 0x50, 0x61, 0x76}
	if !bytes.Equal(midiData, want) {
		t.Errorf("quarter frames = % X, want % X", midiData, want)
	}
	// Art-Net follows the quarter frame of ticks 0 and 4.
	if len(artnetTicks) != 2 || artnetTicks[0] != 1 || artnetTicks[1] != 6 {
		t.Errorf("Art-Net event positions = %v, want [1 6]", artnetTicks)
	}
	if sess.period != time.Second/30/4 {
		t.Errorf("period = %v, want a quarter frame", sess.period)
	}
}

func TestStartValidatesBeforeAcquiringResources(t *testing.T) {
	h := newHarness(t, true)
	bad := settings30()
	bad.ArtNetIP = "not-an-ip"

	if _, err := h.s.Start(bad); err == nil {
		t.Fatal("Start accepted an invalid address")
	}
	if len(h.senders) != 0 || h.transport.starts != 0 || len(h.wire.snapshot()) != 0 {
		t.Error("resources were acquired for invalid settings")
	}
	if h.s.Running() {
		t.Error("scheduler running after failed Start")
	}
}

func TestStartSendsFullFrameFromOffset(t *testing.T) {
	h := newHarness(t, true)
	settings := settings30()
	settings.Offset = models.Offset{Hours: 1, Minutes: 1, Seconds: 1, Frames: 15}

	info, err := h.s.Start(settings)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if info.ID == "" || info.ArtNet != "255.255.255.255:6454" || info.MIDI != "Test Port" {
		t.Errorf("info = %+v", info)
	}

	events := h.wire.snapshot()
	want := []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, 0x61, 0x01, 0x01, 0x0F, 0xF7}
	if len(events) == 0 || events[0].sink != "midi" || !bytes.Equal(events[0].data, want) {
		t.Fatalf("first event = %+v, want full frame % X", events, want)
	}
	if h.transport.starts != 1 {
		t.Errorf("transport starts = %d, want 1", h.transport.starts)
	}
}

func TestStartDialFailure(t *testing.T) {
	h := newHarness(t, true)
	h.dialErr = errors.New("no route")

	if _, err := h.s.Start(settings30()); err == nil {
		t.Fatal("Start succeeded without a socket")
	}
	if h.s.Running() || h.transport.starts != 0 {
		t.Error("session started without a socket")
	}
	if n := h.wire.count("midi"); n != 0 {
		t.Errorf("sent %d MIDI messages for a session that never started", n)
	}
}

func TestFirstTickMatchesFullFrame(t *testing.T) {
	offsets := []models.Offset{
		{Hours: 21, Minutes: 13, Seconds: 41, Frames: 1},
		{Hours: 21, Minutes: 13, Seconds: 41, Frames: 10},
		{Hours: 21, Minutes: 13, Seconds: 41, Frames: 17},
		{Hours: 21, Minutes: 13, Seconds: 41, Frames: 19},
		{Hours: 0, Minutes: 0, Seconds: 0, Frames: 24},
	}

	for _, offset := range offsets {
		t.Run(offset.Timecode().String(), func(t *testing.T) {
			h := newHarness(t, false)
			settings := config.DefaultSettings()
			settings.FrameRate = models.FrameRate25
			settings.Offset = offset
			sess := h.session(settings)

			h.s.tick(sess, time.Now())

			full := mtc.FullFrame(offset.Timecode(), settings.FrameRate)
			located := []byte{full[5] & 0x1F, full[6], full[7], full[8]}

			events := h.wire.snapshot()
			if len(events) != 1 {
				t.Fatalf("emitted %d events, want 1 Art-Net packet", len(events))
			}
			if got := events[0].data[15:]; !bytes.Equal(got, located) {
				t.Errorf("first tick Art-Net time = % X, full frame located % X", got, located)
			}
			if got := h.s.Display().Current(); got != offset.Timecode() {
				t.Errorf("display = %s, want %s", got, offset.Timecode())
			}
		})
	}
}

func TestStartTransportFailureClosesSocket(t *testing.T) {
	h := newHarness(t, false)
	h.transport.startErr = errors.New("no audio device")

	if _, err := h.s.Start(settings30()); err == nil {
		t.Fatal("Start succeeded without playback")
	}
	if len(h.senders) != 1 || h.senders[0].closeCount() != 1 {
		t.Error("socket not closed after playback failed to start")
	}
}

func TestStopResetsDisplayAndHaltsTicks(t *testing.T) {
	h := newHarness(t, false)
	h.transport.set(12.5)

	if _, err := h.s.Start(settings30()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return h.wire.count("artnet") >= 2 })
	if h.s.Status().State != models.SessionStateRunning {
		t.Errorf("state = %s, want running", h.s.Status().State)
	}

	if err := h.s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	status := h.s.Status()
	if status.State != models.SessionStateIdle || status.Timecode != "00:00:00:00" || status.Session != nil {
		t.Errorf("status after Stop = %+v", status)
	}
	if h.senders[0].closeCount() != 1 {
		t.Errorf("sender closed %d times, want 1", h.senders[0].closeCount())
	}
	if h.transport.stops != 1 {
		t.Errorf("transport stops = %d, want 1", h.transport.stops)
	}

	sent := h.wire.count("artnet")
	time.Sleep(100 * time.Millisecond)
	if after := h.wire.count("artnet"); after != sent {
		t.Errorf("%d packets sent after Stop", after-sent)
	}

	// A second Stop is a no-op.
	if err := h.s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if h.senders[0].closeCount() != 1 {
		t.Error("second Stop closed the socket again")
	}
}

func TestStartReplacesRunningSession(t *testing.T) {
	h := newHarness(t, false)

	first, err := h.s.Start(settings30())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	h.senders[0].mu.Lock()
	h.senders[0].closeErr = errors.New("already closed by peer")
	h.senders[0].mu.Unlock()

	second, err := h.s.Start(settings30())
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if first.ID == second.ID {
		t.Error("second session reused the first session's ID")
	}
	if len(h.senders) != 2 {
		t.Fatalf("dialed %d sockets, want 2", len(h.senders))
	}
	if h.senders[0].closeCount() != 1 || h.senders[1].closeCount() != 0 {
		t.Errorf("close counts = %d, %d, want 1, 0", h.senders[0].closeCount(), h.senders[1].closeCount())
	}
	if got := testutil.ToFloat64(h.metrics.SessionsStopped.WithLabelValues(StopReasonReplaced)); got != 1 {
		t.Errorf("replaced sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.metrics.CloseErrors); got != 1 {
		t.Errorf("close errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.metrics.ActiveSessions); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}

	if err := h.s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.senders[0].closeCount() != 1 || h.senders[1].closeCount() != 1 {
		t.Errorf("close counts after Stop = %d, %d, want 1, 1", h.senders[0].closeCount(), h.senders[1].closeCount())
	}
}

func TestSessionEndsWhenPlaybackFinishes(t *testing.T) {
	h := newHarness(t, false)
	ft := &finishingTransport{}
	ft.done = make(chan struct{})
	h.s.transport = ft

	if _, err := h.s.Start(settings30()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	close(ft.done)

	waitFor(t, func() bool { return !h.s.Running() })
	if got := testutil.ToFloat64(h.metrics.SessionsStopped.WithLabelValues(StopReasonFinished)); got != 1 {
		t.Errorf("finished sessions = %v, want 1", got)
	}
	if h.senders[0].closeCount() != 1 {
		t.Errorf("sender closed %d times, want 1", h.senders[0].closeCount())
	}
	if got := h.s.Display().Current().String(); got != "00:00:00:00" {
		t.Errorf("display = %s, want 00:00:00:00", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
