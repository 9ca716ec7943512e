package cmd

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"timepilot/config"
	"timepilot/internal/display"
	"timepilot/internal/metrics"
	"timepilot/internal/midiout"
	"timepilot/internal/midiout/rtmidi"
	"timepilot/internal/playback"
	"timepilot/internal/scheduler"
	"timepilot/internal/settings"
	"timepilot/internal/storage"
)

// engine is the wired sync engine shared by serve and play
type engine struct {
	log      *logrus.Entry
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	backend  storage.Storage
	store    *settings.Store
	driver   *rtmidi.Driver
	midi     *midiout.Router
	display  *display.Hub
	sched    *scheduler.Scheduler
}

func newEngine(ctx context.Context, cfg *config.Config, transport playback.Transport) (*engine, error) {
	e := &engine{log: logrus.NewEntry(logger)}

	// Initialize metrics
	e.registry = prometheus.NewRegistry()
	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	e.metrics = metrics.New(e.registry)

	// Initialize storage
	backend, err := newStorage(ctx, cfg, e.log)
	if err != nil {
		return nil, err
	}
	e.backend = backend

	e.store = settings.NewStore(backend, cfg.SettingsPath, cfg.Defaults, e.log)
	current, err := e.store.Load(ctx)
	if err != nil {
		e.log.WithError(err).Warn("failed to load settings, using defaults")
	}

	// Initialize MIDI; timecode still goes out over Art-Net without it
	var lister midiout.Lister
	driver, err := rtmidi.Open()
	if err != nil {
		e.log.WithError(err).Warn("MIDI unavailable")
	} else {
		e.driver = driver
		lister = driver
	}
	e.midi = midiout.NewRouter(lister, e.log)
	if current.MIDIOutput != "" {
		if err := e.midi.Select(current.MIDIOutput); err != nil {
			e.log.WithError(err).WithField("output", current.MIDIOutput).Warn("stored MIDI output is not available")
		}
	}

	e.display = display.New(e.metrics)
	e.sched = scheduler.New(transport, e.midi, nil, e.display, e.metrics, e.log)
	e.sched.StopTimeout = cfg.StopTimeout

	return e, nil
}

// newStorage picks the settings backend from the configuration
func newStorage(ctx context.Context, cfg *config.Config, log *logrus.Entry) (storage.Storage, error) {
	if cfg.StorageType == "gcs" {
		if cfg.GCSBucketName == "" {
			return nil, errors.New("GCS_BUCKET_NAME must be set when STORAGE_TYPE=gcs")
		}
		gcsStorage, err := storage.NewGCSStorage(ctx, cfg.GCSProjectID, cfg.GCSBucketName, cfg.GCSBaseDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize GCS storage")
		}
		log.WithFields(logrus.Fields{
			"bucket":  cfg.GCSBucketName,
			"project": cfg.GCSProjectID,
			"baseDir": cfg.GCSBaseDir,
		}).Info("storage initialized: GCS")
		return gcsStorage, nil
	}

	localStorage, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize local storage")
	}
	log.WithField("dir", cfg.StorageDir).Info("storage initialized: local")
	return localStorage, nil
}

// Close stops the running session and releases MIDI and storage
func (e *engine) Close() {
	if err := e.sched.Stop(); err != nil {
		e.log.WithError(err).Warn("failed to stop session")
	}
	e.display.Close()
	e.midi.Close()
	if e.driver != nil {
		if err := e.driver.Close(); err != nil {
			e.log.WithError(err).Warn("failed to close MIDI driver")
		}
	}
	if closer, ok := e.backend.(io.Closer); ok {
		closer.Close()
	}
}
