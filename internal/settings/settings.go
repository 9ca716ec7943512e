package settings

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"timepilot/config"
	"timepilot/internal/storage"
)

// Store persists the user settings as a YAML document in a storage backend
type Store struct {
	backend  storage.Storage
	path     string
	defaults config.Settings
	log      *logrus.Entry

	mu      sync.RWMutex
	current config.Settings
}

// NewStore creates a settings store. Call Load before reading Current.
func NewStore(backend storage.Storage, path string, defaults config.Settings, log *logrus.Entry) *Store {
	return &Store{
		backend:  backend,
		path:     path,
		defaults: defaults,
		log:      log.WithField("component", "settings"),
		current:  defaults,
	}
}

// Load reads the settings file. A missing file yields the defaults.
// Fields absent from the file keep their default values.
func (s *Store) Load(ctx context.Context) (config.Settings, error) {
	data, err := s.backend.Read(ctx, s.path)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.WithField("path", s.path).Info("no settings file, using defaults")
		s.set(s.defaults)
		return s.defaults, nil
	}
	if err != nil {
		return s.defaults, errors.Wrap(err, "failed to read settings")
	}

	loaded := s.defaults
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return s.defaults, errors.Wrapf(err, "failed to parse %s", s.path)
	}

	validated, err := loaded.Validate(s.log)
	if err != nil {
		s.log.WithError(err).Warn("stored settings are invalid, using defaults")
		s.set(s.defaults)
		return s.defaults, nil
	}

	s.set(validated)
	return validated, nil
}

// Save validates and persists settings, returning the stored value
func (s *Store) Save(ctx context.Context, in config.Settings) (config.Settings, error) {
	validated, err := in.Validate(s.log)
	if err != nil {
		return in, err
	}

	data, err := yaml.Marshal(validated)
	if err != nil {
		return in, errors.Wrap(err, "failed to encode settings")
	}
	if err := s.backend.Write(ctx, s.path, data); err != nil {
		return in, errors.Wrap(err, "failed to write settings")
	}

	s.set(validated)
	s.log.WithFields(logrus.Fields{
		"artnet":    validated.ArtNetIP,
		"frameRate": validated.FrameRate.String(),
		"mtcMode":   validated.MTCMode,
	}).Info("settings saved")
	return validated, nil
}

// Reset deletes the settings file and restores the defaults
func (s *Store) Reset(ctx context.Context) (config.Settings, error) {
	if err := s.backend.Delete(ctx, s.path); err != nil {
		return s.Current(), errors.Wrap(err, "failed to delete settings")
	}
	s.set(s.defaults)
	return s.defaults, nil
}

// Current returns the last loaded or saved settings
func (s *Store) Current() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) set(v config.Settings) {
	s.mu.Lock()
	s.current = v
	s.mu.Unlock()
}
