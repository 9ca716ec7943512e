package config

import (
	"os"
	"strconv"
	"time"

	"timepilot/pkg/models"
)

// Config holds all process configuration
type Config struct {
	// HTTP control API
	HTTPAddr     string
	ControlToken string // empty disables auth on mutating routes

	// Settings storage
	StorageType   string // "local" or "gcs"
	StorageDir    string
	SettingsPath  string // object path of the settings file inside the storage backend
	GCSProjectID  string
	GCSBucketName string
	GCSBaseDir    string

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Engine
	StopTimeout time.Duration // upper bound for a session teardown
	SSEBuffer   int           // per-subscriber buffer of the timecode feed

	// Defaults applied when no settings file exists yet
	Defaults Settings
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	defaults := DefaultSettings()
	defaults.ArtNetIP = getEnv("ARTNET_IP", defaults.ArtNetIP)
	defaults.ArtNetPort = getIntEnv("ARTNET_PORT", defaults.ArtNetPort)
	defaults.FrameRate = getFrameRateEnv("FRAME_RATE", defaults.FrameRate)
	defaults.MIDIOutput = getEnv("MIDI_OUTPUT", defaults.MIDIOutput)
	defaults.MTCMode = MTCMode(getEnv("MTC_MODE", string(defaults.MTCMode)))

	return &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		ControlToken:  getEnv("CONTROL_TOKEN", ""),
		StorageType:   getEnv("STORAGE_TYPE", "local"),
		StorageDir:    getEnv("STORAGE_DIR", "./data"),
		SettingsPath:  getEnv("SETTINGS_PATH", "settings.yaml"),
		GCSProjectID:  getEnv("GCS_PROJECT_ID", ""),
		GCSBucketName: getEnv("GCS_BUCKET_NAME", ""),
		GCSBaseDir:    getEnv("GCS_BASE_DIR", "timepilot"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		StopTimeout:   getDurationEnv("STOP_TIMEOUT", 2*time.Second),
		SSEBuffer:     getIntEnv("SSE_BUFFER", 16),
		Defaults:      defaults,
	}
}

// Helper functions to get environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFrameRateEnv(key string, defaultValue models.FrameRate) models.FrameRate {
	if value := os.Getenv(key); value != "" {
		if rate, err := strconv.ParseFloat(value, 64); err == nil {
			return models.FrameRate(rate)
		}
	}
	return defaultValue
}
