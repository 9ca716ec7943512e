package audio

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestDecodeAudioRejectsUnknownExtension(t *testing.T) {
	_, _, err := decodeAudio(filepath.Join(t.TempDir(), "show.flac"))
	if errors.Cause(err) != ErrUnsupportedFormat {
		t.Errorf("decodeAudio error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecodeAudioMissingFile(t *testing.T) {
	_, _, err := decodeAudio(filepath.Join(t.TempDir(), "missing.wav"))
	if err == nil {
		t.Fatal("decodeAudio succeeded on a missing file")
	}
	if errors.Cause(err) == ErrUnsupportedFormat {
		t.Error("missing file reported as unsupported format")
	}
}
