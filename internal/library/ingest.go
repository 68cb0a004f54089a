package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/soundwave/internal/models"
	"github.com/desertthunder/soundwave/internal/shared"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// AddLocalFile ingests an audio file: the duration is probed by decoding,
// the title derived from the filename, and the file copied into the managed
// library directory so the original can move or disappear.
func (l *Library) AddLocalFile(path string) (models.Track, error) {
	duration, err := probeDuration(path)
	if err != nil {
		return models.Track{}, err
	}

	dest, err := l.importFile(path)
	if err != nil {
		return models.Track{}, err
	}

	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))

	track := models.Track{
		Title:    title,
		Artist:   "Unknown Artist",
		Album:    "Local Files",
		Duration: duration,
		Source:   models.SourceLocal,
		AudioURL: dest,
	}

	added, err := l.Add(track)
	if err != nil {
		os.Remove(dest)
		return models.Track{}, err
	}

	return added, nil
}

// probeDuration decodes just enough of the file to learn its length.
func probeDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	default:
		return 0, fmt.Errorf("%w: unsupported audio format %q", shared.ErrInvalidInput, filepath.Ext(path))
	}

	if err != nil {
		return 0, fmt.Errorf("failed to decode audio: %w", err)
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()).Seconds(), nil
}

// importFile copies the file into the library directory, keeping its name
// but disambiguating collisions with a generated suffix.
func (l *Library) importFile(path string) (string, error) {
	if l.dir == "" {
		return path, nil
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create library directory: %w", err)
	}

	base := filepath.Base(path)
	dest := filepath.Join(l.dir, base)

	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		name := strings.TrimSuffix(base, ext)
		dest = filepath.Join(l.dir, fmt.Sprintf("%s-%s%s", name, shared.GenerateID()[:8], ext))
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create library copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to copy audio file: %w", err)
	}

	return dest, nil
}
