package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"legato/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// DefaultFormats lists the extensions the extractor understands
var DefaultFormats = []string{".mp3", ".flac", ".wav", ".m4a", ".ogg"}

// Extractor reads tags and durations from audio payloads. Missing values are
// left empty for the library to normalize; extraction never fails a file.
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	if len(supportedFormats) == 0 {
		supportedFormats = DefaultFormats
	}
	if logger == nil {
		logger = logrus.New()
	}
	formats := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		formats[i] = strings.ToLower(f)
	}
	return &Extractor{supportedFormats: formats, logger: logger}
}

// ExtractFromFile reads a whole file and extracts its metadata. The bytes are
// returned so the caller can store them without reading the file twice.
func (e *Extractor) ExtractFromFile(path string) (models.SongMetadata, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.WithError(err).WithField("filePath", path).Error("Failed to read audio file")
		return models.SongMetadata{}, nil, err
	}
	return e.Extract(path, bytes.NewReader(data)), data, nil
}

// Extract reads tags and duration from r. name is only used for its extension
// and as the fallback title source.
func (e *Extractor) Extract(name string, r io.ReadSeeker) models.SongMetadata {
	startTime := time.Now()
	meta := models.SongMetadata{
		FileName: name,
		MimeType: e.ContentType(name),
	}

	duration, err := e.duration(name, r)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"fileName": name,
			"error":    err.Error(),
		}).Warn("Failed to calculate duration, setting to 0")
	}
	meta.Duration = duration

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return meta
	}
	tags, err := tag.ReadFrom(r)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"fileName": name,
			"error":    err.Error(),
		}).Warn("Failed to extract tags, using filename")
		return meta
	}

	meta.Title = strings.TrimSpace(tags.Title())
	meta.Artist = strings.TrimSpace(tags.Artist())
	if meta.Artist == "" {
		meta.Artist = strings.TrimSpace(tags.AlbumArtist())
	}
	meta.Album = strings.TrimSpace(tags.Album())

	e.logger.WithFields(logrus.Fields{
		"fileName":       name,
		"title":          meta.Title,
		"artist":         meta.Artist,
		"album":          meta.Album,
		"duration":       meta.Duration,
		"processingTime": time.Since(startTime),
	}).Debug("Successfully extracted metadata")
	return meta
}

// duration returns the length in whole seconds
func (e *Extractor) duration(name string, r io.ReadSeeker) (int, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return durationMP3(r, size)
	case ".flac":
		return durationFLAC(r)
	case ".wav":
		return durationWAV(r, size)
	case ".m4a":
		return durationM4A(r)
	}
	return 0, fmt.Errorf("unsupported format: %s", filepath.Ext(name))
}

// durationMP3 sums frame durations and falls back to a 192 kbps estimate when
// no frame decodes.
func durationMP3(r io.Reader, size int64) (int, error) {
	dec := mp3.NewDecoder(r)
	var (
		total   time.Duration
		skipped int
		frames  int
	)
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) || frames > 0 {
				break
			}
			return estimateFromSize(size, 192000)
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds()), nil
}

// durationFLAC reads the STREAMINFO block
func durationFLAC(r io.Reader) (int, error) {
	stream, err := flac.New(r)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// durationWAV reads the header and derives the length from the payload size
func durationWAV(r io.ReadSeeker, size int64) (int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	const headerSize = 44
	pcmBytes := max(size-headerSize, 0)
	frameSize := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if frameSize <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	secs := float64(pcmBytes/frameSize) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// durationM4A scans the top-level atoms for moov/mvhd and reads its timescale
// and duration.
func durationM4A(r io.ReadSeeker) (int, error) {
	head := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, head); err != nil {
			return 0, err
		}
		size := int64(binary.BigEndian.Uint32(head[0:4]))
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if string(head[4:8]) != "moov" {
			if _, err := r.Seek(size-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}

		for read := int64(8); read < size; {
			if _, err := io.ReadFull(r, head); err != nil {
				return 0, err
			}
			subSize := int64(binary.BigEndian.Uint32(head[0:4]))
			if subSize < 8 {
				return 0, fmt.Errorf("invalid sub-atom size")
			}
			if string(head[4:8]) == "mvhd" {
				return readMVHD(r)
			}
			if _, err := r.Seek(subSize-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += subSize
		}
		return 0, fmt.Errorf("mvhd atom not found")
	}
}

func readMVHD(r io.ReadSeeker) (int, error) {
	version := make([]byte, 1)
	if _, err := io.ReadFull(r, version); err != nil {
		return 0, err
	}
	// flags plus creation and modification times
	skip := int64(3 + 4 + 4)
	if version[0] == 1 {
		skip = 3 + 8 + 8
	}
	if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
		return 0, err
	}

	var timescale uint32
	if err := binary.Read(r, binary.BigEndian, &timescale); err != nil {
		return 0, err
	}
	if timescale == 0 {
		return 0, fmt.Errorf("invalid timescale")
	}
	var units uint64
	if version[0] == 1 {
		if err := binary.Read(r, binary.BigEndian, &units); err != nil {
			return 0, err
		}
	} else {
		var u32 uint32
		if err := binary.Read(r, binary.BigEndian, &u32); err != nil {
			return 0, err
		}
		units = uint64(u32)
	}
	return int(float64(units)/float64(timescale) + 0.5), nil
}

func estimateFromSize(size int64, bitrate int) (int, error) {
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	return int((size * 8) / int64(bitrate)), nil
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	return slices.Contains(e.supportedFormats, strings.ToLower(filepath.Ext(filePath)))
}

// SupportedFormats returns the configured extensions
func (e *Extractor) SupportedFormats() []string {
	return slices.Clone(e.supportedFormats)
}

// ContentType returns the MIME type for an audio file
func (e *Extractor) ContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
