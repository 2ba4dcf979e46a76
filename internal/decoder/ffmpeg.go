package decoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// AudioFormat represents decoded audio format
type AudioFormat struct {
	SampleRate    int
	BitsPerSample int
	Channels      int
}

// IsRemote reports whether source is fetched over HTTP
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// LocalPath strips a file:// scheme
func LocalPath(source string) string {
	return strings.TrimPrefix(source, "file://")
}

func checkLocal(source string) error {
	if IsRemote(source) {
		return nil
	}
	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", source)
		}
		return fmt.Errorf("cannot access file: %w", err)
	}
	return nil
}

func run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w\nstderr: %s", name, err, stderr.String())
	}
	return out.String(), nil
}

// ProbeFormat detects the native audio format of a file/URL using ffprobe
func ProbeFormat(ctx context.Context, source string) (*AudioFormat, error) {
	source = LocalPath(source)
	if err := checkLocal(source); err != nil {
		return nil, err
	}

	// bits_per_raw_sample works for compressed formats like FLAC
	out, err := run(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "default=noprint_wrappers=1:nokey=1",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels,bits_per_raw_sample",
		source,
	)
	if err != nil {
		return nil, err
	}
	return parseFormat(out)
}

func parseFormat(out string) (*AudioFormat, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("unexpected ffprobe output")
	}

	sampleRate, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid sample rate: %w", err)
	}

	channels, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid channels: %w", err)
	}

	bitsPerSample := 16
	if len(lines) > 2 {
		if bps, err := strconv.Atoi(strings.TrimSpace(lines[2])); err == nil && bps > 0 {
			bitsPerSample = bps
		}
	}

	return &AudioFormat{
		SampleRate:    sampleRate,
		BitsPerSample: bitsPerSample,
		Channels:      channels,
	}, nil
}

// DecodeToWAVFile decodes audio to a 16-bit stereo PCM WAV file at
// outputPath. A positive sampleRate resamples during decode; otherwise the
// native rate is kept.
//
// Returns the format written.
func DecodeToWAVFile(ctx context.Context, source, outputPath string, sampleRate int) (*AudioFormat, error) {
	source = LocalPath(source)
	nativeFormat, err := ProbeFormat(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to probe audio format: %w", err)
	}

	args := []string{
		"-nostdin",
		"-i", source,
		"-vn",
		"-f", "wav",
		"-acodec", "pcm_s16le",
		"-ac", "2",
	}
	format := AudioFormat{SampleRate: nativeFormat.SampleRate, BitsPerSample: 16, Channels: 2}
	if sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(sampleRate))
		format.SampleRate = sampleRate
	}
	args = append(args, "-y", outputPath)

	if _, err := run(ctx, "ffmpeg", args...); err != nil {
		os.Remove(outputPath)
		return nil, err
	}

	return &format, nil
}

// ProbeMetadata extracts metadata tags from an audio file using ffprobe.
// Keys are lower-cased tag names ("artist", "album", "title", ...) plus
// "duration" in seconds when known.
func ProbeMetadata(ctx context.Context, source string) (map[string]string, error) {
	source = LocalPath(source)
	if err := checkLocal(source); err != nil {
		return nil, err
	}

	out, err := run(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "default=noprint_wrappers=1",
		"-show_entries", "format_tags:format=duration",
		source,
	)
	if err != nil {
		return nil, err
	}
	return ParseTags(out), nil
}

// ParseTags parses ffprobe key=value output into a tag map
func ParseTags(out string) map[string]string {
	metadata := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Split on first '=' to handle values that contain '='
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimPrefix(key, "TAG:"))
		value = strings.TrimSpace(value)

		if value != "" && value != "N/A" {
			metadata[key] = value
		}
	}
	return metadata
}

// Duration returns the "duration" tag as a time.Duration
func Duration(metadata map[string]string) (time.Duration, bool) {
	s, ok := metadata["duration"]
	if !ok {
		return 0, false
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
