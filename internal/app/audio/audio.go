package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ProbeDuration returns the audio length in seconds as reported by
// ffprobe.
func ProbeDuration(ctx context.Context, filePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %v, stderr: %s", filePath, err, stderr.String())
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration for %s: %w", filePath, err)
	}
	return duration, nil
}

// Compressor re-encodes audio to a fixed lossy profile so oversized
// inputs fit under the raw size ceiling. One shot, no retries; the
// caller decides what a failure means.
type Compressor struct {
	bitrateKbps int
	channels    int
	logger      *zap.Logger
}

func NewCompressor(bitrateKbps, channels int, logger *zap.Logger) *Compressor {
	return &Compressor{
		bitrateKbps: bitrateKbps,
		channels:    channels,
		logger:      logger,
	}
}

// Compress writes a low-bitrate mp3 next to the input file and returns
// its path. On ffmpeg failure the partial output is removed.
func (c *Compressor) Compress(ctx context.Context, inputPath string) (string, error) {
	outputPath := compressedPath(inputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", c.bitrateKbps),
		"-ac", strconv.Itoa(c.channels),
		outputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("compressing audio",
		zap.String("input", inputPath),
		zap.Int("bitrate_kbps", c.bitrateKbps),
		zap.Int("channels", c.channels))

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg compress %s: %v, stderr: %s", inputPath, err, stderr.String())
	}
	return outputPath, nil
}

func compressedPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_compressed.mp3"
}
