// Package audioconv shells out to ffmpeg for format conversion and
// concatenation. IVR switches hand us μ-law, a-law, GSM, raw slin, or
// container formats; the speech backend wants 16-bit mono PCM WAV.
package audioconv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/snarg/agrivoice/internal/pipeline"
)

// ffmpegAvailable caches whether ffmpeg is in PATH (checked once at startup).
var ffmpegAvailable *bool

// CheckFFmpeg checks if ffmpeg is available in PATH. Call once at startup.
func CheckFFmpeg() bool {
	if ffmpegAvailable != nil {
		return *ffmpegAvailable
	}
	_, err := exec.LookPath("ffmpeg")
	avail := err == nil
	ffmpegAvailable = &avail
	return avail
}

// Converter produces canonical WAV files in OutDir.
type Converter struct {
	OutDir     string
	SampleRate int           // default 16000
	Timeout    time.Duration // default 5m
}

// inputArgs returns the ffmpeg input flags for raw telephony formats that
// carry no header to sniff.
func inputArgs(ext string) []string {
	switch ext {
	case ".ulaw":
		return []string{"-f", "mulaw", "-ar", "8000", "-ac", "1"}
	case ".alaw":
		return []string{"-f", "alaw", "-ar", "8000", "-ac", "1"}
	case ".sln":
		return []string{"-f", "s16le", "-ar", "8000", "-ac", "1"}
	case ".gsm":
		return []string{"-f", "gsm", "-ar", "8000", "-ac", "1"}
	default:
		return nil // container formats identify themselves
	}
}

// Convert transcodes src to 16-bit mono PCM WAV and returns the output path.
func (c *Converter) Convert(ctx context.Context, src string) (string, error) {
	if !CheckFFmpeg() {
		return "", pipeline.Errf(pipeline.KindConversionFailed, "ffmpeg not found in PATH")
	}

	rate := c.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(c.OutDir, base+".wav")

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	args = append(args, inputArgs(strings.ToLower(filepath.Ext(src)))...)
	args = append(args,
		"-i", src,
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", "1",
		out,
	)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(out)
		return "", pipeline.Errf(pipeline.KindConversionFailed,
			"ffmpeg %s: %v: %s", filepath.Base(src), err, strings.TrimSpace(string(output)))
	}
	return out, nil
}

// Concat joins MP3 segments into one file using ffmpeg's concat demuxer.
func Concat(ctx context.Context, segments []string, out string) error {
	if !CheckFFmpeg() {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	if len(segments) == 0 {
		return fmt.Errorf("no segments to concatenate")
	}
	if len(segments) == 1 {
		data, err := os.ReadFile(segments[0])
		if err != nil {
			return err
		}
		return os.WriteFile(out, data, 0o644)
	}

	list, err := os.CreateTemp("", "agrivoice-concat-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(list.Name())
	for _, seg := range segments {
		fmt.Fprintf(list, "file '%s'\n", seg)
	}
	list.Close()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", list.Name(),
		"-c", "copy",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(out)
		return fmt.Errorf("ffmpeg concat: %v: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
