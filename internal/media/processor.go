package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

const (
	probeTimeout     = 30 * time.Second
	extractTimeout   = 30 * time.Second
	thumbnailTimeout = 60 * time.Second
)

// Processor shells out to ffmpeg/ffprobe for everything that needs a
// real decoder. Instances hold no mutable state and are safe to share
// across workers.
type Processor struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	log         *slog.Logger
}

// NewProcessor resolves ffmpeg and ffprobe on PATH. Missing binaries are
// an error; nothing in the processing pipeline works without them.
func NewProcessor(tempDir string, log *slog.Logger) (*Processor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found on PATH: %w", err)
	}
	return &Processor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
		log:         log,
	}, nil
}

type ProbeResult struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

type FormatInfo struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type StreamInfo struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

func (r *ProbeResult) GetWidth() int {
	for _, s := range r.Streams {
		if s.CodecType == "video" {
			return s.Width
		}
	}
	return 0
}

func (r *ProbeResult) GetHeight() int {
	for _, s := range r.Streams {
		if s.CodecType == "video" {
			return s.Height
		}
	}
	return 0
}

func (r *ProbeResult) GetDurationSeconds() float64 {
	duration, _ := strconv.ParseFloat(r.Format.Duration, 64)
	return duration
}

// Probe reads stream and container metadata. Corrupt or unparseable
// media comes back as a MediaUnreadable outcome, not a crash.
func (p *Processor) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, p.classify(ctx, err, "probe %s", path)
	}
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, outcome.MediaUnreadable("probe %s: unparseable ffprobe output", path).WithCause(err)
	}
	return &result, nil
}

// GenerateThumbnail writes a webp thumbnail for src to dst. The output
// fits within maxDim x maxDim and is never upscaled. Video sources use
// a frame from one second in. The file appears at dst only on success;
// failed runs leave no partial output behind.
func (p *Processor) GenerateThumbnail(ctx context.Context, src, dst string, maxDim int) error {
	ctx, cancel := context.WithTimeout(ctx, thumbnailTimeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"

	args := []string{"-v", "error"}
	mediaType := models.MediaTypeFromContentType(models.ContentTypeForPath(src))
	if mediaType == models.MediaTypeVideo {
		args = append(args, "-ss", "1")
	}
	args = append(args,
		"-i", src,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", maxDim, maxDim),
		"-f", "webp",
		"-quality", "85",
		"-y", tmp,
	)

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmp)
		p.log.Warn("thumbnail generation failed", "src", src, "output", tail(output))
		return p.classify(ctx, err, "thumbnail %s", src)
	}
	return os.Rename(tmp, dst)
}

// ExtractFrame decodes one frame of path stretch-resized to exactly w x h.
func (p *Processor) ExtractFrame(ctx context.Context, path string, w, h int) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	dir, err := os.MkdirTemp(p.tempDir, "frame-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	framePath := filepath.Join(dir, "frame.png")

	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-v", "error",
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", w, h),
		"-y", framePath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		p.log.Warn("frame extraction failed", "path", path, "output", tail(output))
		return nil, p.classify(ctx, err, "extract frame of %s", path)
	}

	f, err := os.Open(framePath)
	if err != nil {
		return nil, outcome.MediaUnreadable("extract frame of %s: no frame produced", path).WithCause(err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, outcome.MediaUnreadable("extract frame of %s: undecodable frame", path).WithCause(err)
	}
	return img, nil
}

// classify maps a failed ffmpeg/ffprobe run to an outcome. A parent
// cancellation propagates as-is so jobs stop cleanly; everything else,
// timeouts included, means the media could not be read.
func (p *Processor) classify(ctx context.Context, err error, format string, args ...any) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return outcome.MediaUnreadable(format+": timed out", args...).WithCause(err)
	}
	return outcome.MediaUnreadable(format, args...).WithCause(err)
}

// tail trims command output to something sane for a log line.
func tail(output []byte) string {
	output = bytes.TrimSpace(output)
	if len(output) > 400 {
		output = output[len(output)-400:]
	}
	return string(output)
}
