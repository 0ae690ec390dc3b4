package media

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
)

// Report describes a local media file as seen by the probe.
type Report struct {
	// DurationSeconds is the container duration.
	DurationSeconds float64
	// Width and Height are the native resolution of the first video stream.
	Width  int
	Height int
	// HasAudio reports whether the source carries at least one audio stream.
	HasAudio bool
}

// runFunc executes an external command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Prober inspects media files by invoking ffprobe.
type Prober struct {
	binary string
	run    runFunc
	log    *logger.Logger
}

func NewProber(log *logger.Logger) *Prober {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Prober{
		binary: "ffprobe",
		run:    runCommand,
		log:    log.WithComponent("prober"),
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// probeOutput mirrors the subset of ffprobe's JSON output we consume.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Inspect runs ffprobe against the file at path and reports duration,
// native resolution and audio presence.
func (p *Prober) Inspect(ctx context.Context, path string) (Report, error) {
	out, err := p.run(ctx, p.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return Report{}, errors.WrapWithCode(err, errors.CodeInvalidMedia, "media.inspect", "ffprobe failed")
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Report{}, errors.WrapWithCode(err, errors.CodeInvalidMedia, "media.inspect", "unparseable ffprobe output")
	}

	var rep Report
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if rep.Width == 0 {
				rep.Width = s.Width
				rep.Height = s.Height
			}
		case "audio":
			rep.HasAudio = true
		}
	}

	if parsed.Format.Duration != "" {
		d, err := strconv.ParseFloat(parsed.Format.Duration, 64)
		if err != nil {
			return Report{}, errors.WrapWithCode(err, errors.CodeInvalidMedia, "media.inspect", "unparseable duration")
		}
		rep.DurationSeconds = d
	}

	if rep.Width <= 0 || rep.Height <= 0 {
		return Report{}, errors.New(errors.CodeInvalidMedia, "no video stream found").WithField("path", path)
	}
	if rep.DurationSeconds <= 0 {
		return Report{}, errors.New(errors.CodeInvalidMedia, "missing or zero duration").WithField("path", path)
	}

	p.log.Debug("media inspected",
		"path", path,
		"duration_s", rep.DurationSeconds,
		"width", rep.Width,
		"height", rep.Height,
		"has_audio", rep.HasAudio,
	)

	return rep, nil
}
