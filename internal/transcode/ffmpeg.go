// Package transcode runs the external transcoding engine (ffmpeg) to turn a
// source file and a variant plan into an HLS rendition set.
package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"clipforge/internal/media"
	"clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
)

// Output naming contract: one master manifest, one playlist and segment set
// per variant, indexed by variant position in the plan.
const (
	MasterManifest = "master.m3u8"

	variantPlaylistPattern = "%v.m3u8"
	segmentPattern         = "%v_segment%d.ts"
)

// Request describes one transcode run.
type Request struct {
	InputPath string
	OutputDir string
	Plan      media.Plan
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFmpeg invokes the ffmpeg binary. One invocation produces the full ladder.
type FFmpeg struct {
	binary string
	run    runFunc
	log    *logger.Logger
}

func NewFFmpeg(log *logger.Logger) *FFmpeg {
	if log == nil {
		log = logger.NewDefault()
	}
	return &FFmpeg{
		binary: "ffmpeg",
		run:    runCombined,
		log:    log.WithComponent("transcoder"),
	}
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Run executes the transcode. Any engine failure is terminal for the job and
// surfaces as CodeTranscodeFailed with the tail of ffmpeg's output attached.
func (f *FFmpeg) Run(ctx context.Context, req Request) error {
	if len(req.Plan.Variants) == 0 {
		return errors.New(errors.CodeInvalidMedia, "plan has no variants")
	}

	args := BuildArgs(req)
	f.log.Debug("starting ffmpeg",
		"input", req.InputPath,
		"variants", len(req.Plan.Variants),
		"segment_s", req.Plan.SegmentSeconds,
		"audio", req.Plan.IncludeAudio,
	)

	out, err := f.run(ctx, f.binary, args...)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeTranscodeFailed, "transcode.run", "ffmpeg failed").
			WithField("output", tail(string(out), 2000))
	}

	return nil
}

// BuildArgs assembles the ffmpeg argument list for a request. Exposed so the
// command shape is testable without an ffmpeg binary.
func BuildArgs(req Request) []string {
	args := []string{
		"-hide_banner",
		"-y",
		"-i", req.InputPath,
	}

	// Stream mapping: one video stream per tier, plus the shared audio
	// stream mapped into every tier when the source has audio.
	for range req.Plan.Variants {
		args = append(args, "-map", "0:v:0")
		if req.Plan.IncludeAudio {
			args = append(args, "-map", "0:a:0")
		}
	}

	for i, v := range req.Plan.Variants {
		args = append(args,
			fmt.Sprintf("-c:v:%d", i), "libx264",
			fmt.Sprintf("-b:v:%d", i), fmt.Sprintf("%dk", v.BitrateKbps),
			fmt.Sprintf("-filter:v:%d", i), fmt.Sprintf("scale=%d:-2", v.Width),
		)
	}

	if req.Plan.IncludeAudio {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}

	groups := make([]string, len(req.Plan.Variants))
	for i := range req.Plan.Variants {
		if req.Plan.IncludeAudio {
			groups[i] = fmt.Sprintf("v:%d,a:%d", i, i)
		} else {
			groups[i] = fmt.Sprintf("v:%d", i)
		}
	}

	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", req.Plan.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", filepath.Join(req.OutputDir, segmentPattern),
		"-master_pl_name", MasterManifest,
		"-var_stream_map", strings.Join(groups, " "),
		filepath.Join(req.OutputDir, variantPlaylistPattern),
	)

	return args
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
