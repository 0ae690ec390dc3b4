package media

import (
	"clipforge/internal/pkg/errors"
)

// Variant is one output quality tier of the adaptive-bitrate ladder.
type Variant struct {
	// BitrateKbps is the target video bitrate.
	BitrateKbps int
	// Width is the target output width. Never exceeds the native width.
	Width int
}

// Plan is the derived encoding plan for one job. It is computed fresh per
// job from the probe report and never persisted.
type Plan struct {
	Variants       []Variant
	SegmentSeconds int
	IncludeAudio   bool
}

// Tier ladder and segmentation policy.
const (
	lowBitrateKbps  = 400
	midBitrateKbps  = 1000
	highBitrateKbps = 2000

	lowWidthCap = 480
	midWidthCap = 1280

	shortSegmentSeconds = 2
	longSegmentSeconds  = 4

	// Sources at or above this duration use the longer segment length to
	// keep the segment file count reasonable.
	longVideoSeconds = 300
)

// BuildPlan derives the variant ladder for a source:
// height ≤ 360 yields one tier, height ≤ 720 two, anything taller three.
// Tier widths are capped so no tier upscales beyond the native width.
func BuildPlan(r Report) (Plan, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return Plan{}, errors.Newf(errors.CodeInvalidMedia, "invalid resolution %dx%d", r.Width, r.Height)
	}
	if r.DurationSeconds <= 0 {
		return Plan{}, errors.Newf(errors.CodeInvalidMedia, "invalid duration %.2f", r.DurationSeconds)
	}

	variants := []Variant{
		{BitrateKbps: lowBitrateKbps, Width: min(lowWidthCap, r.Width)},
	}
	if r.Height > 360 {
		variants = append(variants, Variant{BitrateKbps: midBitrateKbps, Width: min(midWidthCap, r.Width)})
	}
	if r.Height > 720 {
		variants = append(variants, Variant{BitrateKbps: highBitrateKbps, Width: r.Width})
	}

	seg := shortSegmentSeconds
	if r.DurationSeconds >= longVideoSeconds {
		seg = longSegmentSeconds
	}

	return Plan{
		Variants:       variants,
		SegmentSeconds: seg,
		IncludeAudio:   r.HasAudio,
	}, nil
}
