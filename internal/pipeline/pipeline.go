// Package pipeline drives one job through fetch, inspect, plan, transcode
// and publish. Stage failures are terminal for the job; workspace removal
// runs on every exit path.
package pipeline

import (
	"context"
	"io"
	"os"

	"clipforge/internal/media"
	"clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
	"clipforge/internal/scheduler"
	"clipforge/internal/transcode"
)

// Inspector reports duration, resolution and audio presence of a local file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (media.Report, error)
}

// Transcoder executes one transcode run.
type Transcoder interface {
	Run(ctx context.Context, req transcode.Request) error
}

type Deps struct {
	Store      ports.ObjectStore
	Inspector  Inspector
	Transcoder Transcoder
	WorkRoot   string
	Log        *logger.Logger
}

type Pipeline struct {
	store      ports.ObjectStore
	inspector  Inspector
	transcoder Transcoder
	workRoot   string
	log        *logger.Logger
}

func New(d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Pipeline{
		store:      d.Store,
		inspector:  d.Inspector,
		transcoder: d.Transcoder,
		workRoot:   d.WorkRoot,
		log:        log.WithComponent("pipeline"),
	}
}

// Run executes the full lifecycle for one job. It advances the job's stage
// states and returns the first failure; the scheduler records the terminal
// state either way.
func (p *Pipeline) Run(ctx context.Context, job *scheduler.Job) error {
	log := p.log.FromContext(ctx).WithJobID(job.ID)

	ws, err := newWorkspace(p.workRoot, job.ID, job.Source.Key)
	if err != nil {
		return errors.Wrap(err, "pipeline.workspace", "failed to create workspace")
	}
	defer ws.remove(log)

	// The scheduler marks the job FETCHING at dispatch; the remaining stage
	// transitions happen here.
	log.Debug("fetching source", "bucket", job.Source.Bucket, "key", job.Source.Key)
	if err := p.fetch(ctx, job, ws); err != nil {
		return err
	}

	job.Advance(scheduler.StateInspecting)
	report, err := p.inspector.Inspect(ctx, ws.inputPath)
	if err != nil {
		return errors.Wrap(err, "pipeline.inspect", "media inspection failed")
	}

	plan, err := media.BuildPlan(report)
	if err != nil {
		return errors.Wrap(err, "pipeline.plan", "variant planning failed")
	}
	log.Debug("variant plan derived",
		"tiers", len(plan.Variants),
		"segment_s", plan.SegmentSeconds,
		"audio", plan.IncludeAudio,
	)

	job.Advance(scheduler.StateTranscoding)
	err = p.transcoder.Run(ctx, transcode.Request{
		InputPath: ws.inputPath,
		OutputDir: ws.outputDir,
		Plan:      plan,
	})
	if err != nil {
		return errors.Wrap(err, "pipeline.transcode", "transcode failed")
	}

	job.Advance(scheduler.StatePublishing)
	uploaded, err := p.publish(ctx, job, ws)
	if err != nil {
		return err
	}
	log.Debug("outputs published", "files", uploaded)

	return nil
}

// fetch streams the source object into the workspace input file.
func (p *Pipeline) fetch(ctx context.Context, job *scheduler.Job, ws *workspace) error {
	rc, err := p.store.GetObject(ctx, job.Source.Bucket, job.Source.Key)
	if err != nil {
		return errors.Wrap(err, "pipeline.fetch", "source download failed")
	}
	defer rc.Close()

	f, err := os.Create(ws.inputPath)
	if err != nil {
		return errors.Wrap(err, "pipeline.fetch", "failed to create input file")
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return errors.WrapWithCode(err, errors.CodeStorageUnavailable, "pipeline.fetch", "source stream interrupted")
	}
	return nil
}
