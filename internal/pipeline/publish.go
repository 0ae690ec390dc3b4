package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"clipforge/internal/pkg/errors"
	"clipforge/internal/ports"
	"clipforge/internal/scheduler"
)

// publish uploads every file in the workspace output directory to
// {outputPrefix}/{filename} in the source's bucket, with the content type
// derived from the file suffix. Returns the number of files uploaded.
func (p *Pipeline) publish(ctx context.Context, job *scheduler.Job, ws *workspace) (int, error) {
	entries, err := os.ReadDir(ws.outputDir)
	if err != nil {
		return 0, errors.Wrap(err, "pipeline.publish", "failed to enumerate outputs")
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := p.uploadOutput(ctx, job, ws, entry.Name()); err != nil {
			return uploaded, err
		}
		uploaded++
	}

	if uploaded == 0 {
		return 0, errors.New(errors.CodeTranscodeFailed, "engine produced no output files")
	}
	return uploaded, nil
}

func (p *Pipeline) uploadOutput(ctx context.Context, job *scheduler.Job, ws *workspace, name string) error {
	localPath := filepath.Join(ws.outputDir, name)

	st, err := os.Stat(localPath)
	if err != nil {
		return errors.Wrap(err, "pipeline.publish", "output file not found")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "pipeline.publish", "failed to open output file")
	}
	defer f.Close()

	err = p.store.PutObject(ctx, ports.PutObjectInput{
		Bucket:      job.Source.Bucket,
		Key:         job.OutputPrefix + "/" + name,
		ContentType: ContentTypeFor(name),
		Reader:      f,
		Size:        st.Size(),
	})
	if err != nil {
		return errors.Wrapf(err, "pipeline.publish", "upload failed for %s", name)
	}
	return nil
}

// ContentTypeFor maps an output filename to its upload content type.
func ContentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}
