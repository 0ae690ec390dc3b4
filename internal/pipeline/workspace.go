package pipeline

import (
	"os"
	"path/filepath"

	"clipforge/internal/pkg/logger"
)

// workspace is the job-scoped staging area: {root}/{jobID}/input<ext> for
// the downloaded source and {root}/{jobID}/output/ for the rendition set.
// It is owned exclusively by the executing job and removed before the next
// job starts.
type workspace struct {
	dir       string
	inputPath string
	outputDir string
}

func newWorkspace(root, jobID, sourceKey string) (*workspace, error) {
	dir := filepath.Join(root, jobID)
	outputDir := filepath.Join(dir, "output")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	// Keep the source extension so the probe and the engine can sniff the
	// container format.
	inputName := "input" + filepath.Ext(sourceKey)

	return &workspace{
		dir:       dir,
		inputPath: filepath.Join(dir, inputName),
		outputDir: outputDir,
	}, nil
}

// remove deletes the whole workspace tree. Removal failures are logged, not
// propagated: they must not change the job's outcome.
func (ws *workspace) remove(log *logger.Logger) {
	if err := os.RemoveAll(ws.dir); err != nil {
		log.WithError(err).Warn("workspace removal failed", "dir", ws.dir)
	}
}
