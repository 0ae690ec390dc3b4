package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"clipforge/internal/httpkit"
)

// Health reports service liveness plus queue depth and the busy flag.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	queueLength, busy := h.sched.Stats()

	health := map[string]any{
		"status":      "ok",
		"service":     "clipforge",
		"queueLength": queueLength,
		"busy":        busy,
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := map[string]any{
			"storage": map[string]any{
				"status":   "ok",
				"provider": h.store.Provider(),
			},
			"workdir": h.checkWorkDir(),
		}
		health["checks"] = checks

		for _, check := range checks {
			if m, ok := check.(map[string]any); ok && m["status"] != "ok" {
				health["status"] = "degraded"
				h.log.FromContext(r.Context()).Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, 200, health)
}

// checkWorkDir verifies the pipeline work root is writable.
func (h *Handler) checkWorkDir() map[string]any {
	result := map[string]any{
		"status": "ok",
		"path":   h.workRoot,
	}

	probe := filepath.Join(h.workRoot, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
		return result
	}
	_ = os.Remove(probe)
	return result
}
