package webapp

import (
	"net/http"
	"sort"
	"time"

	"survey-manager/internal/app"
)

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	schemaVersion, _ := s.store.GetSchemaMetaValue(r.Context(), "schema_version")
	schemaName, _ := s.store.GetSchemaMetaValue(r.Context(), "schema_name")

	stepTotal := 0
	for _, stage := range s.bundles.Checklist.Stages {
		stepTotal += len(stage.Steps)
	}
	profiles := make([]string, 0, len(s.bundles.Thresholds.Profiles))
	for name := range s.bundles.Thresholds.Profiles {
		profiles = append(profiles, name)
	}
	sort.Strings(profiles)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().Unix(),
		"app": map[string]any{
			"version":    app.Version,
			"commit":     app.Commit,
			"build_time": app.BuildTime,
		},
		"db": map[string]any{
			"schema_version": schemaVersion,
			"schema_name":    schemaName,
			"path":           s.opts.DBPath,
		},
		"checklist": map[string]any{
			"path":    s.opts.ChecklistPath,
			"version": s.bundles.Checklist.Version,
			"stages":  len(s.bundles.Checklist.Stages),
			"steps":   stepTotal,
			"sha256":  s.bundles.ChecklistSHA256,
		},
		"thresholds": map[string]any{
			"path":     s.opts.ThresholdPath,
			"version":  s.bundles.Thresholds.Version,
			"default":  s.bundles.Thresholds.Default,
			"profiles": profiles,
			"sha256":   s.bundles.ThresholdSHA256,
		},
	})
}
