package inliner

import (
	"context"

	"github.com/IshaanNene/MediaGoat/internal/jobs"
)

// StartResult is the job-entry response shape.
type StartResult struct {
	Status string `json:"status"`
}

// StartMediaInliner enqueues the migration as the external-media-inliner
// job and reports acceptance. An empty domains list means the built-in
// defaults.
func (s *Service) StartMediaInliner(runner *jobs.Runner, domains []string) StartResult {
	runner.Add(jobs.ExternalMediaInliner, func(ctx context.Context) error {
		return s.Inline(ctx, domains)
	})
	return StartResult{Status: "success"}
}
