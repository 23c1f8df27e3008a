package scraper

import (
	"context"

	"github.com/JustJay7/ojv-scraper/pkg/logger"
)

// CaseSource is the part of a Session the orchestrator drives.
type CaseSource interface {
	Search(ctx context.Context, role string, c Competency) []CaseSummary
	FetchDetail(ctx context.Context, caseID string, c Competency) *CaseDetail
}

// Orchestrator runs searches for every (role, competency) pair and merges the
// detail of each case found.
type Orchestrator struct {
	source CaseSource
	pacing Pacing
	logger *logger.Logger
}

// NewOrchestrator creates an orchestrator over one source.
func NewOrchestrator(source CaseSource, pacing Pacing, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{source: source, pacing: pacing, logger: logger}
}

// Run searches roles in order and, within each role, competencies in order.
// Cases come back in that order followed by row order. A failing pair
// contributes nothing and never stops the run; a cancelled ctx returns what
// was collected so far.
func (o *Orchestrator) Run(ctx context.Context, roles []string, comps []Competency) []Case {
	if len(comps) == 0 {
		comps = DefaultCompetencies
	}

	all := []Case{}
	for _, role := range roles {
		o.logger.Info("Processing role", "role", role)

		for _, c := range comps {
			for _, summary := range o.source.Search(ctx, role, c) {
				item := Case{CaseSummary: summary}
				if summary.Rit != "" {
					item.Merge(o.source.FetchDetail(ctx, summary.Rit, c))
				}
				all = append(all, item)
			}

			if err := pause(ctx, o.pacing.Competency); err != nil {
				o.logger.Warn("Bulk run cancelled", "role", role, "competency", c, "error", err)
				return all
			}
		}

		if err := pause(ctx, o.pacing.Role); err != nil {
			o.logger.Warn("Bulk run cancelled", "role", role, "error", err)
			return all
		}
	}

	o.logger.Info("Bulk run finished", "roles", len(roles), "cases", len(all))
	return all
}
