package scraper

import (
	"context"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/config"
)

// Pacing holds the fixed pauses taken between upstream calls. They keep the
// scraper under the portal's rate limiting regardless of result volume.
type Pacing struct {
	Login      time.Duration // after fetching the login page
	Request    time.Duration // before each search or detail request
	Page       time.Duration // before each additional results page
	Competency time.Duration // after each competency of a bulk run
	Role       time.Duration // after each role of a bulk run
}

// DefaultPacing mirrors a cautious human operator.
func DefaultPacing() Pacing {
	return Pacing{
		Login:      2 * time.Second,
		Request:    time.Second,
		Page:       time.Second,
		Competency: 2 * time.Second,
		Role:       3 * time.Second,
	}
}

// PacingFromConfig reads the pauses from configuration.
func PacingFromConfig(cfg *config.Config) Pacing {
	return Pacing{
		Login:      cfg.LoginDelay,
		Request:    cfg.RequestDelay,
		Page:       cfg.PageDelay,
		Competency: cfg.CompetencyDelay,
		Role:       cfg.RoleDelay,
	}
}

// pause blocks for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
