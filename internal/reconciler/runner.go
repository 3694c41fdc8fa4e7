package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/pvreconcile/internal/log"
	"github.com/chrissnell/pvreconcile/pkg/config"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Runner executes site runs with bounded parallelism. Days within a site
// are always processed in order; sites have no order between them.
type Runner struct {
	out     *Outputs
	workers int
}

// NewRunner creates a Runner with at most workers concurrent sites.
func NewRunner(out *Outputs, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{out: out, workers: workers}
}

// Run reconciles every site of every dataset. It returns one result per
// site in configuration order, and an error combining every aborted site.
// An aborted site never stops the others.
func (r *Runner) Run(ctx context.Context, datasets []config.DatasetData) ([]*SiteResult, error) {
	type job struct {
		ds   *Dataset
		site config.SiteData
		slot int
	}

	var results []*SiteResult
	var jobs []job
	for _, cfg := range datasets {
		ds, err := PrepareDataset(cfg)
		for _, site := range cfg.Sites {
			if err != nil {
				results = append(results, failed(cfg.Name, site.ID, err))
				continue
			}
			results = append(results, nil)
			jobs = append(jobs, job{ds: ds, site: site, slot: len(results) - 1})
		}
		if err != nil {
			log.Errorw("dataset could not be prepared", "dataset", cfg.Name, "error", err)
		}
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if ctx.Err() != nil {
				results[j.slot] = failed(j.ds.Config.Name, j.site.ID, ctx.Err())
				return nil
			}
			s, err := NewSite(j.ds, j.site, r.out)
			if err != nil {
				results[j.slot] = failed(j.ds.Config.Name, j.site.ID, err)
				return nil
			}
			results[j.slot] = s.Run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var errs error
	for _, res := range results {
		if res.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("site %s: %w", res.SiteID, res.Err))
		}
	}
	return results, errs
}

func failed(dataset, siteID string, err error) *SiteResult {
	now := time.Now()
	return &SiteResult{
		SiteID:   siteID,
		Dataset:  dataset,
		State:    StateAborted,
		Err:      err,
		Started:  now,
		Finished: now,
	}
}
