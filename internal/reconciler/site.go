// Package reconciler drives one site's days through alignment, repair,
// screening and windowing, accumulates the clean SiteTable and writes it
// out. Runner executes the sites of every dataset.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/chrissnell/pvreconcile/internal/align"
	"github.com/chrissnell/pvreconcile/internal/anomaly"
	"github.com/chrissnell/pvreconcile/internal/daylight"
	"github.com/chrissnell/pvreconcile/internal/gaps"
	"github.com/chrissnell/pvreconcile/internal/log"
	"github.com/chrissnell/pvreconcile/internal/report"
	"github.com/chrissnell/pvreconcile/internal/storage"
	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DayResult is the outcome of one calendar date.
type DayResult struct {
	Date     time.Time
	Accepted bool
	// Stage is where an excluded day was rejected.
	Stage   State
	Rows    int
	Reasons []types.Reason
}

// SiteResult is the outcome of one site run.
type SiteResult struct {
	SiteID    string
	Dataset   string
	State     State
	Table     *types.SiteTable
	Days      []DayResult
	Decisions []types.ExclusionDecision
	// ParseErrors combines the errors of every skipped raw file.
	ParseErrors error
	// Duplicates counts rows dropped for a repeated timestamp.
	Duplicates int
	Summary    []report.ColumnSummary
	Started    time.Time
	Finished   time.Time
	// Err is set when the site aborted.
	Err error
}

// AcceptedDays returns the number of days that reached the table.
func (r *SiteResult) AcceptedDays() int {
	n := 0
	for _, d := range r.Days {
		if d.Accepted {
			n++
		}
	}
	return n
}

// ExcludedDays returns the number of days removed.
func (r *SiteResult) ExcludedDays() int {
	return len(r.Days) - r.AcceptedDays()
}

// Site reconciles one site of a dataset.
type Site struct {
	ds       *Dataset
	site     config.SiteData
	out      *Outputs
	detector *anomaly.Detector
	logger   *zap.SugaredLogger
	state    State
}

// day tracks one date through the pipeline.
type day struct {
	record  types.DailyRecord
	result  DayResult
	dropped bool
}

// NewSite prepares the reconciler of site.
func NewSite(ds *Dataset, site config.SiteData, out *Outputs) (*Site, error) {
	det, err := anomaly.NewForSite(ds.Config.Cleaning, site)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.ID, err)
	}
	return &Site{
		ds:       ds,
		site:     site,
		out:      out,
		detector: det,
		logger:   log.ForSite(site.ID).With("dataset", ds.Config.Name, "run", out.RunID),
		state:    StateInit,
	}, nil
}

// State returns the current pipeline stage.
func (s *Site) State() State {
	return s.state
}

func (s *Site) enter(st State) {
	if !s.state.CanTransition(st) {
		s.logger.Warnw("unexpected stage transition", "from", s.state, "to", st)
	}
	s.logger.Debugw("entering stage", "stage", st)
	s.state = st
}

// Run executes the whole pipeline. Per-file and per-day failures are
// recorded on the result; only output failures and cancellation abort
// the site, reported through SiteResult.Err.
func (s *Site) Run(ctx context.Context) *SiteResult {
	res := &SiteResult{SiteID: s.site.ID, Dataset: s.ds.Config.Name, Started: time.Now()}
	cleaning := s.ds.Config.Cleaning

	s.enter(StateLoading)
	power, parseErrs := s.load()
	res.ParseErrors = parseErrs
	if ctx.Err() != nil {
		return s.abort(res, ctx.Err())
	}

	s.enter(StateAligning)
	days := s.alignDays(power, res)
	if ctx.Err() != nil {
		return s.abort(res, ctx.Err())
	}

	s.enter(StateRepairing)
	live := make([]types.DailyRecord, 0, len(days))
	for _, d := range days {
		if !d.dropped {
			live = append(live, d.record)
		}
	}
	// live shares reading storage with days, so masks and shifts apply to both
	if offset := s.detector.ShiftSeries(live); offset != 0 {
		s.logger.Debugw("shifted power to series minimum", "offset", offset)
	}
	for i := range live {
		res.Decisions = append(res.Decisions, s.detector.ScreenValues(&live[i])...)
	}
	series := s.detector.ScreenSeries(s.site.ID, live)
	res.Decisions = append(res.Decisions, series...)
	wholeSeries := types.HasSeriesExclusion(series)
	seriesDetail := ""
	for _, dec := range series {
		if dec.Scope == types.ScopeSeries {
			seriesDetail = dec.Detail
		}
	}
	for _, d := range days {
		if d.dropped {
			continue
		}
		if wholeSeries {
			// one dated line per day so the exclusion log covers every date
			res.Decisions = append(res.Decisions, types.DayDecision(s.site.ID, d.record.Date,
				types.ReasonLowCorrelation, types.ActivePower.String(), seriesDetail))
			s.exclude(d, StateRepairing, types.ReasonLowCorrelation)
			continue
		}
		if dec := gaps.RepairDay(&d.record, cleaning.OutputFields, cleaning); len(dec) > 0 {
			res.Decisions = append(res.Decisions, dec...)
			s.exclude(d, StateRepairing, reasons(dec)...)
		}
	}
	if ctx.Err() != nil {
		return s.abort(res, ctx.Err())
	}

	s.enter(StateScreening)
	for _, d := range days {
		if d.result.Stage == StateAligning || wholeSeries {
			continue
		}
		// excluded days are still screened so every reason is recorded
		dec := s.detector.ScreenDay(d.record)
		res.Decisions = append(res.Decisions, dec...)
		if excluding := excludes(dec); len(excluding) > 0 {
			s.exclude(d, StateScreening, reasons(excluding)...)
		}
	}

	s.enter(StateWindowing)
	for _, d := range days {
		if !d.dropped {
			d.record = daylight.Trim(d.record, cleaning.MarginHours)
		}
	}

	s.enter(StateAccumulating)
	table := types.NewSiteTable(s.site.ID, cleaning.OutputFields)
	for _, d := range days {
		if !d.dropped {
			res.Duplicates += table.Append(d.record.Readings...)
			d.result.Accepted = true
			d.result.Rows = len(d.record.Readings)
		}
		res.Days = append(res.Days, d.result)
	}
	table.Sort()
	res.Table = table
	res.Summary = report.Summarize(table)
	if res.Duplicates > 0 {
		s.logger.Warnf("dropped %d rows with repeated timestamps", res.Duplicates)
	}

	if err := s.finalize(ctx, res, days); err != nil {
		return s.abort(res, err)
	}
	s.enter(StateFinalized)
	res.State = StateFinalized
	res.Finished = time.Now()
	s.record(ctx, res)
	s.logger.Infow("site reconciled",
		"accepted_days", res.AcceptedDays(),
		"excluded_days", res.ExcludedDays(),
		"rows", table.Len(),
		"decisions", len(res.Decisions))
	return res
}

// load reads every raw file of the site and groups readings by date.
// Unreadable files are skipped and their errors combined.
func (s *Site) load() (map[time.Time][]types.Reading, error) {
	files, err := s.ds.Power.Files(s.site)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		s.logger.Warnw("no raw files matched", "dir", s.ds.Config.Input.Dir)
	}

	var errs error
	power := make(map[time.Time][]types.Reading)
	for _, path := range files {
		f, err := s.ds.Power.ReadFile(path, s.site)
		if err != nil {
			s.logger.Warnw("skipping raw file", "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		if f.BadCells > 0 || f.BadRows > 0 {
			s.logger.Debugw("raw file had unreadable content", "file", path, "bad_cells", f.BadCells, "bad_rows", f.BadRows)
		}
		for date, rows := range f.Days {
			power[date] = append(power[date], rows...)
		}
	}
	return power, errs
}

// alignDays builds the aligned record of every date in chronological order.
// Dates that cannot be aligned are excluded with an alignment-failure
// decision.
func (s *Site) alignDays(power map[time.Time][]types.Reading, res *SiteResult) []*day {
	dates := make([]time.Time, 0, len(power))
	for d := range power {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	days := make([]*day, 0, len(dates))
	for _, date := range dates {
		d := &day{result: DayResult{Date: date}}
		days = append(days, d)

		rec, err := s.ds.Aligner.Align(s.site.ID, date, power[date], s.ds.Weather.Day(date))
		if err != nil {
			detail := err.Error()
			var ae *align.AlignmentError
			if errors.As(err, &ae) {
				detail = ae.Cause.Error()
				if ae.Detail != "" {
					detail += ": " + ae.Detail
				}
			}
			s.logger.Infow("skipping date", "date", date.Format(types.DateLayout), "error", err)
			res.Decisions = append(res.Decisions,
				types.DayDecision(s.site.ID, date, types.ReasonAlignmentFailure, "", detail))
			s.exclude(d, StateAligning, types.ReasonAlignmentFailure)
			continue
		}
		d.record = rec
	}
	return days
}

func (s *Site) exclude(d *day, stage State, why ...types.Reason) {
	if !d.dropped {
		d.dropped = true
		d.result.Stage = stage
	}
	for _, r := range why {
		if !hasReason(d.result.Reasons, r) {
			d.result.Reasons = append(d.result.Reasons, r)
		}
	}
}

// finalize writes the table, the exclusion log and the optional dumps.
func (s *Site) finalize(ctx context.Context, res *SiteResult, days []*day) error {
	cfg := s.out.Config

	xlog, err := log.OpenExclusionLog(cfg.Dir, s.site.ID, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		return &storage.UnrecoverableIOError{Path: log.ExclusionLogPath(cfg.Dir, s.site.ID), Err: err}
	}
	for _, d := range res.Decisions {
		if err := xlog.Record(d); err != nil {
			xlog.Close()
			return &storage.UnrecoverableIOError{Path: xlog.Path(), Err: err}
		}
	}
	err = xlog.Summary(s.out.RunID, res.AcceptedDays(), res.ExcludedDays(), res.Table.Len())
	err = multierr.Append(err, xlog.Close())
	if err != nil {
		return &storage.UnrecoverableIOError{Path: xlog.Path(), Err: err}
	}

	for _, sink := range s.out.Sinks {
		if err := sink.WriteSiteTable(ctx, res.Table); err != nil {
			var ioErr *storage.UnrecoverableIOError
			if errors.As(err, &ioErr) {
				return err
			}
			return &storage.UnrecoverableIOError{Path: sink.Name(), Err: err}
		}
		s.logger.Debugw("table written", "sink", sink.Name(), "rows", res.Table.Len())
	}

	if cfg.DumpExcluded {
		excluded := make(map[types.Reason][]types.Reading)
		for _, d := range days {
			if !d.dropped || len(d.record.Readings) == 0 {
				continue
			}
			for _, r := range d.result.Reasons {
				excluded[r] = append(excluded[r], d.record.Readings...)
			}
		}
		if _, err := storage.DumpExcluded(cfg.Dir, s.site.ID, res.Table.Fields, excluded); err != nil {
			return err
		}
	}
	return nil
}

// record stores the run in the audit database and the metrics. Failures
// here are logged but do not abort the site.
func (s *Site) record(ctx context.Context, res *SiteResult) {
	m := s.out.Metrics
	m.RecordDays(res.SiteID, res.AcceptedDays(), res.ExcludedDays())
	m.RecordDecisions(res.SiteID, res.Decisions)
	m.RecordParseErrors(res.SiteID, len(multierr.Errors(res.ParseErrors)))
	if res.Table != nil {
		m.RecordRows(res.SiteID, res.Table.Len())
	}
	m.RecordSite(res.State.String(), res.Finished.Sub(res.Started))

	if s.out.Audit == nil {
		return
	}
	summary := storage.RunSummary{
		RunID:        s.out.RunID,
		SiteID:       res.SiteID,
		StartedAt:    res.Started,
		FinishedAt:   res.Finished,
		AcceptedDays: res.AcceptedDays(),
		ExcludedDays: res.ExcludedDays(),
		Status:       res.State.String(),
	}
	if res.Table != nil {
		summary.RowsWritten = res.Table.Len()
	}
	if res.Err != nil {
		summary.Error = res.Err.Error()
	}
	err := multierr.Append(
		s.out.Audit.RecordDecisions(ctx, s.out.RunID, res.Decisions),
		s.out.Audit.RecordRun(ctx, summary),
	)
	if err != nil {
		s.logger.Errorw("could not store audit records", "error", err)
	}
}

func (s *Site) abort(res *SiteResult, err error) *SiteResult {
	s.enter(StateAborted)
	res.State = StateAborted
	res.Err = err
	res.Finished = time.Now()
	s.logger.Errorw("site run aborted", "error", err)
	s.record(context.Background(), res)
	return res
}

func excludes(decisions []types.ExclusionDecision) []types.ExclusionDecision {
	var out []types.ExclusionDecision
	for _, d := range decisions {
		if d.Excludes() {
			out = append(out, d)
		}
	}
	return out
}

func reasons(decisions []types.ExclusionDecision) []types.Reason {
	var out []types.Reason
	for _, d := range decisions {
		if !hasReason(out, d.Reason) {
			out = append(out, d.Reason)
		}
	}
	return out
}

func hasReason(rs []types.Reason, r types.Reason) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}
