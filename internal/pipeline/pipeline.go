// Package pipeline runs one analysis kind over an archive tree.
//
// Each relevant asset moves through these states within a run:
//
//	Discovered -> Skipped            sidecar already exists
//	Discovered -> Shadowed           sidecar path belongs to another asset
//	Discovered -> Analyzing -> Stored
//	Discovered -> Analyzing -> Failed  oracle or filesystem error, no sidecar
//
// Assets outside the relevant set are filtered out by the walker and never
// reach the pipeline. A re-run retries exactly the assets that have no
// sidecar, so Run is idempotent: on an unchanged tree a second run makes no
// oracle calls and writes nothing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/ctascan/internal/assetid"
	"github.com/rewired-gh/ctascan/internal/caption"
	"github.com/rewired-gh/ctascan/internal/logger"
	"github.com/rewired-gh/ctascan/internal/models"
	"github.com/rewired-gh/ctascan/internal/oracle"
	"github.com/rewired-gh/ctascan/internal/relevant"
	"github.com/rewired-gh/ctascan/internal/storage"
	"github.com/rewired-gh/ctascan/internal/summary"
)

// noCaptionError is recorded in checked sidecars of documents without caption.
const noCaptionError = "No caption found"

// Options configures a Pipeline.
type Options struct {
	Root        string
	Kind        models.AnalysisKind
	Relevant    *relevant.Set
	Rule        assetid.Rule // empty uses the kind default
	Concurrency int
	Lookup      caption.Lookup
	RunID       string // generated when empty
}

// AssetError is a per-asset failure. It never aborts the run.
type AssetError struct {
	Path string
	Err  error
}

func (e AssetError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e AssetError) Unwrap() error {
	return e.Err
}

// Report describes one run.
type Report struct {
	RunID      string
	Kind       models.AnalysisKind
	Backend    string
	StartedAt  time.Time
	FinishedAt time.Time

	Discovered  int // relevant assets of the kind's target role
	FilteredOut int
	Skipped     int
	Stored      int
	NoContent   int
	Malformed   int
	Unreadable  int
	Shadowed    int
	Anomalies   int
	TempSwept   int
	Failures    []AssetError

	Summary *models.Summary
}

// Failed returns the number of assets left unanalyzed by errors.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Pipeline drives walker, cache and oracle for one analysis kind.
type Pipeline struct {
	opts      Options
	cache     *storage.Cache
	oracle    oracle.Oracle
	collector *summary.Collector

	mu     sync.Mutex
	report *Report
	claims *summary.Claims
}

// New creates a Pipeline.
func New(opts Options, cache *storage.Cache, o oracle.Oracle) (*Pipeline, error) {
	if !opts.Kind.Valid() {
		return nil, fmt.Errorf("invalid analysis kind %q", opts.Kind)
	}
	if opts.Root == "" {
		return nil, errors.New("root path must not be empty")
	}
	if cache == nil || o == nil {
		return nil, errors.New("cache and oracle are required")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	return &Pipeline{
		opts:   opts,
		cache:  cache,
		oracle: o,
	}, nil
}

// Run analyzes every relevant asset that has no sidecar yet. Asset-level
// failures are recorded in the report and do not make Run fail; a walk error
// or context cancellation does, after in-flight analyses have finished.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	p.report = &Report{
		RunID:     p.opts.RunID,
		Kind:      p.opts.Kind,
		Backend:   p.oracle.Name(),
		StartedAt: time.Now(),
	}
	p.claims = summary.NewClaims(p.opts.Kind)
	p.collector = summary.NewCollector(p.opts.Kind, p.opts.Relevant)

	logger.Info("Run %s: analyzing %s with %s under %s (concurrency %d)",
		p.opts.RunID, p.opts.Kind, p.oracle.Name(), p.opts.Root, p.opts.Concurrency)

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

	role := p.opts.Kind.AssetRole()
	w := summary.NewWalker(p.opts.Root, p.opts.Kind, p.opts.Relevant, p.opts.Rule)

	var walkErr error
	for a, err := range w.Assets(ctx) {
		if err != nil {
			walkErr = err
			break
		}

		switch {
		case a.Role == models.RoleTemp:
			p.sweep(a)
			continue
		case a.Role != role:
			continue
		}

		p.collector.AddAsset(a)
		p.report.Discovered++

		if owner, ok := p.claims.Claim(a); !ok {
			p.shadow(a, owner)
			continue
		}

		exists, err := p.cache.Exists(a.Path, p.opts.Kind)
		if err != nil {
			p.fail(a, err)
			continue
		}
		if exists {
			p.skip(a)
			continue
		}

		g.Go(func() error {
			p.analyze(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	p.report.FilteredOut = w.Stats().FilteredOut
	p.report.FinishedAt = time.Now()
	p.report.Summary = p.collector.Summary(p.opts.RunID, p.report.FinishedAt)

	if walkErr != nil {
		return p.report, fmt.Errorf("walk of %s did not complete: %w", p.opts.Root, walkErr)
	}
	return p.report, nil
}

// shadow records an asset whose sidecar path belongs to owner. It is never
// analyzed.
func (p *Pipeline) shadow(a models.Asset, owner string) {
	p.mu.Lock()
	p.report.Shadowed++
	p.mu.Unlock()
	p.collector.AddShadowed(a)
	logger.Warn("%s: sidecar %s belongs to %s, skipping", a.RelPath,
		storage.SidecarPath(a.RelPath, p.opts.Kind), owner)
}

func (p *Pipeline) sweep(a models.Asset) {
	removed, err := p.cache.SweepTemp(a.Path, p.report.StartedAt)
	if err != nil {
		logger.Warn("%s: %v", a.RelPath, err)
		return
	}
	if removed {
		p.report.TempSwept++
		logger.Debug("Removed stale temp file %s", a.RelPath)
	}
}

func (p *Pipeline) skip(a models.Asset) {
	rec, err := p.cache.Load(a.Path, p.opts.Kind)
	if err == nil && rec != nil && !summary.Owns(a, rec) {
		p.shadow(a, rec.OriginalFilename)
		return
	}

	p.mu.Lock()
	p.report.Skipped++
	p.mu.Unlock()

	if err != nil {
		p.mu.Lock()
		p.report.Unreadable++
		p.mu.Unlock()
		p.collector.AddUnreadable(a)
		logger.Warn("%s: %v", a.RelPath, err)
		return
	}
	if rec != nil {
		p.collector.AddRecord(a, rec)
	}
	logger.Debug("Analysis for %s already exists. Skipping.", a.RelPath)
}

func (p *Pipeline) fail(a models.Asset, err error) {
	p.mu.Lock()
	p.report.Failures = append(p.report.Failures, AssetError{Path: a.RelPath, Err: err})
	p.mu.Unlock()
	logger.Error("%s: %v", a.RelPath, err)
}

func (p *Pipeline) analyze(ctx context.Context, a models.Asset) {
	start := time.Now()

	var resp oracle.Response
	var err error
	if p.opts.Kind.Target() == models.TargetImage {
		resp, err = p.scoreImage(ctx, a)
	} else {
		var text string
		text, err = p.readCaption(a)
		if err != nil {
			p.mu.Lock()
			p.report.Malformed++
			p.mu.Unlock()
			logger.Warn("%s: error reading JSON - %v", a.RelPath, err)
			return
		}
		if text == "" {
			p.noContent(a)
			return
		}
		resp, err = p.oracle.ScoreText(ctx, text)
	}
	if err != nil {
		p.fail(a, err)
		return
	}

	if resp.Score.Anomaly != "" {
		p.mu.Lock()
		p.report.Anomalies++
		p.mu.Unlock()
		logger.Warn("%s: %s", a.RelPath, resp.Score.Anomaly)
	}
	if !resp.Score.Matched {
		logger.Warn("%s: no score found in response, recording 0.0", a.RelPath)
	}

	s := resp.Score.Score
	rec := &models.Record{
		Kind:             p.opts.Kind,
		OriginalFilename: a.Name,
		Score:            &s,
		Response:         resp.Text,
		AnalyzedAt:       time.Now(),
		Checked:          p.opts.Kind.WritesCheckedRecords(),
	}
	if !p.store(a, rec) {
		return
	}
	logger.Info("%s: %.1f (saved %s in %s)", a.RelPath, s,
		p.opts.Kind.Suffix(), time.Since(start).Round(time.Millisecond))
}

func (p *Pipeline) scoreImage(ctx context.Context, a models.Asset) (oracle.Response, error) {
	img, err := oracle.LoadImage(a.Path)
	if err != nil {
		return oracle.Response{}, err
	}
	return p.oracle.ScoreImage(ctx, img)
}

func (p *Pipeline) readCaption(a models.Asset) (string, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return "", err
	}
	return caption.Extract(data, p.opts.Lookup)
}

// noContent handles a caption document without caption. Kinds that keep
// checked records store one so the document is not examined again.
func (p *Pipeline) noContent(a models.Asset) {
	p.mu.Lock()
	p.report.NoContent++
	p.mu.Unlock()

	if !p.opts.Kind.WritesCheckedRecords() {
		logger.Info("%s: No caption found.", a.RelPath)
		return
	}
	rec := &models.Record{
		Kind:             p.opts.Kind,
		OriginalFilename: a.Name,
		AnalyzedAt:       time.Now(),
		Checked:          true,
		Error:            noCaptionError,
	}
	if p.store(a, rec) {
		logger.Info("%s: No caption found. Marked as checked.", a.RelPath)
	}
}

// store persists rec and feeds the collector. It reports whether a sidecar
// was written.
func (p *Pipeline) store(a models.Asset, rec *models.Record) bool {
	err := p.cache.Store(a.Path, p.opts.Kind, rec)
	if errors.Is(err, storage.ErrSidecarExists) {
		// Written by another process since the existence check.
		logger.Warn("%s: %v", a.RelPath, err)
		p.skip(a)
		return false
	}
	if err != nil {
		p.fail(a, err)
		return false
	}

	p.mu.Lock()
	p.report.Stored++
	p.mu.Unlock()
	p.collector.AddRecord(a, rec)
	return true
}
