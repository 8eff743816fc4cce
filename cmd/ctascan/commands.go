package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/ctascan/internal/assetid"
	"github.com/rewired-gh/ctascan/internal/caption"
	"github.com/rewired-gh/ctascan/internal/config"
	"github.com/rewired-gh/ctascan/internal/export"
	"github.com/rewired-gh/ctascan/internal/logger"
	"github.com/rewired-gh/ctascan/internal/models"
	"github.com/rewired-gh/ctascan/internal/oracle"
	"github.com/rewired-gh/ctascan/internal/oracle/cloud"
	"github.com/rewired-gh/ctascan/internal/oracle/local"
	"github.com/rewired-gh/ctascan/internal/pipeline"
	"github.com/rewired-gh/ctascan/internal/relevant"
	"github.com/rewired-gh/ctascan/internal/storage"
	"github.com/rewired-gh/ctascan/internal/summary"
	"github.com/rewired-gh/ctascan/internal/telegram"
)

type command func(ctx context.Context, cfg *config.Config) error

var commands = map[string]command{
	"run":     runAnalysis,
	"check":   runCheck,
	"missing": runMissing,
	"collect": runCollect,
	"export":  runExport,
}

// scanSetup holds what every command derives from the configuration.
type scanSetup struct {
	kind  models.AnalysisKind
	rule  assetid.Rule
	set   *relevant.Set
	cache *storage.Cache
}

func setup(cfg *config.Config) (*scanSetup, error) {
	kind, err := cfg.AnalysisKind()
	if err != nil {
		return nil, err
	}
	rule, err := assetid.ParseRule(cfg.Analysis.IDRule)
	if err != nil {
		return nil, err
	}
	mode, err := cfg.SidecarMode()
	if err != nil {
		return nil, err
	}

	set, err := relevant.Load(cfg.RelevantSetPath())
	if err != nil {
		return nil, err
	}
	if set.Filtering() {
		logger.Info("Loaded %d relevant posts from %s", set.Len(), cfg.RelevantSetPath())
	} else {
		logger.Info("No relevant post list configured, every post is relevant")
	}

	return &scanSetup{
		kind:  kind,
		rule:  rule,
		set:   set,
		cache: storage.New(mode),
	}, nil
}

func (s *scanSetup) summaryOptions(cfg *config.Config) summary.Options {
	return summary.Options{
		Root:     cfg.Scan.RootPath,
		Kind:     s.kind,
		Relevant: s.set,
		Rule:     s.rule,
		Cache:    s.cache,
	}
}

func newOracle(cfg *config.Config) (oracle.Oracle, error) {
	if err := cfg.ValidateBackend(); err != nil {
		return nil, err
	}
	switch models.Backend(cfg.Analysis.Backend) {
	case models.BackendCloud:
		return cloud.New(cloud.Config{
			Provider:  cfg.Cloud.Provider,
			APIKey:    cfg.Cloud.APIKey,
			Model:     cfg.Cloud.Model,
			BaseURL:   cfg.Cloud.BaseURL,
			MaxTokens: cfg.Cloud.MaxTokens,
			Timeout:   cfg.Cloud.Timeout,
		})
	default:
		o, err := local.New(local.Config{
			BaseURL:    cfg.Local.BaseURL,
			ImageModel: cfg.Local.ImageModel,
			TextModel:  cfg.Local.TextModel,
			Timeout:    cfg.Local.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return o, nil
	}
}

func runAnalysis(ctx context.Context, cfg *config.Config) error {
	s, err := setup(cfg)
	if err != nil {
		return err
	}
	o, err := newOracle(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize oracle: %w", err)
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		logger.Debug("Telegram client initialized")
	}

	p, err := pipeline.New(pipeline.Options{
		Root:        cfg.Scan.RootPath,
		Kind:        s.kind,
		Relevant:    s.set,
		Rule:        s.rule,
		Concurrency: cfg.Analysis.Concurrency,
		Lookup:      caption.Lookup{Fields: cfg.Caption.Fields, Nested: cfg.Caption.Nested},
		RunID:       uuid.New().String(),
	}, s.cache, o)
	if err != nil {
		return err
	}

	report, runErr := p.Run(ctx)
	if runErr == nil && ctx.Err() != nil {
		runErr = fmt.Errorf("run interrupted: %w", ctx.Err())
	}

	logger.Info("Run %s finished in %v: %d discovered, %d skipped, %d stored, %d failed, %d without content, %d malformed, %d unreadable, %d shadowed",
		report.RunID, report.Duration().Round(time.Millisecond), report.Discovered, report.Skipped, report.Stored,
		report.Failed(), report.NoContent, report.Malformed, report.Unreadable, report.Shadowed)

	if runErr == nil {
		path, err := summary.Write(cfg.Scan.RootPath, s.kind.SummaryFilename(true), report.Summary)
		if err != nil {
			return err
		}
		logger.Info("Summary written to %s (%d of %d assets analyzed)",
			path, report.Summary.AnalyzedAssets, report.Summary.TotalRelevantAssets)
	}

	if telegramClient != nil {
		if err := telegramClient.SendRunReport(report); err != nil {
			logger.Warn("Failed to send run report to Telegram: %v", err)
		} else {
			logger.Info("Sent run report to Telegram")
		}
	}

	return runErr
}

func runCheck(ctx context.Context, cfg *config.Config) error {
	s, err := setup(cfg)
	if err != nil {
		return err
	}
	sum, err := summary.Rescan(ctx, s.summaryOptions(cfg))
	if err != nil {
		return err
	}
	sum.RunID = uuid.New().String()

	path, err := summary.Write(cfg.Scan.RootPath, s.kind.SummaryFilename(false), sum)
	if err != nil {
		return err
	}
	logger.Info("%s: %d of %d relevant assets analyzed across %d posts, %d unreadable sidecars, %d shadowed; written to %s",
		s.kind, sum.AnalyzedAssets, sum.TotalRelevantAssets, sum.TotalRelevantPosts, sum.UnreadableSidecars, sum.ShadowedAssets, path)
	return nil
}

func runMissing(ctx context.Context, cfg *config.Config) error {
	s, err := setup(cfg)
	if err != nil {
		return err
	}
	report, err := summary.Missing(ctx, s.summaryOptions(cfg))
	if err != nil {
		return err
	}

	path, err := summary.Write(cfg.Scan.RootPath, models.MissingReportFilename, report)
	if err != nil {
		return err
	}
	logger.Info("%s: %d posts have missing analyses (%d of %d assets analyzed, %d posts with shadowed assets); written to %s",
		s.kind, report.PostsWithMissingAnalyses, report.AnalyzedAssets, report.TotalRelevantAssets, len(report.ShadowedAnalyses), path)
	return nil
}

func runCollect(ctx context.Context, cfg *config.Config) error {
	s, err := setup(cfg)
	if err != nil {
		return err
	}
	report, err := summary.Collect(ctx, cfg.Scan.RootPath, s.set)
	if err != nil {
		return err
	}

	path, err := summary.Write(cfg.Scan.RootPath, models.CollectReportFilename, report)
	if err != nil {
		return err
	}
	logger.Info("Collected files of %d posts; written to %s", len(report.Posts), path)
	return nil
}

func runExport(ctx context.Context, cfg *config.Config) error {
	s, err := setup(cfg)
	if err != nil {
		return err
	}

	store, err := export.Open(cfg.Export.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close export database: %v", err)
		}
	}()

	res, err := store.Export(ctx, cfg.Scan.RootPath, s.set, s.cache)
	if err != nil {
		return err
	}
	for _, k := range models.Kinds() {
		if n := res.ByKind[k]; n > 0 {
			logger.Info("Exported %d %s sidecars", n, k)
		}
	}
	logger.Info("Exported %d rows to %s (%d unreadable sidecars skipped)", res.Rows, cfg.Export.DBPath, res.Unreadable)
	return nil
}
