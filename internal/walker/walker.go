// Package walker enumerates and classifies the files of an archive tree.
package walker

import (
	"context"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rewired-gh/ctascan/internal/assetid"
	"github.com/rewired-gh/ctascan/internal/models"
	"github.com/rewired-gh/ctascan/internal/relevant"
	"github.com/rewired-gh/ctascan/internal/storage"
)

// Classify returns the role of a file from its name alone.
func Classify(name string) models.Role {
	if strings.HasSuffix(name, storage.TempSuffix) {
		return models.RoleTemp
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return models.RoleImage
	case ".json":
		if models.IsReportFilename(name) {
			return models.RoleReport
		}
		if _, _, ok := models.KindForSidecar(name); ok {
			return models.RoleSidecar
		}
		return models.RoleCaption
	default:
		return models.RoleOther
	}
}

// Options configures a Walker.
type Options struct {
	Root string
	// Relevant filters images, captions and sidecars by post ID. Nil admits
	// every post.
	Relevant *relevant.Set
	// ImageRule and CaptionRule derive post IDs. Sidecars use the rule of
	// the role their kind analyzes.
	ImageRule   assetid.Rule
	CaptionRule assetid.Rule
}

// Stats counts what one walk saw.
type Stats struct {
	Visited     int
	Yielded     int
	FilteredOut int
	ByRole      map[models.Role]int
}

// Walker produces one lazy enumeration of the tree per call to Assets.
// Sequences may be ranged over concurrently; each counts into its own Stats,
// published when that walk ends.
type Walker struct {
	opts Options

	mu    sync.Mutex
	stats Stats
}

// New creates a Walker. Missing rules default to underscore for images and
// stem for captions.
func New(opts Options) *Walker {
	if opts.ImageRule == "" {
		opts.ImageRule = assetid.RuleUnderscore
	}
	if opts.CaptionRule == "" {
		opts.CaptionRule = assetid.RuleStem
	}
	return &Walker{opts: opts}
}

// Stats returns the counters of the walk that ended last. It is zero until
// a sequence returned by Assets has been drained or abandoned.
func (w *Walker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Assets walks the root in lexical order and yields relevant images,
// captions and sidecars, plus every temp file. Reports and unrelated files
// are skipped. A walk error or context cancellation is yielded once as the
// last element.
func (w *Walker) Assets(ctx context.Context) iter.Seq2[models.Asset, error] {
	return func(yield func(models.Asset, error) bool) {
		stats := Stats{ByRole: make(map[models.Role]int)}
		defer func() {
			w.mu.Lock()
			w.stats = stats
			w.mu.Unlock()
		}()

		err := filepath.WalkDir(w.opts.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			stats.Visited++
			asset, ok := w.classify(path, d)
			stats.ByRole[asset.Role]++
			if !ok {
				return nil
			}
			if asset.Role != models.RoleTemp && !w.opts.Relevant.Contains(asset.PostID) {
				stats.FilteredOut++
				return nil
			}

			stats.Yielded++
			if !yield(asset, nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(models.Asset{}, err)
		}
	}
}

func (w *Walker) classify(path string, d fs.DirEntry) (models.Asset, bool) {
	name := d.Name()
	asset := models.Asset{
		Path:         path,
		RelPath:      w.relPath(path),
		Name:         name,
		Role:         Classify(name),
		DiscoveredAt: time.Now(),
	}

	switch asset.Role {
	case models.RoleImage:
		asset.PostID = assetid.Derive(name, w.opts.ImageRule)
	case models.RoleCaption:
		asset.PostID = assetid.Derive(name, w.opts.CaptionRule)
	case models.RoleSidecar:
		kind, stem, _ := models.KindForSidecar(name)
		asset.SidecarKind = kind
		asset.AssetStem = stem
		rule := w.opts.CaptionRule
		if kind.AssetRole() == models.RoleImage {
			rule = w.opts.ImageRule
		}
		asset.PostID = assetid.FromStem(stem, rule)
	case models.RoleTemp:
		if info, err := d.Info(); err == nil {
			asset.ModTime = info.ModTime()
		}
	default:
		return asset, false
	}
	return asset, true
}

func (w *Walker) relPath(path string) string {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
