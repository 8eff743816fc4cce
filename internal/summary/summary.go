// Package summary aggregates sidecar records into per-kind summaries and
// builds the missing-analysis and file-collection reports.
//
// A Summary can be produced two ways: a Collector fed by the pipeline during
// a run, or Rescan walking the tree afterwards. Both count the same relevant
// target assets and read the same sidecars, so for the same on-disk state
// they produce the same totals and score mapping.
//
// Images that differ only in extension share one sidecar path. The first of
// them in walk order claims it, and a sidecar belongs to an asset only when
// it names that asset as its original file. Any other asset mapping to the
// path is shadowed: counted as relevant, never analyzed or scored.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rewired-gh/ctascan/internal/assetid"
	"github.com/rewired-gh/ctascan/internal/logger"
	"github.com/rewired-gh/ctascan/internal/models"
	"github.com/rewired-gh/ctascan/internal/relevant"
	"github.com/rewired-gh/ctascan/internal/storage"
	"github.com/rewired-gh/ctascan/internal/walker"
)

// Collector accumulates summary data. It is safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	kind       models.AnalysisKind
	relevant   *relevant.Set
	posts      map[string]int
	assets     int
	analyzed   int
	unreadable int
	shadowed   int
	scores     map[string]float64
}

// NewCollector creates a Collector for one kind.
func NewCollector(kind models.AnalysisKind, set *relevant.Set) *Collector {
	return &Collector{
		kind:     kind,
		relevant: set,
		posts:    make(map[string]int),
		scores:   make(map[string]float64),
	}
}

// AddAsset counts a relevant asset of the kind's target role.
func (c *Collector) AddAsset(a models.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets++
	c.posts[a.PostID]++
}

// AddRecord counts an analyzed asset and records its score, if any.
func (c *Collector) AddRecord(a models.Asset, rec *models.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyzed++
	if rec.HasScore() {
		c.scores[a.RelPath] = rec.ScoreValue()
	}
}

// AddUnreadable counts an asset whose sidecar exists but cannot be decoded.
func (c *Collector) AddUnreadable(a models.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unreadable++
}

// AddShadowed counts an asset whose sidecar path belongs to another asset.
func (c *Collector) AddShadowed(a models.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shadowed++
}

// Summary returns a snapshot of the collected data.
func (c *Collector) Summary(runID string, generatedAt time.Time) *models.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &models.Summary{
		RunID:               runID,
		Kind:                c.kind,
		GeneratedAt:         generatedAt,
		TotalRelevantAssets: c.assets,
		AnalyzedAssets:      c.analyzed,
		UnreadableSidecars:  c.unreadable,
		ShadowedAssets:      c.shadowed,
		Scores:              make(map[string]float64, len(c.scores)),
	}
	if c.relevant.Filtering() {
		s.TotalRelevantPosts = c.relevant.Len()
	} else {
		s.TotalRelevantPosts = len(c.posts)
	}
	for _, n := range c.posts {
		if n > 1 {
			s.PostsWithMultipleAssets++
		}
	}
	for k, v := range c.scores {
		s.Scores[k] = v
	}
	return s
}

// Owns reports whether rec is the sidecar of a. Records that do not name
// their original file are attributed to whichever asset claimed the path.
func Owns(a models.Asset, rec *models.Record) bool {
	return rec.OriginalFilename == "" || rec.OriginalFilename == a.Name
}

// Claims tracks which asset claimed each sidecar path during one walk. It is
// not safe for concurrent use.
type Claims struct {
	kind   models.AnalysisKind
	owners map[string]string
}

// NewClaims creates an empty Claims for kind.
func NewClaims(kind models.AnalysisKind) *Claims {
	return &Claims{kind: kind, owners: make(map[string]string)}
}

// Claim reserves the sidecar path of a. It returns false and the name of the
// claiming asset when another asset got there first.
func (c *Claims) Claim(a models.Asset) (string, bool) {
	path := storage.SidecarPath(a.Path, c.kind)
	if owner, ok := c.owners[path]; ok {
		return owner, false
	}
	c.owners[path] = a.Name
	return a.Name, true
}

// Options configures a scan of one kind.
type Options struct {
	Root     string
	Kind     models.AnalysisKind
	Relevant *relevant.Set
	// Rule overrides the identifier rule of the kind's target role.
	Rule  assetid.Rule
	Cache *storage.Cache
}

// NewWalker builds the walker a scan of opts.Kind uses. The pipeline uses
// the same construction so both see the same assets.
func NewWalker(root string, kind models.AnalysisKind, set *relevant.Set, rule assetid.Rule) *walker.Walker {
	wo := walker.Options{Root: root, Relevant: set}
	if rule != "" {
		if kind.AssetRole() == models.RoleImage {
			wo.ImageRule = rule
		} else {
			wo.CaptionRule = rule
		}
	}
	return walker.New(wo)
}

// Rescan rebuilds a kind's summary from the sidecars on disk.
func Rescan(ctx context.Context, opts Options) (*models.Summary, error) {
	c := NewCollector(opts.Kind, opts.Relevant)
	role := opts.Kind.AssetRole()

	claims := NewClaims(opts.Kind)

	w := NewWalker(opts.Root, opts.Kind, opts.Relevant, opts.Rule)
	for a, err := range w.Assets(ctx) {
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if a.Role != role {
			continue
		}
		c.AddAsset(a)

		if owner, ok := claims.Claim(a); !ok {
			logger.Warn("%s: sidecar belongs to %s", a.RelPath, owner)
			c.AddShadowed(a)
			continue
		}

		rec, err := opts.Cache.Load(a.Path, opts.Kind)
		if err != nil {
			logger.Warn("%s: %v", a.RelPath, err)
			c.AddUnreadable(a)
			continue
		}
		switch {
		case rec == nil:
		case !Owns(a, rec):
			logger.Warn("%s: sidecar belongs to %s", a.RelPath, rec.OriginalFilename)
			c.AddShadowed(a)
		default:
			c.AddRecord(a, rec)
		}
	}
	return c.Summary("", time.Now()), nil
}

// Missing lists the relevant target assets that have no sidecar of the kind.
// An unreadable sidecar still counts as present; shadowed assets are listed
// separately.
func Missing(ctx context.Context, opts Options) (*models.MissingReport, error) {
	role := opts.Kind.AssetRole()
	posts := make(map[string]int)
	missing := make(map[string][]string)
	shadowed := make(map[string][]string)
	claims := NewClaims(opts.Kind)
	report := &models.MissingReport{Kind: opts.Kind, GeneratedAt: time.Now()}

	w := NewWalker(opts.Root, opts.Kind, opts.Relevant, opts.Rule)
	for a, err := range w.Assets(ctx) {
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if a.Role != role {
			continue
		}
		posts[a.PostID]++
		report.TotalRelevantAssets++

		if _, ok := claims.Claim(a); !ok {
			shadowed[a.PostID] = append(shadowed[a.PostID], a.Name)
			continue
		}

		exists, err := opts.Cache.Exists(a.Path, opts.Kind)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing[a.PostID] = append(missing[a.PostID], a.Name)
			continue
		}
		rec, err := opts.Cache.Load(a.Path, opts.Kind)
		if err != nil {
			logger.Warn("%s: %v", a.RelPath, err)
		} else if rec != nil && !Owns(a, rec) {
			shadowed[a.PostID] = append(shadowed[a.PostID], a.Name)
			continue
		}
		report.AnalyzedAssets++
	}

	if opts.Relevant.Filtering() {
		report.TotalRelevantPosts = opts.Relevant.Len()
	} else {
		report.TotalRelevantPosts = len(posts)
	}
	for _, n := range posts {
		if n > 1 {
			report.PostsWithMultipleAssets++
		}
	}
	report.PostsWithMissingAnalyses = len(missing)
	report.MissingAnalyses = missing
	report.ShadowedAnalyses = shadowed
	return report, nil
}

// Collect groups every relevant post's caption, images and sidecars of all
// kinds. Images and image sidecars are grouped by the underscore rule,
// captions and caption sidecars by stem.
func Collect(ctx context.Context, root string, set *relevant.Set) (*models.CollectReport, error) {
	report := &models.CollectReport{
		GeneratedAt: time.Now(),
		Posts:       make(map[string]*models.PostFiles),
	}
	for _, id := range set.IDs() {
		post := newPostFiles()
		post.Document, _ = set.Filename(id)
		report.Posts[id] = post
	}

	w := walker.New(walker.Options{Root: root, Relevant: set})
	for a, err := range w.Assets(ctx) {
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if a.Role == models.RoleTemp {
			continue
		}

		post, ok := report.Posts[a.PostID]
		if !ok {
			post = newPostFiles()
			report.Posts[a.PostID] = post
		}
		switch a.Role {
		case models.RoleCaption:
			// The document named by the relevant set wins over other
			// captions sharing the post ID.
			if post.Caption == "" || (a.Name == post.Document && filepath.Base(post.Caption) != post.Document) {
				post.Caption = a.RelPath
			}
		case models.RoleImage:
			post.Images = append(post.Images, a.RelPath)
		case models.RoleSidecar:
			post.Sidecars[a.SidecarKind] = append(post.Sidecars[a.SidecarKind], a.RelPath)
		}
	}

	for _, post := range report.Posts {
		sort.Strings(post.Images)
		for _, files := range post.Sidecars {
			sort.Strings(files)
		}
	}
	return report, nil
}

func newPostFiles() *models.PostFiles {
	return &models.PostFiles{
		Images:   []string{},
		Sidecars: make(map[models.AnalysisKind][]string),
	}
}

// Write stores v as indented JSON at root/name, replacing any previous file
// atomically. It returns the written path.
func Write(root, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	path := filepath.Join(root, name)
	if err := storage.WriteFileAtomic(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
