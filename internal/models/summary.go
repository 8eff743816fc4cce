package models

import "time"

// Summary is the run-level aggregate for one analysis kind. It is derived
// from sidecars and recomputed fully each time.
type Summary struct {
	RunID                   string             `json:"run_id,omitempty"`
	Kind                    AnalysisKind       `json:"analysis_kind"`
	GeneratedAt             time.Time          `json:"generated_at"`
	TotalRelevantPosts      int                `json:"total_relevant_posts"`
	TotalRelevantAssets     int                `json:"total_relevant_assets"`
	AnalyzedAssets          int                `json:"analyzed_assets"`
	PostsWithMultipleAssets int                `json:"posts_with_multiple_assets"`
	UnreadableSidecars      int                `json:"unreadable_sidecars"`
	ShadowedAssets          int                `json:"shadowed_assets"`
	Scores                  map[string]float64 `json:"cta_scores"`
}

// MissingReport lists relevant assets that have no sidecar for a kind.
type MissingReport struct {
	Kind                     AnalysisKind        `json:"analysis_kind"`
	GeneratedAt              time.Time           `json:"generated_at"`
	TotalRelevantPosts       int                 `json:"total_relevant_posts"`
	PostsWithMultipleAssets  int                 `json:"posts_with_multiple_assets"`
	TotalRelevantAssets      int                 `json:"total_relevant_assets"`
	AnalyzedAssets           int                 `json:"analyzed_assets"`
	PostsWithMissingAnalyses int                 `json:"posts_with_missing_analyses"`
	MissingAnalyses          map[string][]string `json:"missing_analyses"`
	// ShadowedAnalyses lists assets whose sidecar path belongs to another
	// asset of the same stem. They are neither analyzed nor missing.
	ShadowedAnalyses         map[string][]string `json:"shadowed_analyses"`
}

// PostFiles groups the files belonging to one relevant post.
type PostFiles struct {
	// Document is the caption filename named by the relevant set; Caption
	// is the root-relative path found on disk, empty when absent.
	Document string                    `json:"document,omitempty"`
	Caption  string                    `json:"original"`
	Images   []string                  `json:"images"`
	Sidecars map[AnalysisKind][]string `json:"sidecars"`
}

// CollectReport maps each relevant post ID to its files.
type CollectReport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Posts       map[string]*PostFiles `json:"posts"`
}
