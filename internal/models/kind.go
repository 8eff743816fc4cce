// Package models defines the core domain types for ctascan.
// These types describe analysis kinds, the files found in an archive tree,
// the per-asset analysis records persisted as sidecar files, and the
// summaries derived from them.
//
// Terminology:
//   - Post: one archived social-media item, identified by a post ID derived
//     from its filenames.
//   - Asset: a file belonging to a post (an image or a caption document).
//   - Sidecar: the JSON file written next to an asset holding one analysis.
package models

import (
	"fmt"
	"strings"
)

// AnalysisKind identifies one (target, backend) analysis. Its string value is
// the sidecar suffix without the leading dash and the .json extension.
type AnalysisKind string

const (
	KindImageCloud   AnalysisKind = "cta-img"
	KindImageLocal   AnalysisKind = "cta-img-loc"
	KindTextCloud    AnalysisKind = "cta-txt"
	KindTextLocal    AnalysisKind = "cta-txt-loc"
	KindCaptionCheck AnalysisKind = "cta-local"
)

// Target is what an analysis kind scores.
type Target string

const (
	TargetImage   Target = "image"
	TargetText    Target = "text"
	TargetCaption Target = "caption"
)

// Backend names the oracle family an analysis kind uses.
type Backend string

const (
	BackendCloud Backend = "cloud"
	BackendLocal Backend = "local"
)

// fieldSet holds the JSON field names used by one kind's sidecar schema.
type fieldSet struct {
	filename string
	score    string
	response string
	date     string // empty when the schema carries no timestamp
	checked  bool   // schema carries "checked" and "error"
}

type kindDef struct {
	target  Target
	backend Backend
	fields  fieldSet
	summary string
}

var kindDefs = map[AnalysisKind]kindDef{
	KindImageCloud: {
		target:  TargetImage,
		backend: BackendCloud,
		fields:  fieldSet{filename: "original_filename", score: "cta_img_score", response: "api_img_response"},
		summary: "cta_img_api_analysis_summary.json",
	},
	KindImageLocal: {
		target:  TargetImage,
		backend: BackendLocal,
		fields:  fieldSet{filename: "original_loc_filename", score: "cta_img_loc_score", response: "api_img_loc_response"},
		summary: "cta_analysis_summary.json",
	},
	KindTextCloud: {
		target:  TargetText,
		backend: BackendCloud,
		fields:  fieldSet{filename: "original_filename", score: "cta_txt_score", response: "api_txt_response"},
		summary: "cta_txt_api_analysis_summary.json",
	},
	KindTextLocal: {
		target:  TargetText,
		backend: BackendLocal,
		fields:  fieldSet{filename: "original_loc_filename", score: "cta_txt_loc_score", response: "api_txt_loc_response", date: "analysis_date"},
		summary: "cta_txt_analysis_summary.json",
	},
	KindCaptionCheck: {
		target:  TargetCaption,
		backend: BackendLocal,
		fields:  fieldSet{filename: "original_filename", score: "cta_txt_score", response: "api_txt_response", date: "check_date", checked: true},
		summary: "cta_caption_check_summary.json",
	},
}

// Fixed report and input filenames. These are never treated as captions.
const (
	RelevantSetFilename   = "relevant_post_filenames.json"
	MissingReportFilename = "missing_cta_analyses_summary.json"
	CollectReportFilename = "relevant_cta_files.json"

	// runSummaryPrefix marks summaries accumulated during a run, as opposed
	// to summaries rebuilt by re-scanning sidecars.
	runSummaryPrefix = "updated_"
)

// Kinds returns every analysis kind in a stable order.
func Kinds() []AnalysisKind {
	return []AnalysisKind{KindImageCloud, KindImageLocal, KindTextCloud, KindTextLocal, KindCaptionCheck}
}

// ResolveKind maps a configured target and backend to an analysis kind.
func ResolveKind(target Target, backend Backend) (AnalysisKind, error) {
	for _, k := range Kinds() {
		def := kindDefs[k]
		if def.target == target && def.backend == backend {
			return k, nil
		}
	}
	return "", fmt.Errorf("no analysis kind for target %q with backend %q", target, backend)
}

// ParseKind validates a kind name such as "cta-img-loc".
func ParseKind(s string) (AnalysisKind, error) {
	k := AnalysisKind(strings.TrimSpace(s))
	if _, ok := kindDefs[k]; !ok {
		return "", fmt.Errorf("unknown analysis kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k AnalysisKind) Valid() bool {
	_, ok := kindDefs[k]
	return ok
}

// Suffix returns the sidecar filename suffix, e.g. "-cta-img.json".
func (k AnalysisKind) Suffix() string {
	return "-" + string(k) + ".json"
}

// Target returns what the kind scores.
func (k AnalysisKind) Target() Target {
	return kindDefs[k].target
}

// Backend returns the oracle family the kind uses.
func (k AnalysisKind) Backend() Backend {
	return kindDefs[k].backend
}

// AssetRole returns the role of the assets this kind analyzes.
func (k AnalysisKind) AssetRole() Role {
	if k.Target() == TargetImage {
		return RoleImage
	}
	return RoleCaption
}

// WritesCheckedRecords reports whether the kind records documents that had
// nothing to score, so they are not examined again.
func (k AnalysisKind) WritesCheckedRecords() bool {
	return kindDefs[k].fields.checked
}

// SummaryFilename returns the summary filename for the kind. Run summaries
// carry the "updated_" prefix; re-scan summaries do not.
func (k AnalysisKind) SummaryFilename(fromRun bool) string {
	name := kindDefs[k].summary
	if fromRun {
		return runSummaryPrefix + name
	}
	return name
}

// KindForSidecar returns the kind whose suffix name ends with, and the asset
// stem in front of the suffix. Longer suffixes win, so "-cta-img-loc.json" is
// never read as "-cta-img.json".
func KindForSidecar(name string) (AnalysisKind, string, bool) {
	var best AnalysisKind
	for _, k := range Kinds() {
		if strings.HasSuffix(name, k.Suffix()) && len(k.Suffix()) > len(best.Suffix()) {
			best = k
		}
	}
	if best == "" {
		return "", "", false
	}
	return best, strings.TrimSuffix(name, best.Suffix()), true
}

// IsReportFilename reports whether name is an input or output file of this
// tool rather than archive content.
func IsReportFilename(name string) bool {
	switch name {
	case RelevantSetFilename, MissingReportFilename, CollectReportFilename:
		return true
	}
	for _, k := range Kinds() {
		if name == k.SummaryFilename(false) || name == k.SummaryFilename(true) {
			return true
		}
	}
	return false
}
