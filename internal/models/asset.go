package models

import (
	"errors"
	"time"
)

// Role classifies a file found in the archive tree.
type Role int

const (
	RoleOther Role = iota
	RoleImage
	RoleCaption
	RoleSidecar
	RoleReport
	RoleTemp
)

func (r Role) String() string {
	switch r {
	case RoleImage:
		return "image"
	case RoleCaption:
		return "caption"
	case RoleSidecar:
		return "sidecar"
	case RoleReport:
		return "report"
	case RoleTemp:
		return "temp"
	default:
		return "other"
	}
}

// Asset is one classified file under the archive root.
type Asset struct {
	Path    string // absolute or root-joined path
	RelPath string // slash-separated path relative to the root
	Name    string // base filename
	Role    Role
	PostID  string
	ModTime time.Time

	// Sidecar-only fields: the kind of the analysis and the stem of the
	// asset it belongs to.
	SidecarKind AnalysisKind
	AssetStem   string

	DiscoveredAt time.Time
}

// Validate checks that the asset fields are consistent with its role.
func (a *Asset) Validate() error {
	if a.Path == "" {
		return errors.New("asset path must not be empty")
	}
	if a.Name == "" {
		return errors.New("asset name must not be empty")
	}
	switch a.Role {
	case RoleImage, RoleCaption:
		if a.PostID == "" {
			return errors.New("post ID must not be empty for scorable assets")
		}
	case RoleSidecar:
		if !a.SidecarKind.Valid() {
			return errors.New("sidecar asset must carry a valid analysis kind")
		}
		if a.AssetStem == "" {
			return errors.New("sidecar asset must carry its asset stem")
		}
	}
	return nil
}
