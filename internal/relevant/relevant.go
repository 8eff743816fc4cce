// Package relevant loads the pre-computed list of posts selected for CTA
// analysis.
package relevant

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rewired-gh/ctascan/internal/assetid"
)

// File is the on-disk form of relevant_post_filenames.json.
type File struct {
	TotalPosts int      `json:"total_posts_from_dec_2023"`
	Filenames  []string `json:"filenames"`
}

// Set holds the stems of relevant post documents. A nil *Set admits every
// post.
type Set struct {
	posts      map[string]string // stem -> original filename
	totalPosts int
}

// Load reads a relevant-post file. An empty path returns a nil set, which
// disables filtering.
func Load(path string) (*Set, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read relevant post file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse relevant post file %s: %w", path, err)
	}
	return New(f.Filenames, f.TotalPosts), nil
}

// New builds a set from post document filenames such as "A.json".
func New(filenames []string, totalPosts int) *Set {
	s := &Set{
		posts:      make(map[string]string, len(filenames)),
		totalPosts: totalPosts,
	}
	for _, name := range filenames {
		if name == "" {
			continue
		}
		s.posts[assetid.Stem(name)] = name
	}
	return s
}

// Contains reports whether postID is relevant.
func (s *Set) Contains(postID string) bool {
	if s == nil {
		return true
	}
	_, ok := s.posts[postID]
	return ok
}

// Filtering reports whether the set restricts posts at all.
func (s *Set) Filtering() bool {
	return s != nil
}

// Len returns the number of relevant posts, or 0 for a nil set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.posts)
}

// TotalPosts returns the corpus size recorded by the producer of the file.
func (s *Set) TotalPosts() int {
	if s == nil {
		return 0
	}
	return s.totalPosts
}

// Filename returns the original document filename for a post ID.
func (s *Set) Filename(postID string) (string, bool) {
	if s == nil {
		return "", false
	}
	name, ok := s.posts[postID]
	return name, ok
}

// IDs returns the relevant post IDs in sorted order.
func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.posts))
	for id := range s.posts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
