package oracle

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rewired-gh/ctascan/internal/score"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewResponse(t *testing.T) {
	resp, err := NewResponse("  Score: 0.8\nReasoning: big button  ", score.PatternLabeled)
	if err != nil {
		t.Fatalf("NewResponse failed: %v", err)
	}
	if resp.Text != "Score: 0.8\nReasoning: big button" {
		t.Errorf("Expected trimmed text, got %q", resp.Text)
	}
	if resp.Score.Score != 0.8 || !resp.Score.Matched {
		t.Errorf("Unexpected score: %+v", resp.Score)
	}

	if _, err := NewResponse(" \n ", score.PatternBare); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "A_1.png")
	if err := os.WriteFile(png, pngHeader, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	img, err := LoadImage(png)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.MIMEType != "image/png" || img.Name != "A_1.png" {
		t.Errorf("Unexpected image: %s %s", img.Name, img.MIMEType)
	}
	if !strings.HasPrefix(img.DataURL(), "data:image/png;base64,iVBORw0KGgo") {
		t.Errorf("Unexpected data URL prefix: %.40s", img.DataURL())
	}

	// Unknown bytes fall back to the extension
	jpg := filepath.Join(dir, "A_2.jpeg")
	if err := os.WriteFile(jpg, []byte("not really an image"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	img, err = LoadImage(jpg)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.MIMEType != "image/jpeg" {
		t.Errorf("Expected image/jpeg fallback, got %s", img.MIMEType)
	}

	empty := filepath.Join(dir, "A_3.png")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadImage(empty); err == nil {
		t.Error("Expected error for empty image")
	}
	if _, err := LoadImage(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected error for missing image")
	}
}

func TestPrompts(t *testing.T) {
	if !strings.Contains(TextUserPrompt("Apply today"), "The text is:\n\nApply today\n\n") {
		t.Error("Text prompt must embed the caption")
	}
	local := LocalTextPrompt("Apply today")
	if !strings.Contains(local, "Score: [Your score]") || !strings.Contains(local, "Apply today") {
		t.Error("Local text prompt must ask for a labeled score")
	}
	if !strings.Contains(LocalImagePrompt(), "start with 'Score: '") {
		t.Error("Local image prompt must ask for a labeled score")
	}
}
