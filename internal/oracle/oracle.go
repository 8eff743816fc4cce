// Package oracle defines the scoring capability the pipeline runs against and
// the prompts shared by its backends.
//
// Backends live in subpackages: cloud (hosted chat completion APIs) and local
// (an Ollama server). Every backend treats transport errors, non-2xx
// responses and empty completions as failures, so the caller writes no
// sidecar and the asset is retried on the next run.
package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rewired-gh/ctascan/internal/score"
)

// ErrEmptyResponse is returned when a backend answered without any text.
var ErrEmptyResponse = errors.New("oracle returned an empty response")

// Oracle scores images and caption text for call-to-action likelihood.
type Oracle interface {
	ScoreImage(ctx context.Context, img Image) (Response, error)
	ScoreText(ctx context.Context, text string) (Response, error)
	Name() string
}

// Response is a backend answer together with the score parsed from it.
type Response struct {
	Text  string
	Score score.Result
}

// NewResponse trims the completion text and parses it with p.
func NewResponse(text string, p score.Pattern) (Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{}, ErrEmptyResponse
	}
	return Response{Text: text, Score: score.Parse(text, p)}, nil
}

// Image is an image asset loaded for scoring.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// LoadImage reads an image file and sniffs its content type.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("image %s is empty", filepath.Base(path))
	}
	return Image{
		Name:     filepath.Base(path),
		MIMEType: detectImageType(data, path),
		Data:     data,
	}, nil
}

// Base64 returns the standard base64 encoding of the image bytes.
func (img Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// DataURL returns the image as a data: URL.
func (img Image) DataURL() string {
	return "data:" + img.MIMEType + ";base64," + img.Base64()
}

func detectImageType(data []byte, path string) string {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
