package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/ctascan/internal/models"
)

func scored(kind models.AnalysisKind, filename string, s float64) *models.Record {
	return &models.Record{
		Kind:             kind,
		OriginalFilename: filename,
		Score:            &s,
		Response:         "Score: 0.5",
		AnalyzedAt:       time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSidecarPath(t *testing.T) {
	tests := []struct {
		asset string
		kind  models.AnalysisKind
		want  string
	}{
		{"/data/p/A_1.png", models.KindImageCloud, "/data/p/A_1-cta-img.json"},
		{"/data/p/A_1.jpeg", models.KindImageLocal, "/data/p/A_1-cta-img-loc.json"},
		{"/data/A.json", models.KindTextCloud, "/data/A-cta-txt.json"},
		{"/data/A.json", models.KindTextLocal, "/data/A-cta-txt-loc.json"},
		{"/data/A.json", models.KindCaptionCheck, "/data/A-cta-local.json"},
	}

	for _, tt := range tests {
		if got := SidecarPath(tt.asset, tt.kind); got != filepath.FromSlash(tt.want) {
			t.Errorf("SidecarPath(%s, %s) = %s, want %s", tt.asset, tt.kind, got, tt.want)
		}
	}
}

func TestCache_StoreAndLoad(t *testing.T) {
	dir := t.TempDir()
	asset := filepath.Join(dir, "A_1.png")
	c := New(0644)

	exists, err := c.Exists(asset, models.KindImageLocal)
	if err != nil || exists {
		t.Fatalf("Exists before store = (%v, %v), want (false, nil)", exists, err)
	}
	rec, err := c.Load(asset, models.KindImageLocal)
	if err != nil || rec != nil {
		t.Fatalf("Load before store = (%v, %v), want (nil, nil)", rec, err)
	}

	if err := c.Store(asset, models.KindImageLocal, scored(models.KindImageLocal, "A_1.png", 0.5)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	exists, err = c.Exists(asset, models.KindImageLocal)
	if err != nil || !exists {
		t.Fatalf("Exists after store = (%v, %v), want (true, nil)", exists, err)
	}

	loaded, err := c.Load(asset, models.KindImageLocal)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.OriginalFilename != "A_1.png" || loaded.ScoreValue() != 0.5 {
		t.Errorf("Unexpected record: %+v", loaded)
	}

	// Other kinds are independent
	exists, _ = c.Exists(asset, models.KindImageCloud)
	if exists {
		t.Error("Store of one kind must not create another kind's sidecar")
	}

	data, err := os.ReadFile(SidecarPath(asset, models.KindImageLocal))
	if err != nil {
		t.Fatalf("Failed to read sidecar: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Sidecar is not valid JSON: %v", err)
	}
	if fields["cta_img_loc_score"] != 0.5 {
		t.Errorf("Expected cta_img_loc_score field, got %s", data)
	}
}

func TestCache_StoreNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	asset := filepath.Join(dir, "A.json")
	c := New(0644)

	if err := c.Store(asset, models.KindTextCloud, scored(models.KindTextCloud, "A.json", 0.2)); err != nil {
		t.Fatalf("First store failed: %v", err)
	}
	before, _ := os.ReadFile(SidecarPath(asset, models.KindTextCloud))

	err := c.Store(asset, models.KindTextCloud, scored(models.KindTextCloud, "A.json", 0.9))
	if !errors.Is(err, ErrSidecarExists) {
		t.Fatalf("Expected ErrSidecarExists, got %v", err)
	}

	after, _ := os.ReadFile(SidecarPath(asset, models.KindTextCloud))
	if string(before) != string(after) {
		t.Error("Sidecar content changed on second store")
	}
}

func TestCache_StoreRejectsInvalidRecord(t *testing.T) {
	dir := t.TempDir()
	asset := filepath.Join(dir, "A_1.png")
	c := New(0644)

	if err := c.Store(asset, models.KindImageCloud, scored(models.KindImageCloud, "A_1.png", 1.4)); err == nil {
		t.Error("Expected error for out-of-range score")
	}
	if err := c.Store(asset, models.KindImageCloud, scored(models.KindImageLocal, "A_1.png", 0.1)); err == nil {
		t.Error("Expected error for mismatched kind")
	}
	if exists, _ := c.Exists(asset, models.KindImageCloud); exists {
		t.Error("Rejected record must not leave a sidecar")
	}
}

func TestCache_StoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(0644)

	for _, name := range []string{"A_1.png", "A_2.png", "B_1.png"} {
		asset := filepath.Join(dir, name)
		if err := c.Store(asset, models.KindImageCloud, scored(models.KindImageCloud, name, 0.3)); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), TempSuffix) {
			t.Errorf("Found leftover temp file %s", e.Name())
		}
	}
	if len(entries) != 3 {
		t.Errorf("Expected 3 sidecars, got %d", len(entries))
	}
}

func TestCache_LoadMalformed(t *testing.T) {
	dir := t.TempDir()
	asset := filepath.Join(dir, "A_1.png")
	c := New(0644)

	path := SidecarPath(asset, models.KindImageCloud)
	if err := os.WriteFile(path, []byte(`{"original_filename": "A_1.png", "cta_img_sc`), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	exists, err := c.Exists(asset, models.KindImageCloud)
	if err != nil || !exists {
		t.Fatalf("Malformed sidecar must still count as existing, got (%v, %v)", exists, err)
	}

	_, err = c.Load(asset, models.KindImageCloud)
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("Expected ErrUnreadable, got %v", err)
	}
}

func TestCache_SweepTemp(t *testing.T) {
	dir := t.TempDir()
	c := New(0644)
	runStart := time.Now()

	stale := filepath.Join(dir, ".A_1-cta-img.json.123"+TempSuffix)
	fresh := filepath.Join(dir, ".A_2-cta-img.json.456"+TempSuffix)
	regular := filepath.Join(dir, "A_3.png")
	for _, p := range []string{stale, fresh, regular} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write fixture: %v", err)
		}
	}
	old := runStart.Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	if err := os.Chtimes(regular, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	future := runStart.Add(time.Minute)
	if err := os.Chtimes(fresh, future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	removed, err := c.SweepTemp(stale, runStart)
	if err != nil || !removed {
		t.Errorf("SweepTemp(stale) = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = c.SweepTemp(fresh, runStart)
	if err != nil || removed {
		t.Errorf("SweepTemp(fresh) = (%v, %v), want (false, nil)", removed, err)
	}
	removed, err = c.SweepTemp(regular, runStart)
	if err != nil || removed {
		t.Errorf("SweepTemp(regular) = (%v, %v), want (false, nil)", removed, err)
	}

	if _, err := os.Stat(regular); err != nil {
		t.Error("Non-temp file must never be removed")
	}
}

func TestWriteFileAtomic_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.json")

	if err := WriteFileAtomic(path, []byte(`{"v":1}`), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte(`{"v":2}`), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"v":2}` {
		t.Errorf("Expected latest content, got %s", data)
	}
}
