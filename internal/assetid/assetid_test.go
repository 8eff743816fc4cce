package assetid

import (
	"testing"

	"github.com/rewired-gh/ctascan/internal/models"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		filename string
		rule     Rule
		want     string
	}{
		{"2024-01-05_post123_img1.png", RuleUnderscore, "2024-01-05"},
		{"2024-01-05_post123.json", RuleUnderscore, "2024-01-05"},
		{"2024-01-05_post123_img1.png", RuleStem, "2024-01-05_post123_img1"},
		{"2024-01-05_post123.json", RuleStem, "2024-01-05_post123"},
		{"A.json", RuleUnderscore, "A"},
		{"A.json", RuleStem, "A"},
		{"A_1.jpeg", RuleUnderscore, "A"},
		{"nested/dir/B_2.png", RuleUnderscore, "B"},
		{"noext", RuleStem, "noext"},
		{"_leading.png", RuleUnderscore, ""},
	}

	for _, tt := range tests {
		if got := Derive(tt.filename, tt.rule); got != tt.want {
			t.Errorf("Derive(%q, %s) = %q, want %q", tt.filename, tt.rule, got, tt.want)
		}
	}
}

func TestDerive_RulesDisagreeOnlyForStem(t *testing.T) {
	img := "2024-01-05_post123_img1.png"
	doc := "2024-01-05_post123.json"

	if Derive(img, RuleUnderscore) != Derive(doc, RuleUnderscore) {
		t.Error("underscore rule should group image and caption under one post")
	}
	if Derive(img, RuleStem) == Derive(doc, RuleStem) {
		t.Error("stem rule should keep image and caption apart")
	}
}

func TestDerive_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if Derive("X_y_z.png", RuleUnderscore) != "X" {
			t.Fatal("Derive is not stable")
		}
	}
}

func TestForKind(t *testing.T) {
	tests := map[models.AnalysisKind]Rule{
		models.KindImageCloud:   RuleUnderscore,
		models.KindImageLocal:   RuleUnderscore,
		models.KindTextCloud:    RuleStem,
		models.KindTextLocal:    RuleStem,
		models.KindCaptionCheck: RuleStem,
	}
	for kind, want := range tests {
		if got := ForKind(kind); got != want {
			t.Errorf("ForKind(%s) = %s, want %s", kind, got, want)
		}
	}
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		in      string
		want    Rule
		wantErr bool
	}{
		{"", "", false},
		{"auto", "", false},
		{"Underscore", RuleUnderscore, false},
		{"stem", RuleStem, false},
		{"prefix", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRule(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRule(%q) = (%q, %v), want (%q, wantErr %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestFromStem(t *testing.T) {
	if got := FromStem("2024.01.05_post", RuleUnderscore); got != "2024.01.05" {
		t.Errorf("FromStem underscore = %q", got)
	}
	if got := FromStem("2024.01.05_post", RuleStem); got != "2024.01.05_post" {
		t.Errorf("FromStem stem = %q", got)
	}
}
