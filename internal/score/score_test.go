package score

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		pattern     Pattern
		wantScore   float64
		wantMatched bool
		wantAnomaly bool
	}{
		{"bare in sentence", "The likelihood is 0.7 because of the button.", PatternBare, 0.7, true, false},
		{"bare first token wins", "Scores 0.2 then 0.9", PatternBare, 0.2, true, false},
		{"bare markdown", "**CTA score: 0.8**", PatternBare, 0.8, true, false},
		{"bare ignores integers", "I rate this 1 out of 10", PatternBare, 0, false, false},
		{"bare needs word boundary", "version 10.55 build", PatternBare, 0, false, false},
		{"labeled", "Score: 0.6\nReasoning: sign up link", PatternLabeled, 0.6, true, false},
		{"labeled no space", "Score:0.3", PatternLabeled, 0.3, true, false},
		{"labeled bold", "**Score:** 0.9\nReasoning: ...", PatternLabeled, 0.9, true, false},
		{"labeled rounds", "Score: 0.45", PatternLabeled, 0.5, true, false},
		{"labeled integer one", "Score: 1", PatternLabeled, 1.0, true, false},
		{"labeled out of range", "Score: 7", PatternLabeled, 1.0, true, true},
		{"labeled missing", "I think it has a CTA.", PatternLabeled, 0, false, false},
		{"empty", "", PatternBare, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, tt.pattern)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Matched != tt.wantMatched {
				t.Errorf("Matched = %v, want %v", got.Matched, tt.wantMatched)
			}
			if (got.Anomaly != "") != tt.wantAnomaly {
				t.Errorf("Anomaly = %q, wantAnomaly %v", got.Anomaly, tt.wantAnomaly)
			}
			if got.Raw != tt.raw {
				t.Errorf("Raw = %q, want original text", got.Raw)
			}
		})
	}
}

func TestParse_FallbackKeepsOriginalText(t *testing.T) {
	raw := "  No clear call to action.\n\nMaybe?  "
	for _, p := range []Pattern{PatternBare, PatternLabeled} {
		got := Parse(raw, p)
		if got.Score != 0.0 || got.Raw != raw {
			t.Errorf("%s: got (%v, %q), want (0.0, original)", p, got.Score, got.Raw)
		}
	}
}

func TestParse_ZeroPattern(t *testing.T) {
	got := Parse("Score: 0.5", Pattern{})
	if got.Matched || got.Score != 0 {
		t.Errorf("zero pattern should never match, got %+v", got)
	}
}

func TestRound(t *testing.T) {
	tests := map[float64]float64{
		0.04: 0.0,
		0.05: 0.1,
		0.96: 1.0,
		0.33: 0.3,
	}
	for in, want := range tests {
		if got := Round(in); got != want {
			t.Errorf("Round(%v) = %v, want %v", in, got, want)
		}
	}
}
