// Package score extracts a normalized CTA score from free-text model output.
package score

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Pattern is a compiled score pattern. The first capture group holds the
// numeric token.
type Pattern struct {
	name string
	re   *regexp.Regexp
}

var (
	// PatternBare matches the first standalone "d.d" token anywhere in the
	// text. Cloud completions are parsed this way.
	PatternBare = Pattern{name: "bare", re: regexp.MustCompile(`\b(\d\.\d)\b`)}

	// PatternLabeled matches a "Score:" label followed by a number, tolerating
	// markdown emphasis around the label. Local model output is parsed this way.
	PatternLabeled = Pattern{name: "labeled", re: regexp.MustCompile(`Score\**\s*:\s*\**\s*(\d+\.?\d*)`)}
)

// String returns the pattern name.
func (p Pattern) String() string {
	return p.name
}

// Result is the outcome of parsing one response.
type Result struct {
	Score   float64
	Raw     string
	Matched bool
	// Anomaly describes a parsed value that had to be corrected. Empty when
	// the value was usable as is.
	Anomaly string
}

// Parse searches raw for the pattern's score token. A match is rounded to one
// decimal and clamped to [0, 1]. Without a match the score is 0 and the raw
// text is returned untouched, so a response can always be persisted.
func Parse(raw string, p Pattern) Result {
	res := Result{Raw: raw}
	if p.re == nil {
		return res
	}

	m := p.re.FindStringSubmatch(raw)
	if m == nil {
		return res
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		res.Anomaly = fmt.Sprintf("unparsable score token %q", m[1])
		return res
	}

	res.Matched = true
	res.Score = Round(v)
	if res.Score > 1 {
		res.Anomaly = fmt.Sprintf("score %s out of range, clamped to 1.0", m[1])
		res.Score = 1
	}
	return res
}

// Round rounds v to one decimal place.
func Round(v float64) float64 {
	return math.Round(v*10) / 10
}
