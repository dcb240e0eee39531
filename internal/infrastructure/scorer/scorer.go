// Package scorer rates a project's verification documents on a 0-100 scale.
package scorer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"carbonmarket-backend/internal/domain"

	"github.com/rs/zerolog/log"
)

// Input is what a scorer sees of a project.
type Input struct {
	Project   domain.Project
	Documents []domain.Document
}

// Result is a score plus the narrative that justifies it.
type Result struct {
	Score     int
	Narrative string
	Scorer    string
}

type Scorer interface {
	Score(ctx context.Context, in Input) (Result, error)
	Name() string
}

var scoreRe = regexp.MustCompile(`(?i)SCORE:\s*(\d{1,3})`)

// ParseScore extracts the first "SCORE: n" marker and clamps it to 0-100.
func ParseScore(text string) (int, error) {
	m := scoreRe.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("scorer: no SCORE marker in response")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("scorer: bad score %q: %w", m[1], err)
	}
	return clamp(n), nil
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// Prompt renders the request sent to a generative model.
func Prompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are auditing a carbon offset project for credit issuance.\n")
	fmt.Fprintf(&b, "Project: %s\nLocation: %s\nMethodology: %s\nVintage: %d\nEstimated credits: %s\n",
		in.Project.Name, in.Project.Location, in.Project.Methodology, in.Project.VintageYear, in.Project.EstimatedCredits.String())
	fmt.Fprintf(&b, "Description: %s\n", in.Project.Description)
	b.WriteString("Documents:\n")
	for _, d := range in.Documents {
		fmt.Fprintf(&b, "- %s (%s, %d bytes, cid %s)\n", d.FileName, d.ContentType, d.Size, d.CID)
	}
	b.WriteString("Assess additionality, permanence, leakage and measurability. ")
	b.WriteString("Answer with a short narrative and end with a line of the form SCORE: <0-100>.")
	return b.String()
}

type fallback struct {
	primary   Scorer
	secondary Scorer
}

// WithFallback tries primary and answers from secondary when it fails.
func WithFallback(primary, secondary Scorer) Scorer {
	return &fallback{primary: primary, secondary: secondary}
}

func (f *fallback) Name() string { return f.primary.Name() }

func (f *fallback) Score(ctx context.Context, in Input) (Result, error) {
	res, err := f.primary.Score(ctx, in)
	if err == nil {
		return res, nil
	}
	log.Warn().Err(err).Str("scorer", f.primary.Name()).Uint("project_id", in.Project.ID).Msg("scorer failed, using fallback")
	return f.secondary.Score(ctx, in)
}
