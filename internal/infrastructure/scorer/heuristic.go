package scorer

import (
	"context"
	"fmt"
	"strings"
)

// Heuristic scores from metadata completeness alone. Used offline and as the
// fallback when the model is unavailable.
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

func (Heuristic) Score(ctx context.Context, in Input) (Result, error) {
	score := 30
	var notes []string

	docs := len(in.Documents)
	if docs > 3 {
		docs = 3
	}
	score += docs * 10
	notes = append(notes, fmt.Sprintf("%d supporting document(s)", len(in.Documents)))

	p := in.Project
	if strings.TrimSpace(p.Methodology) != "" {
		score += 15
		notes = append(notes, "methodology declared")
	} else {
		notes = append(notes, "no methodology")
	}
	if len(strings.TrimSpace(p.Description)) >= 100 {
		score += 10
		notes = append(notes, "detailed description")
	}
	if strings.TrimSpace(p.Location) != "" {
		score += 10
		notes = append(notes, "location given")
	}
	if p.VintageYear > 0 {
		score += 5
	}
	score = clamp(score)

	narrative := fmt.Sprintf("Heuristic review: %s.\nSCORE: %d", strings.Join(notes, ", "), score)
	return Result{Score: score, Narrative: narrative, Scorer: Heuristic{}.Name()}, nil
}
