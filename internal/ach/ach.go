// Package ach implements analysis of competing hypotheses: a matrix of
// consistency judgments between hypotheses and evidence, with weighted
// inconsistency scoring and per-evidence diagnosticity.
//
// The core discipline is that hypotheses are ranked by how much evidence
// contradicts them, not how much supports them. The hypothesis with the
// least weighted inconsistency survives.
package ach

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/storage"
)

var weightValues = map[model.Weight]float64{
	model.WeightHigh:   3.0,
	model.WeightMedium: 2.0,
	model.WeightLow:    1.0,
}

// WeightValue returns the numeric multiplier for a diagnostic weight.
func WeightValue(w model.Weight) float64 {
	return weightValues[w]
}

// Engine runs matrix operations against one case database.
type Engine struct {
	db *storage.CaseDB
}

// NewEngine returns an Engine bound to a case database.
func NewEngine(db *storage.CaseDB) *Engine {
	return &Engine{db: db}
}

// SetScore records one consistency judgment, replacing any previous score
// for the same hypothesis/evidence pair. Scoring against an id that does
// not exist is a bad judgment, not a missing resource, so it fails
// validation rather than lookup.
func (e *Engine) SetScore(ctx context.Context, s model.Score) (model.Score, error) {
	if _, err := e.db.GetHypothesis(ctx, s.HypothesisID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Score{}, fmt.Errorf("ach: set score: %w", model.NewValidationError(
				"hypothesis_id", fmt.Sprintf("no hypothesis %d", s.HypothesisID)))
		}
		return model.Score{}, fmt.Errorf("ach: set score: hypothesis %d: %w", s.HypothesisID, err)
	}
	if _, err := e.db.GetEvidence(ctx, s.EvidenceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Score{}, fmt.Errorf("ach: set score: %w", model.NewValidationError(
				"evidence_id", fmt.Sprintf("no evidence %d", s.EvidenceID)))
		}
		return model.Score{}, fmt.Errorf("ach: set score: evidence %d: %w", s.EvidenceID, err)
	}
	return e.db.UpsertScore(ctx, s)
}

// Matrix is the full hypothesis/evidence grid with summary rows.
type Matrix struct {
	Hypotheses []model.Hypothesis   `json:"hypotheses"`
	Evidence   []model.EvidenceItem `json:"evidence"`
	// Cells maps hypothesis ID to evidence ID to the recorded score.
	Cells     map[int64]map[int64]model.Score `json:"cells"`
	Summaries []Summary                       `json:"summaries"`
}

// Summary is the scoring rollup for one hypothesis.
type Summary struct {
	HypothesisID          int64      `json:"hypothesis_id"`
	Description           string     `json:"description"`
	Tier                  model.Tier `json:"tier"`
	ConsistentCount       int        `json:"consistent_count"`
	InconsistentCount     int        `json:"inconsistent_count"`
	NeutralCount          int        `json:"neutral_count"`
	WeightedInconsistency float64    `json:"weighted_inconsistency"`
	Rank                  int        `json:"rank"`
}

// BuildMatrix loads hypotheses, evidence, and scores concurrently and
// assembles the grid with summaries ranked by weighted inconsistency.
func (e *Engine) BuildMatrix(ctx context.Context) (*Matrix, error) {
	var (
		hyps   []model.Hypothesis
		items  []model.EvidenceItem
		scores []model.Score
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hyps, err = e.db.ListHypotheses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = e.db.ListEvidence(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		scores, err = e.db.AllScores(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ach: build matrix: %w", err)
	}

	cells := make(map[int64]map[int64]model.Score, len(hyps))
	for _, s := range scores {
		row, ok := cells[s.HypothesisID]
		if !ok {
			row = make(map[int64]model.Score)
			cells[s.HypothesisID] = row
		}
		row[s.EvidenceID] = s
	}

	m := &Matrix{
		Hypotheses: hyps,
		Evidence:   items,
		Cells:      cells,
		Summaries:  summarize(hyps, scores),
	}
	return m, nil
}

// Summaries computes the per-hypothesis rollup without the full grid.
func (e *Engine) Summaries(ctx context.Context) ([]Summary, error) {
	hyps, err := e.db.ListHypotheses(ctx)
	if err != nil {
		return nil, fmt.Errorf("ach: summaries: %w", err)
	}
	scores, err := e.db.AllScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("ach: summaries: %w", err)
	}
	return summarize(hyps, scores), nil
}

func summarize(hyps []model.Hypothesis, scores []model.Score) []Summary {
	byHyp := make(map[int64]*Summary, len(hyps))
	summaries := make([]Summary, 0, len(hyps))
	for _, h := range hyps {
		summaries = append(summaries, Summary{
			HypothesisID: h.ID,
			Description:  h.Description,
			Tier:         h.Tier,
		})
	}
	for i := range summaries {
		byHyp[summaries[i].HypothesisID] = &summaries[i]
	}

	for _, s := range scores {
		sum, ok := byHyp[s.HypothesisID]
		if !ok {
			continue
		}
		switch s.Consistency {
		case model.Consistent:
			sum.ConsistentCount++
		case model.Inconsistent:
			sum.InconsistentCount++
			sum.WeightedInconsistency += weightValues[s.Weight]
		case model.Neutral:
			sum.NeutralCount++
		}
	}

	// Least contradicted first; ties broken by consistent count, then ID
	// for stable output.
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].WeightedInconsistency != summaries[j].WeightedInconsistency {
			return summaries[i].WeightedInconsistency < summaries[j].WeightedInconsistency
		}
		if summaries[i].ConsistentCount != summaries[j].ConsistentCount {
			return summaries[i].ConsistentCount > summaries[j].ConsistentCount
		}
		return summaries[i].HypothesisID < summaries[j].HypothesisID
	})
	for i := range summaries {
		summaries[i].Rank = i + 1
	}
	return summaries
}

// Diagnosticity reports how well one evidence item discriminates between
// hypotheses. Evidence consistent with everything proves nothing.
type Diagnosticity struct {
	EvidenceID  int64   `json:"evidence_id"`
	Name        string  `json:"name"`
	ScoredCells int     `json:"scored_cells"`
	Distinct    int     `json:"distinct_judgments"`
	Score       float64 `json:"score"`
	Note        string  `json:"note,omitempty"`
}

// EvidenceDiagnosticity scores every evidence item by the spread of its
// judgments across hypotheses, weighted by cell weight. Items scored
// against fewer than two hypotheses get a zero with a note.
func (e *Engine) EvidenceDiagnosticity(ctx context.Context) ([]Diagnosticity, error) {
	items, err := e.db.ListEvidence(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("ach: diagnosticity: %w", err)
	}
	scores, err := e.db.AllScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("ach: diagnosticity: %w", err)
	}

	byEvidence := make(map[int64][]model.Score)
	for _, s := range scores {
		byEvidence[s.EvidenceID] = append(byEvidence[s.EvidenceID], s)
	}

	out := make([]Diagnosticity, 0, len(items))
	for _, item := range items {
		d := Diagnosticity{EvidenceID: item.ID, Name: item.Name}
		cellScores := byEvidence[item.ID]
		d.ScoredCells = len(cellScores)
		if len(cellScores) < 2 {
			d.Note = "scored against fewer than two hypotheses"
			out = append(out, d)
			continue
		}

		judgments := make(map[model.Consistency]int)
		var weightSum float64
		for _, s := range cellScores {
			judgments[s.Consistency]++
			weightSum += weightValues[s.Weight]
		}
		d.Distinct = len(judgments)

		// Fraction of cells disagreeing with the majority judgment,
		// scaled by mean weight. Uniform judgments score zero.
		majority := 0
		for _, n := range judgments {
			if n > majority {
				majority = n
			}
		}
		disagreement := float64(len(cellScores)-majority) / float64(len(cellScores))
		meanWeight := weightSum / float64(len(cellScores))
		d.Score = disagreement * meanWeight
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EvidenceID < out[j].EvidenceID
	})
	return out, nil
}
