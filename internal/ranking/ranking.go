// Package ranking orders a job's completed assessments and selects who is
// invited. Rankings are always recomputed from persisted results.
package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/me/hireflow/pkg/model"
)

// ResultLister loads every assessment result recorded for a job.
type ResultLister interface {
	ListResults(ctx context.Context, jobID string) ([]*model.AssessmentResult, error)
}

// Rank sorts results by score (highest first), then by completion time
// (earliest first), then by candidate ID, and assigns 1-based ranks.
// The input slice is not modified.
func Rank(results []*model.AssessmentResult) []model.RankedResult {
	sorted := make([]*model.AssessmentResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CompletedAt.Equal(b.CompletedAt) {
			return a.CompletedAt.Before(b.CompletedAt)
		}
		return a.CandidateID < b.CandidateID
	})

	ranked := make([]model.RankedResult, len(sorted))
	for i, r := range sorted {
		ranked[i] = model.RankedResult{AssessmentResult: r, Rank: i + 1}
	}
	return ranked
}

// TopN returns the first n entries of a ranking, or all of them if fewer.
func TopN(ranked []model.RankedResult, n int) []model.RankedResult {
	if n < 0 {
		n = 0
	}
	if len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}

// Selector picks invitation recipients for a trigger decision.
type Selector struct {
	results ResultLister
}

// NewSelector creates a Selector reading results from rl.
func NewSelector(rl ResultLister) *Selector {
	return &Selector{results: rl}
}

// Ranked loads and ranks all results for a job.
func (s *Selector) Ranked(ctx context.Context, jobID string) ([]model.RankedResult, error) {
	results, err := s.results.ListResults(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list results for %s: %w", jobID, err)
	}
	return Rank(results), nil
}

// SelectRecipients returns the candidates to invite, in rank order.
//
// FIRE_IMMEDIATE selects only candidateID, carrying its rank among the
// results recorded so far. FIRE_BATCH selects the job's top N. WAIT selects
// nobody.
func (s *Selector) SelectRecipients(ctx context.Context, job *model.JobPosting, decision model.Decision, candidateID string) ([]model.RankedResult, error) {
	switch decision {
	case model.DecisionWait:
		return nil, nil
	case model.DecisionFireImmediate:
		ranked, err := s.Ranked(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range ranked {
			if r.CandidateID == candidateID {
				return []model.RankedResult{r}, nil
			}
		}
		return nil, fmt.Errorf("no assessment result for candidate %s in job %s", candidateID, job.ID)
	case model.DecisionFireBatch:
		ranked, err := s.Ranked(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		return TopN(ranked, job.TopN), nil
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}
}
