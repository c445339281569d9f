package model

// Submission is a "candidate completed assessment" event. Score may be
// omitted when the job carries an answer key; it is then graded from
// Answers.
type Submission struct {
	JobID          string   `json:"job_id" validate:"required"`
	CandidateID    string   `json:"candidate_id" validate:"required"`
	CandidateEmail string   `json:"candidate_email" validate:"required,email"`
	Score          *float64 `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	Answers        []string `json:"answers,omitempty"`
}

// ResultSummary aggregates the scores recorded for a job.
type ResultSummary struct {
	Total   int     `json:"total"`
	Invited int     `json:"invited"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
	Mean    float64 `json:"mean"`
}

// ComputeResultSummary calculates a ResultSummary from a job's results and
// invitation records.
func ComputeResultSummary(results []*AssessmentResult, invitations []*InvitationRecord) ResultSummary {
	s := ResultSummary{Total: len(results), Invited: len(invitations)}
	if len(results) == 0 {
		return s
	}
	s.Highest, s.Lowest = results[0].Score, results[0].Score
	var sum float64
	for _, r := range results {
		sum += r.Score
		if r.Score > s.Highest {
			s.Highest = r.Score
		}
		if r.Score < s.Lowest {
			s.Lowest = r.Score
		}
	}
	s.Mean = sum / float64(len(results))
	return s
}
