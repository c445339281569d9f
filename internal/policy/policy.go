// Package policy decides when a job's interview invitations fire.
package policy

import (
	"fmt"

	"github.com/me/hireflow/pkg/model"
)

// Decide returns the trigger decision for a job after a completion was
// registered. It has no side effects.
//
// Pools of at most threshold candidates fire immediately for every
// completion. Larger pools wait until the last enrolled candidate completes
// and then fire one batch for the whole job.
func Decide(enrolled, completed, threshold int) (model.Decision, error) {
	if enrolled <= 0 {
		return "", &model.InvalidJobStateError{Reason: fmt.Sprintf("enrolled_count must be positive, got %d", enrolled)}
	}
	if completed < 0 || completed > enrolled {
		return "", &model.InvalidJobStateError{Reason: fmt.Sprintf("completed_count %d outside 0..%d", completed, enrolled)}
	}
	if enrolled <= threshold {
		return model.DecisionFireImmediate, nil
	}
	if completed < enrolled {
		return model.DecisionWait, nil
	}
	return model.DecisionFireBatch, nil
}
