// Package scheduler is the entry point for assessment submissions. It
// registers each completion, applies the trigger policy and dispatches the
// resulting interview invitations.
//
// Job state is never held in memory: COLLECTING, READY_TO_DECIDE and
// DECIDED are recomputed from the persisted result and invitation counts on
// every call.
package scheduler

import "github.com/me/hireflow/pkg/model"

// Config holds the per-deployment job defaults.
type Config struct {
	Threshold int
	TopN      int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{Threshold: model.DefaultThreshold, TopN: model.DefaultTopN}
}
