package model

// Decision is the trigger policy's verdict for one completion.
type Decision string

const (
	DecisionFireImmediate Decision = "FIRE_IMMEDIATE"
	DecisionWait          Decision = "WAIT"
	DecisionFireBatch     Decision = "FIRE_BATCH"
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}

// Fires returns true if the decision leads to invitations being sent.
func (d Decision) Fires() bool {
	return d == DecisionFireImmediate || d == DecisionFireBatch
}

// Reason maps a firing decision to the reason stored on its invitations.
func (d Decision) Reason() InvitationReason {
	if d == DecisionFireBatch {
		return ReasonBatchTopN
	}
	return ReasonImmediate
}

// JobState is the scheduling state of a job. It is never stored; it is
// derived from the persisted result and invitation counts.
type JobState string

const (
	JobStateCollecting    JobState = "COLLECTING"
	JobStateReadyToDecide JobState = "READY_TO_DECIDE"
	JobStateDecided       JobState = "DECIDED"
)

// String returns the string representation of the job state.
func (s JobState) String() string {
	return string(s)
}

// ValidJobTransitions defines the allowed scheduling state transitions.
// There is no way back from DECIDED.
var ValidJobTransitions = map[JobState][]JobState{
	JobStateCollecting:    {JobStateCollecting, JobStateReadyToDecide, JobStateDecided},
	JobStateReadyToDecide: {JobStateDecided},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s JobState) CanTransitionTo(next JobState) bool {
	for _, allowed := range ValidJobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Outcome summarizes what a submission event led to.
type Outcome string

const (
	OutcomeSent           Outcome = "SENT"
	OutcomeWaiting        Outcome = "WAITING"
	OutcomeAlreadyHandled Outcome = "ALREADY_HANDLED"
	OutcomeRejected       Outcome = "REJECTED"
	// OutcomeDispatchFailed means a decision fired but every hand-off
	// failed; nothing was recorded and Redispatch can retry.
	OutcomeDispatchFailed Outcome = "DISPATCH_FAILED"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// DispatchStatus is the result of a single dispatch call.
type DispatchStatus string

const (
	DispatchSent        DispatchStatus = "SENT"
	DispatchAlreadySent DispatchStatus = "ALREADY_SENT"
	DispatchFailed      DispatchStatus = "FAILED"
)

// String returns the string representation of the dispatch status.
func (s DispatchStatus) String() string {
	return string(s)
}
