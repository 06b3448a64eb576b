package models

// Status is the verification workflow state.
type Status string

const (
	StatusNotStarted  Status = "NOT_STARTED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusPending     Status = "PENDING"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusNeedsReview Status = "NEEDS_REVIEW"
	StatusExpired     Status = "EXPIRED"
)

// transitions encodes the workflow graph:
//
//	NotStarted → InProgress → Pending → {Approved | Rejected | NeedsReview}
//
// Approved may later become Expired, re-enter InProgress on a level upgrade,
// or drop to NeedsReview when an AML check downgrades a fresh approval.
// NeedsReview, Rejected and Expired re-enter InProgress when the user
// re-initiates.
var transitions = map[Status][]Status{
	StatusNotStarted:  {StatusInProgress},
	StatusInProgress:  {StatusPending, StatusApproved, StatusRejected, StatusNeedsReview},
	StatusPending:     {StatusApproved, StatusRejected, StatusNeedsReview},
	StatusApproved:    {StatusInProgress, StatusExpired, StatusNeedsReview},
	StatusRejected:    {StatusInProgress},
	StatusNeedsReview: {StatusInProgress, StatusApproved, StatusRejected},
	StatusExpired:     {StatusInProgress},
}

// CanTransitionTo reports whether moving from s to next is a legal workflow
// step. Self-transitions are allowed so repeated vendor updates with the same
// outcome do not trip the guard.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InFlight reports whether a verification attempt is currently underway.
func (s Status) InFlight() bool {
	return s == StatusInProgress || s == StatusPending
}
