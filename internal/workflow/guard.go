package workflow

import (
	"github.com/marniemm/jobsvc/pkg/models"
)

// CanTransition is the pure authorization and precondition check for a
// transition on an existing job. It never mutates state. Role failures are
// reported before status failures, so an actor who may never touch a job
// cannot probe its state.
func CanTransition(job *models.Job, user *models.User, action Action) error {
	r, ok := transitionRules[action]
	if !ok {
		return ErrNotPermitted
	}
	if !roleAllowed(job, user, r) {
		return ErrNotPermitted
	}
	if !statusAllowed(job, r) {
		return wrongStateError(action)
	}
	if r.extra != nil && !r.extra(job) {
		return wrongStateError(action)
	}
	return nil
}

// CanCreateJob reports whether the user may create a new job. Creation has no
// current job, so it sits outside the transition table.
func CanCreateJob(user *models.User) error {
	if user.IsAgent || user.IsAdmin {
		return nil
	}
	return ErrNotPermitted
}

// CanView reports whether the user may see the job at all: the contractor,
// an admin, or the agent who owns it.
func CanView(job *models.Job, user *models.User) error {
	if user.IsAdmin || user.IsContractor || user.ID == job.AgentID {
		return nil
	}
	return ErrNotPermitted
}

// VisibleActions computes the next-step actions a UI should expose for this
// viewer. It is the exact mirror of CanTransition over the shared rule table:
// an action appears here iff the guard would authorize it right now.
func VisibleActions(job *models.Job, user *models.User) []Action {
	var actions []Action
	for _, action := range orderedActions {
		if CanTransition(job, user, action) == nil {
			actions = append(actions, action)
		}
	}
	return actions
}

// orderedActions fixes the display order of VisibleActions output.
var orderedActions = []Action{
	ActionCompleteInspection,
	ActionUploadQuote,
	ActionUpdateQuote,
	ActionAcceptQuote,
	ActionRejectQuote,
	ActionUploadDepositPOP,
	ActionCompleteOnsiteWork,
	ActionSubmitDocumentation,
	ActionUploadFinalPOP,
}
