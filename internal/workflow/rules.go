package workflow

import (
	"github.com/marniemm/jobsvc/pkg/models"
)

// actor identifies which non-admin role may perform a transition. Admins are
// always permitted when the status precondition holds.
type actor int

const (
	// actorAgentOwner is the agent who owns the job.
	actorAgentOwner actor = iota
	// actorContractor is the single maintenance contractor.
	actorContractor
)

// rule is one row of the transition table: who may act, in which statuses,
// plus an optional field-level precondition.
type rule struct {
	actor    actor
	statuses []models.JobStatus
	// extra returns false when a field-level precondition fails, e.g. a
	// document that may only be uploaded once is already set.
	extra func(job *models.Job) bool
}

// transitionRules is the single source of truth for who may move a job where.
// Both CanTransition and VisibleActions consult it. ActionCreateJob is absent
// because it has no current job; see CanCreateJob.
var transitionRules = map[Action]rule{
	ActionCompleteInspection: {
		actor:    actorContractor,
		statuses: []models.JobStatus{models.StatusPendingInspection},
	},
	ActionUploadQuote: {
		actor: actorContractor,
		statuses: []models.JobStatus{
			models.StatusInspectionCompleted,
			models.StatusQuoteRejectedByAgent,
		},
	},
	ActionUpdateQuote: {
		actor:    actorContractor,
		statuses: []models.JobStatus{models.StatusQuoteRejectedByAgent},
	},
	ActionAcceptQuote: {
		actor: actorAgentOwner,
		statuses: []models.JobStatus{
			models.StatusQuoteUploaded,
			models.StatusQuoteRejectedByAgent,
		},
	},
	// Re-rejecting an already rejected quote is allowed and idempotent.
	ActionRejectQuote: {
		actor: actorAgentOwner,
		statuses: []models.JobStatus{
			models.StatusQuoteUploaded,
			models.StatusQuoteRejectedByAgent,
		},
	},
	ActionUploadDepositPOP: {
		actor:    actorAgentOwner,
		statuses: []models.JobStatus{models.StatusQuoteAcceptedByAgent},
		extra:    func(job *models.Job) bool { return job.DepositPOP == "" },
	},
	ActionCompleteOnsiteWork: {
		actor:    actorContractor,
		statuses: []models.JobStatus{models.StatusDepositPOPUploaded},
	},
	ActionSubmitDocumentation: {
		actor:    actorContractor,
		statuses: []models.JobStatus{models.StatusContractorCompletedOnsite},
	},
	ActionUploadFinalPOP: {
		actor:    actorAgentOwner,
		statuses: []models.JobStatus{models.StatusContractorCompleted},
		extra:    func(job *models.Job) bool { return job.FinalPaymentPOP == "" },
	},
}

// nextStatus is the status each transition lands in. Accept/reject and the
// quote re-upload loop are the only places two actions share a target.
var nextStatus = map[Action]models.JobStatus{
	ActionCompleteInspection:  models.StatusInspectionCompleted,
	ActionUploadQuote:         models.StatusQuoteUploaded,
	ActionUpdateQuote:         models.StatusQuoteUploaded,
	ActionAcceptQuote:         models.StatusQuoteAcceptedByAgent,
	ActionRejectQuote:         models.StatusQuoteRejectedByAgent,
	ActionUploadDepositPOP:    models.StatusDepositPOPUploaded,
	ActionCompleteOnsiteWork:  models.StatusContractorCompletedOnsite,
	ActionSubmitDocumentation: models.StatusContractorCompleted,
	ActionUploadFinalPOP:      models.StatusFinalPaymentPOPUploaded,
}

func roleAllowed(job *models.Job, user *models.User, r rule) bool {
	if user.IsAdmin {
		return true
	}
	switch r.actor {
	case actorAgentOwner:
		return user.IsAgent && user.ID == job.AgentID
	case actorContractor:
		return user.IsContractor
	default:
		return false
	}
}

func statusAllowed(job *models.Job, r rule) bool {
	for _, s := range r.statuses {
		if job.Status == s {
			return true
		}
	}
	return false
}
