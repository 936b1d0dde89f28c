package workflow

// Action is one role-gated operation on a job. The same set drives both the
// transition guard and the visibility resolver, so the two cannot drift.
type Action string

const (
	ActionCreateJob           Action = "create_job"
	ActionCompleteInspection  Action = "complete_inspection"
	ActionUploadQuote         Action = "upload_quote"
	ActionUpdateQuote         Action = "update_quote"
	ActionAcceptQuote         Action = "accept_quote"
	ActionRejectQuote         Action = "reject_quote"
	ActionUploadDepositPOP    Action = "upload_deposit_pop"
	ActionCompleteOnsiteWork  Action = "complete_onsite_work"
	ActionSubmitDocumentation Action = "submit_documentation"
	ActionUploadFinalPOP      Action = "upload_final_payment_pop"
)

// label is the human wording used in precondition error messages.
func (a Action) label() string {
	switch a {
	case ActionCreateJob:
		return "creating a job"
	case ActionCompleteInspection:
		return "completing the inspection"
	case ActionUploadQuote:
		return "uploading a quote"
	case ActionUpdateQuote:
		return "updating the quote"
	case ActionAcceptQuote:
		return "accepting a quote"
	case ActionRejectQuote:
		return "rejecting a quote"
	case ActionUploadDepositPOP:
		return "uploading a deposit POP"
	case ActionCompleteOnsiteWork:
		return "completing onsite work"
	case ActionSubmitDocumentation:
		return "submitting job documentation"
	case ActionUploadFinalPOP:
		return "uploading a final payment POP"
	default:
		return string(a)
	}
}
