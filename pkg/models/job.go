package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a maintenance job. Transitions only
// move along the edges enforced by internal/workflow; the single back-edge
// is quote_rejected_by_agent -> quote_uploaded when a new quote is attached.
type JobStatus string

const (
	StatusPendingInspection         JobStatus = "pending_inspection"
	StatusInspectionCompleted       JobStatus = "inspection_completed"
	StatusQuoteUploaded             JobStatus = "quote_uploaded"
	StatusQuoteAcceptedByAgent      JobStatus = "quote_accepted_by_agent"
	StatusQuoteRejectedByAgent      JobStatus = "quote_rejected_by_agent"
	StatusDepositPOPUploaded        JobStatus = "deposit_pop_uploaded"
	StatusContractorCompletedOnsite JobStatus = "contractor_completed_onsite_work"
	StatusContractorCompleted       JobStatus = "contractor_completed"
	StatusFinalPaymentPOPUploaded   JobStatus = "final_payment_pop_uploaded"
)

// QuoteDecision is the agent's accept/reject decision on a quote. Empty until
// the agent has decided.
type QuoteDecision string

const (
	DecisionNone     QuoteDecision = ""
	DecisionAccepted QuoteDecision = "accepted"
	DecisionRejected QuoteDecision = "rejected"
)

// Job is one maintenance request. Number is sequential per agent, assigned at
// creation and never reused. Document fields hold file-store references; the
// bytes live in the file store, not the database.
type Job struct {
	ID                  uuid.UUID     `db:"id"                    json:"id"`
	AgentID             uuid.UUID     `db:"agent_id"              json:"agent_id"`
	Number              int           `db:"number"                json:"number"`
	Status              JobStatus     `db:"status"                json:"status"`
	Date                time.Time     `db:"date"                  json:"date"`
	AddressDetails      string        `db:"address_details"       json:"address_details"`
	GPSLink             string        `db:"gps_link"              json:"gps_link"`
	QuoteRequestDetails string        `db:"quote_request_details" json:"quote_request_details"`
	DateOfInspection    *time.Time    `db:"date_of_inspection"    json:"date_of_inspection,omitempty"`
	Quote               string        `db:"quote"                 json:"quote,omitempty"`
	QuoteDecision       QuoteDecision `db:"quote_decision"        json:"accepted_or_rejected,omitempty"`
	DepositPOP          string        `db:"deposit_pop"           json:"deposit_pop,omitempty"`
	OnsiteWorkDate      *time.Time    `db:"onsite_work_date"      json:"job_onsite_work_completion_date,omitempty"`
	Invoice             string        `db:"invoice"               json:"invoice,omitempty"`
	Comments            string        `db:"comments"              json:"comments,omitempty"`
	Complete            bool          `db:"complete"              json:"complete"`
	FinalPaymentPOP     string        `db:"final_payment_pop"     json:"final_payment_pop,omitempty"`
	CreatedAt           time.Time     `db:"created_at"            json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at"            json:"updated_at"`

	// Photos are loaded alongside the job on detail reads.
	Photos []*JobPhoto `db:"-" json:"job_completion_photos,omitempty"`
}

// JobPhoto is one completion photo attached when the contractor submits the
// final job documentation. Position preserves upload order.
type JobPhoto struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	JobID     uuid.UUID `db:"job_id"     json:"job_id"`
	FileRef   string    `db:"file_ref"   json:"-"`
	Position  int       `db:"position"   json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
