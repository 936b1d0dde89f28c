package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marniemm/jobsvc/pkg/models"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key violation")

	// ErrWrongState is returned when a transition's expected current status
	// no longer matches the stored row, e.g. because a concurrent request
	// won the race.
	ErrWrongState = errors.New("job is not in the expected state")

	// User-directory errors. The agent/contractor invariant and notification
	// recipient resolution depend on these being distinguishable.
	ErrContractorNotFound      = errors.New("no contractor user found")
	ErrMultipleContractors     = errors.New("multiple contractor users found")
	ErrAgentRequiresContractor = errors.New("an agent user may only exist if a contractor user exists")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	// GetContractor returns the single contractor user. Exactly one is
	// expected to exist; zero or several are reported as distinct errors.
	GetContractor(ctx context.Context) (*models.User, error)
	// ListAdmins returns admin users ordered by creation time.
	ListAdmins(ctx context.Context) ([]*models.User, error)

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error

	// CreateJob inserts the job and assigns Number as max(agent's numbers)+1
	// in the same transaction, serialized per agent.
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)
	// ApplyTransition moves the job from expected status `from` to `to` and
	// applies the field updates in one transaction. Returns ErrWrongState if
	// the job exists but its status is no longer `from`.
	ApplyTransition(ctx context.Context, id uuid.UUID, from, to models.JobStatus, opts ...TransitionOption) error
}

// JobFilter narrows ListJobs. A nil AgentID returns all jobs.
type JobFilter struct {
	AgentID *uuid.UUID
}

type transitionParams struct {
	InspectionDate *time.Time
	QuoteRef       *string
	Decision       *models.QuoteDecision
	DepositPOPRef  *string
	OnsiteDate     *time.Time
	InvoiceRef     *string
	Comments       *string
	PhotoRefs      []string
	Complete       *bool
	FinalPOPRef    *string
}

type TransitionOption func(*transitionParams)

func WithInspectionDate(d time.Time) TransitionOption {
	return func(p *transitionParams) { p.InspectionDate = &d }
}

func WithQuoteRef(ref string) TransitionOption {
	return func(p *transitionParams) { p.QuoteRef = &ref }
}

func WithDecision(d models.QuoteDecision) TransitionOption {
	return func(p *transitionParams) { p.Decision = &d }
}

func WithDepositPOPRef(ref string) TransitionOption {
	return func(p *transitionParams) { p.DepositPOPRef = &ref }
}

func WithOnsiteDate(d time.Time) TransitionOption {
	return func(p *transitionParams) { p.OnsiteDate = &d }
}

// WithDocumentation records the invoice, contractor comments and completion
// photos, and flags the job as complete.
func WithDocumentation(invoiceRef, comments string, photoRefs []string) TransitionOption {
	return func(p *transitionParams) {
		complete := true
		p.InvoiceRef = &invoiceRef
		p.Comments = &comments
		p.PhotoRefs = photoRefs
		p.Complete = &complete
	}
}

func WithFinalPOPRef(ref string) TransitionOption {
	return func(p *transitionParams) { p.FinalPOPRef = &ref }
}
