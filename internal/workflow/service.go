package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marniemm/jobsvc/internal/cache"
	"github.com/marniemm/jobsvc/internal/files"
	"github.com/marniemm/jobsvc/internal/notify"
	"github.com/marniemm/jobsvc/internal/store"
	"github.com/marniemm/jobsvc/pkg/models"
)

const statusCacheTTL = 10 * time.Minute

// Service is the transition executor: it guards, persists, and notifies for
// every job transition. Notification failures never roll back a committed
// transition; they surface as a warning on the result.
type Service struct {
	store    store.Store
	files    files.Store
	composer *notify.Composer
	mailer   notify.Mailer
	resolver *notify.Resolver
	cache    cache.Cache
	logger   *slog.Logger
}

// Result is a successful transition: the job as persisted, plus a warning
// when the follow-up notification could not be delivered.
type Result struct {
	Job     *models.Job
	Warning string
}

func NewService(st store.Store, fs files.Store, composer *notify.Composer, mailer notify.Mailer, resolver *notify.Resolver, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		files:    fs,
		composer: composer,
		mailer:   mailer,
		resolver: resolver,
		cache:    c,
		logger:   logger,
	}
}

// --- Job creation ---

type CreateJobInput struct {
	Date                time.Time
	AddressDetails      string
	GPSLink             string
	QuoteRequestDetails string
}

func (in CreateJobInput) validate() error {
	if in.Date.IsZero() {
		return validationError("date is required")
	}
	if strings.TrimSpace(in.AddressDetails) == "" {
		return validationError("address_details is required")
	}
	if !strings.HasPrefix(in.GPSLink, "http://") && !strings.HasPrefix(in.GPSLink, "https://") {
		return validationError("gps_link must be a valid URL")
	}
	if strings.TrimSpace(in.QuoteRequestDetails) == "" {
		return validationError("quote_request_details is required")
	}
	return nil
}

// CreateJob creates a new maintenance request owned by the acting agent and
// notifies the contractor.
func (s *Service) CreateJob(ctx context.Context, actor *models.User, in CreateJobInput) (*Result, error) {
	if err := CanCreateJob(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:                  uuid.New(),
		AgentID:             actor.ID,
		Status:              models.StatusPendingInspection,
		Date:                in.Date,
		AddressDetails:      in.AddressDetails,
		GPSLink:             in.GPSLink,
		QuoteRequestDetails: in.QuoteRequestDetails,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.cacheStatus(ctx, job)

	warning := s.send(ctx, job, func(agent, contractor *models.User) notify.Email {
		return s.composer.JobCreated(job, agent, contractor)
	})
	return &Result{Job: job, Warning: warning}, nil
}

// --- Transitions ---

// CompleteInspection records the contractor's inspection date.
func (s *Service) CompleteInspection(ctx context.Context, actor *models.User, jobID uuid.UUID, inspected time.Time) (*Result, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(job, actor, ActionCompleteInspection); err != nil {
		return nil, err
	}
	if inspected.IsZero() {
		return nil, validationError("date_of_inspection is required")
	}

	if err := s.apply(ctx, job, ActionCompleteInspection,
		store.WithInspectionDate(inspected)); err != nil {
		return nil, err
	}

	job, err = s.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	warning := s.send(ctx, job, func(agent, contractor *models.User) notify.Email {
		return s.composer.InspectionCompleted(job, agent, contractor)
	})
	return &Result{Job: job, Warning: warning}, nil
}

// UploadQuote stores the contractor's quote PDF and moves the job to
// quote_uploaded. After a rejection the resubmitted quote must differ in
// content from the stored one; identical bytes are rejected.
func (s *Service) UploadQuote(ctx context.Context, actor *models.User, jobID uuid.UUID, quote *files.DocumentContent) (*Result, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// A re-upload after rejection is the update-quote transition; the first
	// upload after inspection is the plain upload. The two have different
	// status preconditions, so pick the action off the current state.
	action := ActionUploadQuote
	resubmission := job.Status == models.StatusQuoteRejectedByAgent
	if resubmission {
		action = ActionUpdateQuote
	}
	if err := CanTransition(job, actor, action); err != nil {
		return nil, err
	}

	if err := quote.ValidatePDF(); err != nil {
		return nil, validationError("%s", err)
	}

	if resubmission && job.Quote != "" {
		stored, err := s.files.Read(ctx, job.Quote)
		if err != nil {
			return nil, fmt.Errorf("read stored quote: %w", err)
		}
		if quote.SameContent(&files.DocumentContent{Data: stored}) {
			return nil, ErrDuplicateQuote
		}
	}

	ref, err := s.files.Save(ctx, quote.Name, quote.Reader())
	if err != nil {
		return nil, fmt.Errorf("store quote: %w", err)
	}

	if err := s.apply(ctx, job, action, store.WithQuoteRef(ref)); err != nil {
		return nil, err
	}

	job, err = s.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	attachment := notify.Attachment{Filename: path.Base(ref), Data: quote.Data, MIMEType: notify.MIMEPDF}
	warning := s.send(ctx, job, func(agent, contractor *models.User) notify.Email {
		return s.composer.QuoteUploaded(job, agent, contractor, attachment, resubmission)
	})
	return &Result{Job: job, Warning: warning}, nil
}

// AcceptQuote records the agent's acceptance and notifies the contractor.
func (s *Service) AcceptQuote(ctx context.Context, actor *models.User, jobID uuid.UUID) (*Result, error) {
	return s.decideQuote(ctx, actor, jobID, true)
}

// RejectQuote records the agent's rejection. Rejecting an already rejected
// quote succeeds without changing state.
func (s *Service) RejectQuote(ctx context.Context, actor *models.User, jobID uuid.UUID) (*Result, error) {
	return s.decideQuote(ctx, actor, jobID, false)
}

func (s *Service) decideQuote(ctx context.Context, actor *models.User, jobID uuid.UUID, accepted bool) (*Result, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	action := ActionRejectQuote
	decision := models.DecisionRejected
	target := models.StatusQuoteRejectedByAgent
	if accepted {
		action = ActionAcceptQuote
		decision = models.DecisionAccepted
		target = models.StatusQuoteAcceptedByAgent
	}
	if err := CanTransition(job, actor, action); err != nil {
		return nil, err
	}

	if err := s.store.ApplyTransition(ctx, job.ID, job.Status, target,
		store.WithDecision(decision)); err != nil {
		return nil, s.mapTransitionErr(err, action)
	}
	s.invalidateStatus(ctx, job.ID)

	job, err = s.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	warning := s.send(ctx, job, func(agent, contractor *models.User) notify.Email {
		return s.composer.QuoteDecision(job, agent, contractor, accepted)
	})
	return &Result{Job: job, Warning: warning}, nil
}

// UploadDepositPOP stores the agent's deposit proof of payment.
func (s *Service) UploadDepositPOP(ctx context.Context, actor *models.User, jobID uuid.UUID, pop *files.DocumentContent) (*Result, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(job, actor, ActionUploadDepositPOP); err != nil {
		return nil, err
	}
	if err := pop.ValidatePDF(); err != nil {
		return nil, validationError("%s", err)
	}

	ref, err := s.files.Save(ctx, pop.Name, pop.Reader())
	if err != nil {
		return nil, fmt.Errorf("store deposit pop: %w", err)
	}
	if err := s.apply(ctx, job, ActionUploadDepositPOP, store.WithDepositPOPRef(ref)); err != nil {
		return nil, err
	}

	job, err = s.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	attachment := notify.Attachment{Filename: path.Base(ref), Data: pop.Data, MIMEType: notify.MIMEPDF}
	warning := s.send(ctx, job, func(agent, contractor *models.User) notify.Email {
		return s.composer.DepositPOPUploaded(job, agent, contractor, attachment)
	})
	return &Result{Job: job, Warning: warning}, nil
}

// CompleteOnsiteWork records the date the contractor performed the physical
// work.
func (s *Service) CompleteOnsiteWork(ctx context.Context, actor *models.User, jobID uuid.UUID, workDate time.Time) (*Result, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(job, actor, ActionCompleteOnsiteWork); err != nil {
		return nil, err
	}
	if workDate.IsZero() {
		return nil, validationError("job_onsite_work_completion_date is required")
	}

	if err := s.apply(ctx, job, ActionCompleteOnsiteWork, store.WithOnsiteDate(workDate)); err != nil {
		return nil, err
	}

	job, err = s.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	warning := s.send(ctx, job, func(agent, contractor *models.User) notify.Email {
		return s.composer.OnsiteWorkCompleted(job, agent, contractor)
	})
	return &Result{Job: job, Warning: warning}, nil
}

// SubmitDocumentation stores the invoice, contractor comments, and completion
// photos, flags the job complete, and notifies the agent with everything
// attached.
func (s *Service) SubmitDocumentation(ctx context.Context, actor *models.User, jobID uuid.UUID, invoice *files.DocumentContent, comments string, photos []*files.DocumentContent) (*Result, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(job, actor, ActionSubmitDocumentation); err != nil {
		return nil, err
	}
	if err := invoice.ValidatePDF(); err != nil {
		return nil, validationError("invoice: %s", err)
	}
	for i, photo := range photos {
		if err := photo.ValidateJPEG(); err != nil {
			return nil, validationError("photo %d: %s", i+1, err)
		}
	}

	invoiceRef, err := s.files.Save(ctx, invoice.Name, invoice.Reader())
	if err != nil {
		return nil, fmt.Errorf("store invoice: %w", err)
	}
	photoRefs := make([]string, len(photos))
	for i, photo := range photos {
		ref, err := s.files.Save(ctx, photo.Name, photo.Reader())
		if err != nil {
			return nil, fmt.Errorf("store photo: %w", err)
		}
		photoRefs[i] = ref
	}

	if err := s.apply(ctx, job, ActionSubmitDocumentation,
		store.WithDocumentation(invoiceRef, comments, photoRefs)); err != nil {
		return nil, err
	}

	job, err = s.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	invoiceAtt := notify.Attachment{Filename: path.Base(invoiceRef), Data: invoice.Data, MIMEType: notify.MIMEPDF}
	photoAtts := make([]notify.Attachment, len(photos))
	for i, photo := range photos {
		photoAtts[i] = notify.Attachment{Filename: path.Base(photoRefs[i]), Data: photo.Data, MIMEType: notify.MIMEJPEG}
	}
	warning := s.send(ctx, job, func(agent, contractor *models.User) notify.Email {
		return s.composer.DocumentationSubmitted(job, agent, contractor, invoiceAtt, photoAtts)
	})
	return &Result{Job: job, Warning: warning}, nil
}

// UploadFinalPOP stores the agent's final payment proof of payment and moves
// the job to its terminal status.
func (s *Service) UploadFinalPOP(ctx context.Context, actor *models.User, jobID uuid.UUID, pop *files.DocumentContent) (*Result, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(job, actor, ActionUploadFinalPOP); err != nil {
		return nil, err
	}
	if err := pop.ValidatePDF(); err != nil {
		return nil, validationError("%s", err)
	}

	ref, err := s.files.Save(ctx, pop.Name, pop.Reader())
	if err != nil {
		return nil, fmt.Errorf("store final payment pop: %w", err)
	}
	if err := s.apply(ctx, job, ActionUploadFinalPOP, store.WithFinalPOPRef(ref)); err != nil {
		return nil, err
	}

	job, err = s.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	attachment := notify.Attachment{Filename: path.Base(ref), Data: pop.Data, MIMEType: notify.MIMEPDF}
	warning := s.send(ctx, job, func(agent, contractor *models.User) notify.Email {
		return s.composer.FinalPOPUploaded(job, agent, contractor, attachment)
	})
	return &Result{Job: job, Warning: warning}, nil
}

// --- Reads ---

// GetJob returns the job if the viewer may see it.
func (s *Service) GetJob(ctx context.Context, viewer *models.User, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := CanView(job, viewer); err != nil {
		return nil, err
	}
	return job, nil
}

// JobStatus is a lightweight status poll backed by the cache.
func (s *Service) JobStatus(ctx context.Context, viewer *models.User, jobID uuid.UUID) (models.JobStatus, error) {
	job, err := s.GetJob(ctx, viewer, jobID)
	if err != nil {
		return "", err
	}
	if status, found, err := s.cache.GetJobStatus(ctx, jobID); err == nil && found {
		return status, nil
	}
	s.cacheStatus(ctx, job)
	return job.Status, nil
}

// ListJobs returns the jobs visible to the viewer. Agents see only their own
// jobs; the contractor must name an agent; admins may optionally filter.
func (s *Service) ListJobs(ctx context.Context, viewer *models.User, agentUsername string) ([]*models.Job, error) {
	switch {
	case viewer.IsAgent && !viewer.IsAdmin:
		return s.store.ListJobs(ctx, store.JobFilter{AgentID: &viewer.ID})

	case viewer.IsContractor && !viewer.IsAdmin:
		if agentUsername == "" {
			return nil, validationError("agent username parameter is missing")
		}
		agent, err := s.store.GetUserByUsername(ctx, agentUsername)
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationError("agent username not found")
		}
		if err != nil {
			return nil, err
		}
		return s.store.ListJobs(ctx, store.JobFilter{AgentID: &agent.ID})

	case viewer.IsAdmin:
		if agentUsername == "" {
			return s.store.ListJobs(ctx, store.JobFilter{})
		}
		agent, err := s.store.GetUserByUsername(ctx, agentUsername)
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationError("agent username not found")
		}
		if err != nil {
			return nil, err
		}
		return s.store.ListJobs(ctx, store.JobFilter{AgentID: &agent.ID})

	default:
		return nil, ErrNotPermitted
	}
}

// Document is a downloadable job document.
type Document struct {
	Filename string
	Data     []byte
	MIMEType string
}

// ReadDocument serves a stored job document to an authorized viewer. kind is
// one of quote, deposit-pop, invoice, final-pop, or photo (with photoID).
func (s *Service) ReadDocument(ctx context.Context, viewer *models.User, jobID uuid.UUID, kind string, photoID uuid.UUID) (*Document, error) {
	job, err := s.GetJob(ctx, viewer, jobID)
	if err != nil {
		return nil, err
	}

	ref := ""
	mimeType := notify.MIMEPDF
	switch kind {
	case "quote":
		ref = job.Quote
	case "deposit-pop":
		ref = job.DepositPOP
	case "invoice":
		ref = job.Invoice
	case "final-pop":
		ref = job.FinalPaymentPOP
	case "photo":
		mimeType = notify.MIMEJPEG
		for _, photo := range job.Photos {
			if photo.ID == photoID {
				ref = photo.FileRef
				break
			}
		}
	default:
		return nil, validationError("unknown document kind %q", kind)
	}
	if ref == "" {
		return nil, store.ErrNotFound
	}

	data, err := s.files.Read(ctx, ref)
	if errors.Is(err, files.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Document{Filename: path.Base(ref), Data: data, MIMEType: mimeType}, nil
}

// --- internals ---

// apply runs the guarded CAS transition for action and keeps the status
// cache coherent.
func (s *Service) apply(ctx context.Context, job *models.Job, action Action, opts ...store.TransitionOption) error {
	target := nextStatus[action]
	if err := s.store.ApplyTransition(ctx, job.ID, job.Status, target, opts...); err != nil {
		return s.mapTransitionErr(err, action)
	}
	s.invalidateStatus(ctx, job.ID)
	return nil
}

// mapTransitionErr converts a lost CAS race into the same precondition error
// the guard would have produced.
func (s *Service) mapTransitionErr(err error, action Action) error {
	if errors.Is(err, store.ErrWrongState) {
		return wrongStateError(action)
	}
	return err
}

func (s *Service) reload(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("reload job after transition: %w", err)
	}
	s.cacheStatus(ctx, job)
	return job, nil
}

func (s *Service) cacheStatus(ctx context.Context, job *models.Job) {
	if err := s.cache.SetJobStatus(ctx, job.ID, job.Status, statusCacheTTL); err != nil {
		s.logger.Warn("cache job status", "job_id", job.ID, "error", err)
	}
}

func (s *Service) invalidateStatus(ctx context.Context, jobID uuid.UUID) {
	if err := s.cache.DeleteJobStatus(ctx, jobID); err != nil {
		s.logger.Warn("invalidate job status cache", "job_id", jobID, "error", err)
	}
}

// send resolves recipients, composes, and delivers the transition email.
// All failures are logged and reduced to a user-facing warning; the already
// committed transition is never rolled back.
func (s *Service) send(ctx context.Context, job *models.Job, compose func(agent, contractor *models.User) notify.Email) string {
	agent, err := s.store.GetUser(ctx, job.AgentID)
	if err != nil {
		return s.notificationWarning(ctx, job, fmt.Errorf("resolve agent: %w", err))
	}
	if err := notify.CheckSendable(agent); err != nil {
		return s.notificationWarning(ctx, job, err)
	}
	contractor, err := s.resolver.Contractor(ctx)
	if err != nil {
		return s.notificationWarning(ctx, job, err)
	}

	email := compose(agent, contractor)
	if err := s.mailer.Send(ctx, email); err != nil {
		return s.notificationWarning(ctx, job, fmt.Errorf("deliver email: %w", err))
	}
	return ""
}

func (s *Service) notificationWarning(ctx context.Context, job *models.Job, cause error) string {
	s.logger.Error("unable to send notification email",
		"job_id", job.ID, "status", job.Status, "error", cause)

	reason := "Unable to send notification email."
	switch {
	case errors.Is(cause, store.ErrContractorNotFound):
		reason = "No contractor user found.\nUnable to send notification email."
	case errors.Is(cause, store.ErrMultipleContractors):
		reason = "Multiple contractor users found.\nUnable to send notification email."
	case errors.Is(cause, notify.ErrEmailMissing):
		reason = "An email address is missing.\nUnable to send notification email."
	case errors.Is(cause, notify.ErrEmailUnverified):
		reason = "An email address is not verified.\nUnable to send notification email."
	}

	sysadmin, err := s.resolver.SysadminEmail(ctx)
	if err != nil {
		s.logger.Error("unable to resolve system administrator email", "error", err)
		return reason + "\nPlease contact the system administrator."
	}
	return reason + "\nPlease contact the system administrator at " + sysadmin
}
