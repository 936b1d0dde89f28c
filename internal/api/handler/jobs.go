package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/marniemm/jobsvc/internal/api/middleware"
	"github.com/marniemm/jobsvc/internal/api/response"
	"github.com/marniemm/jobsvc/internal/files"
	"github.com/marniemm/jobsvc/internal/workflow"
	"github.com/marniemm/jobsvc/pkg/models"
)

// dateLayout is the wire format for date-only fields.
const dateLayout = "2006-01-02"

// JobService is the workflow surface the handlers depend on.
type JobService interface {
	CreateJob(ctx context.Context, actor *models.User, in workflow.CreateJobInput) (*workflow.Result, error)
	CompleteInspection(ctx context.Context, actor *models.User, jobID uuid.UUID, inspected time.Time) (*workflow.Result, error)
	UploadQuote(ctx context.Context, actor *models.User, jobID uuid.UUID, quote *files.DocumentContent) (*workflow.Result, error)
	AcceptQuote(ctx context.Context, actor *models.User, jobID uuid.UUID) (*workflow.Result, error)
	RejectQuote(ctx context.Context, actor *models.User, jobID uuid.UUID) (*workflow.Result, error)
	UploadDepositPOP(ctx context.Context, actor *models.User, jobID uuid.UUID, pop *files.DocumentContent) (*workflow.Result, error)
	CompleteOnsiteWork(ctx context.Context, actor *models.User, jobID uuid.UUID, workDate time.Time) (*workflow.Result, error)
	SubmitDocumentation(ctx context.Context, actor *models.User, jobID uuid.UUID, invoice *files.DocumentContent, comments string, photos []*files.DocumentContent) (*workflow.Result, error)
	UploadFinalPOP(ctx context.Context, actor *models.User, jobID uuid.UUID, pop *files.DocumentContent) (*workflow.Result, error)

	GetJob(ctx context.Context, viewer *models.User, jobID uuid.UUID) (*models.Job, error)
	JobStatus(ctx context.Context, viewer *models.User, jobID uuid.UUID) (models.JobStatus, error)
	ListJobs(ctx context.Context, viewer *models.User, agentUsername string) ([]*models.Job, error)
	ReadDocument(ctx context.Context, viewer *models.User, jobID uuid.UUID, kind string, photoID uuid.UUID) (*workflow.Document, error)
}

// jobDetail is the job representation on detail reads: the record plus the
// next-step actions visible to this caller.
type jobDetail struct {
	*models.Job
	VisibleActions []workflow.Action `json:"visible_actions"`
}

func detailView(job *models.Job, viewer *models.User) jobDetail {
	actions := workflow.VisibleActions(job, viewer)
	if actions == nil {
		actions = []workflow.Action{}
	}
	return jobDetail{Job: job, VisibleActions: actions}
}

// NewCreateJobHandler returns the handler for POST /api/v1/jobs.
func NewCreateJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user", nil)
			return
		}

		var req struct {
			Date                string `json:"date"`
			AddressDetails      string `json:"address_details"`
			GPSLink             string `json:"gps_link"`
			QuoteRequestDetails string `json:"quote_request_details"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			response.Error(w, http.StatusUnprocessableEntity,
				"VALIDATION_FAILED", "date must be a valid YYYY-MM-DD date", nil)
			return
		}

		res, err := svc.CreateJob(r.Context(), user, workflow.CreateJobInput{
			Date:                date,
			AddressDetails:      req.AddressDetails,
			GPSLink:             req.GPSLink,
			QuoteRequestDetails: req.QuoteRequestDetails,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		view := detailView(res.Job, user)
		if res.Warning != "" {
			response.CreatedWarning(w, view, res.Warning)
			return
		}
		response.Created(w, view)
	}
}

// NewListJobsHandler returns the handler for GET /api/v1/jobs. Agents get
// their own jobs; the contractor must pass ?agent=; admins may filter.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user", nil)
			return
		}

		jobs, err := svc.ListJobs(r.Context(), user, r.URL.Query().Get("agent"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}
		response.JSON(w, jobs)
	}
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user", nil)
			return
		}
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
			return
		}

		job, err := svc.GetJob(r.Context(), user, jobID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, detailView(job, user))
	}
}

// NewJobStatusHandler returns the handler for GET /api/v1/jobs/{jobID}/status,
// a lightweight poll backed by the cache.
func NewJobStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user", nil)
			return
		}
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
			return
		}

		status, err := svc.JobStatus(r.Context(), user, jobID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, map[string]any{"id": jobID, "status": status})
	}
}
