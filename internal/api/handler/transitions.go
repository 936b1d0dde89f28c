package handler

import (
	"errors"
	"mime/multipart"
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

// transitionFunc adapts one service transition method so the shared
// request plumbing below can serve all of them.
type transitionFunc func(r *http.Request, user *models.User, jobID uuid.UUID) (*workflow.Result, error)

func serveTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
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

	res, err := fn(r, user, jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	view := detailView(res.Job, user)
	if res.Warning != "" {
		response.JSONWarning(w, view, res.Warning)
		return
	}
	response.JSON(w, view)
}

// formDate reads a YYYY-MM-DD form field.
func formDate(r *http.Request, field string) (time.Time, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return time.Time{}, errors.New(field + " is required")
	}
	return time.Parse(dateLayout, raw)
}

// formDocument reads one uploaded file fully into memory, enforcing the
// upload size limit.
func formDocument(r *http.Request, field string, maxBytes int64) (*files.DocumentContent, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, errors.New(field + " file is required")
	}
	defer file.Close()
	return files.ReadDocument(header.Filename, file, maxBytes)
}

func openDocument(header *multipart.FileHeader, maxBytes int64) (*files.DocumentContent, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return files.ReadDocument(header.Filename, file, maxBytes)
}

// NewCompleteInspectionHandler returns the handler for
// POST /api/v1/jobs/{jobID}/inspection.
func NewCompleteInspectionHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTransition(w, r, func(r *http.Request, user *models.User, jobID uuid.UUID) (*workflow.Result, error) {
			inspected, err := formDate(r, "date_of_inspection")
			if err != nil {
				return nil, workflow.Validationf("%s", err)
			}
			return svc.CompleteInspection(r.Context(), user, jobID, inspected)
		})
	}
}

// NewUploadQuoteHandler returns the handler for
// POST /api/v1/jobs/{jobID}/quote. The same route serves the first upload
// and the resubmission after a rejection.
func NewUploadQuoteHandler(svc JobService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTransition(w, r, func(r *http.Request, user *models.User, jobID uuid.UUID) (*workflow.Result, error) {
			quote, err := formDocument(r, "quote", maxBytes)
			if err != nil {
				return nil, workflow.Validationf("%s", err)
			}
			return svc.UploadQuote(r.Context(), user, jobID, quote)
		})
	}
}

// NewAcceptQuoteHandler returns the handler for
// POST /api/v1/jobs/{jobID}/quote/accept.
func NewAcceptQuoteHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTransition(w, r, func(r *http.Request, user *models.User, jobID uuid.UUID) (*workflow.Result, error) {
			return svc.AcceptQuote(r.Context(), user, jobID)
		})
	}
}

// NewRejectQuoteHandler returns the handler for
// POST /api/v1/jobs/{jobID}/quote/reject.
func NewRejectQuoteHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTransition(w, r, func(r *http.Request, user *models.User, jobID uuid.UUID) (*workflow.Result, error) {
			return svc.RejectQuote(r.Context(), user, jobID)
		})
	}
}

// NewUploadDepositPOPHandler returns the handler for
// POST /api/v1/jobs/{jobID}/deposit-pop.
func NewUploadDepositPOPHandler(svc JobService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTransition(w, r, func(r *http.Request, user *models.User, jobID uuid.UUID) (*workflow.Result, error) {
			pop, err := formDocument(r, "proof_of_payment", maxBytes)
			if err != nil {
				return nil, workflow.Validationf("%s", err)
			}
			return svc.UploadDepositPOP(r.Context(), user, jobID, pop)
		})
	}
}

// NewCompleteOnsiteWorkHandler returns the handler for
// POST /api/v1/jobs/{jobID}/onsite-complete.
func NewCompleteOnsiteWorkHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTransition(w, r, func(r *http.Request, user *models.User, jobID uuid.UUID) (*workflow.Result, error) {
			workDate, err := formDate(r, "job_onsite_work_completion_date")
			if err != nil {
				return nil, workflow.Validationf("%s", err)
			}
			return svc.CompleteOnsiteWork(r.Context(), user, jobID, workDate)
		})
	}
}

// NewSubmitDocumentationHandler returns the handler for
// POST /api/v1/jobs/{jobID}/documentation: invoice PDF, comments, and any
// number of JPEG completion photos in one multipart request.
func NewSubmitDocumentationHandler(svc JobService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTransition(w, r, func(r *http.Request, user *models.User, jobID uuid.UUID) (*workflow.Result, error) {
			invoice, err := formDocument(r, "invoice", maxBytes)
			if err != nil {
				return nil, workflow.Validationf("%s", err)
			}
			comments := r.FormValue("comments")

			var photos []*files.DocumentContent
			if r.MultipartForm != nil {
				for _, header := range r.MultipartForm.File["photos"] {
					photo, err := openDocument(header, maxBytes)
					if err != nil {
						return nil, workflow.Validationf("photo %s: %s", header.Filename, err)
					}
					photos = append(photos, photo)
				}
			}
			return svc.SubmitDocumentation(r.Context(), user, jobID, invoice, comments, photos)
		})
	}
}

// NewUploadFinalPOPHandler returns the handler for
// POST /api/v1/jobs/{jobID}/final-pop.
func NewUploadFinalPOPHandler(svc JobService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTransition(w, r, func(r *http.Request, user *models.User, jobID uuid.UUID) (*workflow.Result, error) {
			pop, err := formDocument(r, "proof_of_payment", maxBytes)
			if err != nil {
				return nil, workflow.Validationf("%s", err)
			}
			return svc.UploadFinalPOP(r.Context(), user, jobID, pop)
		})
	}
}
