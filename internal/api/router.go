package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/marniemm/jobsvc/internal/api/middleware"
	"github.com/marniemm/jobsvc/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateJobHandler http.HandlerFunc
	ListJobsHandler  http.HandlerFunc
	GetJobHandler    http.HandlerFunc
	JobStatusHandler http.HandlerFunc

	CompleteInspectionHandler  http.HandlerFunc
	UploadQuoteHandler         http.HandlerFunc
	AcceptQuoteHandler         http.HandlerFunc
	RejectQuoteHandler         http.HandlerFunc
	UploadDepositPOPHandler    http.HandlerFunc
	CompleteOnsiteWorkHandler  http.HandlerFunc
	SubmitDocumentationHandler http.HandlerFunc
	UploadFinalPOPHandler      http.HandlerFunc

	DownloadDocumentHandler http.HandlerFunc

	CreateUserHandler   http.HandlerFunc
	ListUsersHandler    http.HandlerFunc
	CreateAPIKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJobHandler))
		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Get("/api/v1/jobs/{jobID}/status", orNotImplemented(deps.JobStatusHandler))

		r.Post("/api/v1/jobs/{jobID}/inspection", orNotImplemented(deps.CompleteInspectionHandler))
		r.Post("/api/v1/jobs/{jobID}/quote", orNotImplemented(deps.UploadQuoteHandler))
		r.Post("/api/v1/jobs/{jobID}/quote/accept", orNotImplemented(deps.AcceptQuoteHandler))
		r.Post("/api/v1/jobs/{jobID}/quote/reject", orNotImplemented(deps.RejectQuoteHandler))
		r.Post("/api/v1/jobs/{jobID}/deposit-pop", orNotImplemented(deps.UploadDepositPOPHandler))
		r.Post("/api/v1/jobs/{jobID}/onsite-complete", orNotImplemented(deps.CompleteOnsiteWorkHandler))
		r.Post("/api/v1/jobs/{jobID}/documentation", orNotImplemented(deps.SubmitDocumentationHandler))
		r.Post("/api/v1/jobs/{jobID}/final-pop", orNotImplemented(deps.UploadFinalPOPHandler))

		r.Get("/api/v1/jobs/{jobID}/documents/photos/{photoID}", orNotImplemented(deps.DownloadDocumentHandler))
		r.Get("/api/v1/jobs/{jobID}/documents/{kind}", orNotImplemented(deps.DownloadDocumentHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireAdmin)

			r.Post("/api/v1/admin/users", orNotImplemented(deps.CreateUserHandler))
			r.Get("/api/v1/admin/users", orNotImplemented(deps.ListUsersHandler))
			r.Post("/api/v1/admin/users/{userID}/keys", orNotImplemented(deps.CreateAPIKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
