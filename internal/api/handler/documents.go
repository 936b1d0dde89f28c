package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/marniemm/jobsvc/internal/api/middleware"
	"github.com/marniemm/jobsvc/internal/api/response"
)

// NewDownloadDocumentHandler returns the handler for
// GET /api/v1/jobs/{jobID}/documents/{kind} and
// GET /api/v1/jobs/{jobID}/documents/photos/{photoID}. Access follows the
// job-detail rule: documents are never served to users who cannot see the
// job itself.
func NewDownloadDocumentHandler(svc JobService) http.HandlerFunc {
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

		kind := chi.URLParam(r, "kind")
		photoID := uuid.Nil
		if rawPhotoID := chi.URLParam(r, "photoID"); rawPhotoID != "" {
			kind = "photo"
			photoID, err = uuid.Parse(rawPhotoID)
			if err != nil {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
				return
			}
		}

		doc, err := svc.ReadDocument(r.Context(), user, jobID, kind, photoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", doc.MIMEType)
		w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", doc.Filename))
		w.Write(doc.Data)
	}
}
