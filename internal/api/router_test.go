package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marniemm/jobsvc/internal/api"
	mw "github.com/marniemm/jobsvc/internal/api/middleware"
	"github.com/marniemm/jobsvc/internal/cache"
	"github.com/marniemm/jobsvc/internal/store"
	"github.com/marniemm/jobsvc/pkg/models"
)

// --- stub cache ---

type stubCache struct{}

var _ cache.Cache = (*stubCache)(nil)

func (c *stubCache) Ping(_ context.Context) error { return nil }
func (c *stubCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ models.JobStatus, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetJobStatus(_ context.Context, _ uuid.UUID) (models.JobStatus, bool, error) {
	return "", false, nil
}
func (c *stubCache) DeleteJobStatus(_ context.Context, _ uuid.UUID) error { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func newTestRouter(st store.Store) http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(st),
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter(store.NewMemStore())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter(store.NewMemStore())
	jobID := uuid.NewString()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/jobs"},
		{"GET", "/api/v1/jobs"},
		{"GET", "/api/v1/jobs/" + jobID},
		{"GET", "/api/v1/jobs/" + jobID + "/status"},
		{"POST", "/api/v1/jobs/" + jobID + "/inspection"},
		{"POST", "/api/v1/jobs/" + jobID + "/quote"},
		{"POST", "/api/v1/jobs/" + jobID + "/quote/accept"},
		{"POST", "/api/v1/jobs/" + jobID + "/quote/reject"},
		{"POST", "/api/v1/jobs/" + jobID + "/deposit-pop"},
		{"POST", "/api/v1/jobs/" + jobID + "/onsite-complete"},
		{"POST", "/api/v1/jobs/" + jobID + "/documentation"},
		{"POST", "/api/v1/jobs/" + jobID + "/final-pop"},
		{"GET", "/api/v1/jobs/" + jobID + "/documents/quote"},
		{"POST", "/api/v1/admin/users"},
		{"GET", "/api/v1/admin/users"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "UNAUTHORIZED", errObj["code"])
		})
	}
}

func TestRouter_AdminRoutes_RequireAdminRole(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	contractor := &models.User{Username: "marnie", Email: "marnie@example.com", IsContractor: true}
	require.NoError(t, st.CreateUser(ctx, contractor))

	rawKey := "mmm_0123456789abcdef0123456789abcdef"
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.CreateAPIKey(ctx, &models.APIKey{
		UserID:    contractor.ID,
		Name:      "test",
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:8],
	}))

	router := newTestRouter(st)

	req := httptest.NewRequest("GET", "/api/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(store.NewMemStore())

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
