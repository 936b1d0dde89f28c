package middleware_test

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

	mw "github.com/marniemm/jobsvc/internal/api/middleware"
	"github.com/marniemm/jobsvc/internal/store"
	"github.com/marniemm/jobsvc/pkg/models"
)

func seedKey(t *testing.T, st *store.MemStore, user *models.User, rawKey string) {
	t.Helper()
	require.NoError(t, st.CreateUser(context.Background(), user))
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.CreateAPIKey(context.Background(), &models.APIKey{
		UserID:    user.ID,
		Name:      "test",
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:8],
	}))
}

func authedNext(t *testing.T, wantUsername string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		require.True(t, ok)
		assert.Equal(t, wantUsername, user.Username)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	st := store.NewMemStore()
	contractor := &models.User{Username: "marnie", Email: "marnie@example.com", IsContractor: true}
	rawKey := "mmm_0123456789abcdef0123456789abcdef"
	seedKey(t, st, contractor, rawKey)

	auth := mw.NewAuth(st)
	h := auth.Authenticate(authedNext(t, "marnie"))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	r.Header.Set("Authorization", "Bearer "+rawKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateRejects(t *testing.T) {
	st := store.NewMemStore()
	contractor := &models.User{Username: "marnie", Email: "marnie@example.com", IsContractor: true}
	rawKey := "mmm_0123456789abcdef0123456789abcdef"
	seedKey(t, st, contractor, rawKey)

	auth := mw.NewAuth(st)
	h := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"too short", "Bearer mmm"},
		{"unknown prefix", "Bearer zzz_0123456789abcdef0123456789abcdef"},
		{"wrong key same prefix", "Bearer mmm_0123ffffffffffffffffffffffffffff"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "UNAUTHORIZED", errObj["code"])
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	st := store.NewMemStore()
	auth := mw.NewAuth(st)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := auth.RequireAdmin(next)

	admin := &models.User{ID: uuid.New(), Username: "admin", IsAdmin: true}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r.WithContext(mw.SetUser(r.Context(), admin)))
	assert.Equal(t, http.StatusOK, rec.Code)

	agent := &models.User{ID: uuid.New(), Username: "bob", IsAgent: true}
	r = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r.WithContext(mw.SetUser(r.Context(), agent)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// No user in context at all.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type countingCache struct {
	counts map[string]int64
	err    error
}

func (c *countingCache) Ping(context.Context) error { return nil }
func (c *countingCache) SetJobStatus(context.Context, uuid.UUID, models.JobStatus, time.Duration) error {
	return nil
}
func (c *countingCache) GetJobStatus(context.Context, uuid.UUID) (models.JobStatus, bool, error) {
	return "", false, nil
}
func (c *countingCache) DeleteJobStatus(context.Context, uuid.UUID) error { return nil }
func (c *countingCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.counts[key]++
	return c.counts[key], nil
}

func TestRateLimitWithoutAuthPassesThrough(t *testing.T) {
	rl := mw.NewRateLimit(&countingCache{counts: map[string]int64{}}, 2)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No auth middleware ran, so there is no key prefix and no limiting.
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitEnforced(t *testing.T) {
	st := store.NewMemStore()
	contractor := &models.User{Username: "marnie", Email: "marnie@example.com", IsContractor: true}
	rawKey := "mmm_0123456789abcdef0123456789abcdef"
	seedKey(t, st, contractor, rawKey)

	auth := mw.NewAuth(st)
	rl := mw.NewRateLimit(&countingCache{counts: map[string]int64{}}, 2)
	h := auth.Authenticate(rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		r.Header.Set("Authorization", "Bearer "+rawKey)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	rec := do()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
