package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/marniemm/jobsvc/internal/api/response"
	"github.com/marniemm/jobsvc/internal/store"
	"github.com/marniemm/jobsvc/pkg/models"
)

// API keys look like "mmm_<48 hex chars>"; the stored prefix is the first 8
// characters of the raw key, used for lookup before the bcrypt comparison.
const (
	keyByteLen   = 24
	rawKeyPrefix = "mmm_"
	keyPrefixLen = 8
)

// NewCreateUserHandler returns the handler for POST /api/v1/admin/users.
// Creating an agent requires a contractor user to exist already.
func NewCreateUserHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username      string `json:"username"`
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			IsAgent       bool   `json:"is_agent"`
			IsContractor  bool   `json:"is_contractor"`
			IsAdmin       bool   `json:"is_admin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Username == "" {
			response.Error(w, http.StatusUnprocessableEntity,
				"VALIDATION_FAILED", "username is required", nil)
			return
		}
		if req.Email == "" {
			response.Error(w, http.StatusUnprocessableEntity,
				"VALIDATION_FAILED", "email is required", nil)
			return
		}
		if !req.IsAgent && !req.IsContractor && !req.IsAdmin {
			response.Error(w, http.StatusUnprocessableEntity,
				"VALIDATION_FAILED", "at least one role flag is required", nil)
			return
		}

		user := &models.User{
			ID:            uuid.New(),
			Username:      req.Username,
			Email:         req.Email,
			EmailVerified: req.EmailVerified,
			IsAgent:       req.IsAgent,
			IsContractor:  req.IsContractor,
			IsAdmin:       req.IsAdmin,
		}
		err := st.CreateUser(r.Context(), user)
		switch {
		case errors.Is(err, store.ErrAgentRequiresContractor):
			response.Error(w, http.StatusUnprocessableEntity,
				"VALIDATION_FAILED", "An agent user may only be created once a contractor user exists", nil)
			return
		case errors.Is(err, store.ErrDuplicateKey):
			response.Error(w, http.StatusConflict,
				"CONFLICT", "A user with this username already exists", nil)
			return
		case err != nil:
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to create user", nil)
			return
		}
		response.Created(w, user)
	}
}

// NewListUsersHandler returns the handler for GET /api/v1/admin/users.
func NewListUsersHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := st.ListUsers(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to list users", nil)
			return
		}
		if users == nil {
			users = []*models.User{}
		}
		response.JSON(w, users)
	}
}

// NewCreateAPIKeyHandler returns the handler for
// POST /api/v1/admin/users/{userID}/keys. The raw key appears in this
// response only; the store keeps just a bcrypt hash and the lookup prefix.
func NewCreateAPIKeyHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
			return
		}
		if _, err := st.GetUser(r.Context(), userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to look up user", nil)
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" {
			req.Name = "default"
		}

		rawKey, err := generateRawKey()
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to generate API key", nil)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to generate API key", nil)
			return
		}

		key := &models.APIKey{
			ID:        uuid.New(),
			UserID:    userID,
			Name:      req.Name,
			KeyHash:   string(hash),
			KeyPrefix: rawKey[:keyPrefixLen],
		}
		if err := st.CreateAPIKey(r.Context(), key); err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to store API key", nil)
			return
		}

		response.Created(w, map[string]any{
			"id":         key.ID,
			"user_id":    key.UserID,
			"name":       key.Name,
			"key_prefix": key.KeyPrefix,
			"key":        rawKey,
		})
	}
}

func generateRawKey() (string, error) {
	buf := make([]byte, keyByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return rawKeyPrefix + hex.EncodeToString(buf), nil
}
