package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marniemm/jobsvc/pkg/models"
)

// MemStore is an in-memory Store used by tests and local experimentation.
// It mirrors the PostgresStore semantics: per-agent job numbering, the
// agent-requires-contractor invariant, and compare-and-swap transitions.
type MemStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	keys  map[uuid.UUID]*models.APIKey
	jobs  map[uuid.UUID]*models.Job
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		users: make(map[uuid.UUID]*models.User),
		keys:  make(map[uuid.UUID]*models.APIKey),
		jobs:  make(map[uuid.UUID]*models.Job),
	}
}

func (s *MemStore) Ping(_ context.Context) error { return nil }

func (s *MemStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return ErrDuplicateKey
		}
	}
	if user.IsAgent && !user.IsContractor {
		hasContractor := false
		for _, u := range s.users {
			if u.IsContractor {
				hasContractor = true
				break
			}
		}
		if !hasContractor {
			return ErrAgentRequiresContractor
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *MemStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (s *MemStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username && u.DeletedAt == nil {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListUsers(_ context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.User
	for _, u := range s.users {
		if u.DeletedAt == nil {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemStore) GetContractor(_ context.Context) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.User
	for _, u := range s.users {
		if u.IsContractor && u.DeletedAt == nil {
			if found != nil {
				return nil, ErrMultipleContractors
			}
			found = u
		}
	}
	if found == nil {
		return nil, ErrContractorNotFound
	}
	return copyUser(found), nil
}

func (s *MemStore) ListAdmins(_ context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.User
	for _, u := range s.users {
		if u.IsAdmin && u.DeletedAt == nil {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	now := time.Now().UTC()
	key.CreatedAt = now
	key.UpdatedAt = now
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *MemStore) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.APIKey
	for _, k := range s.keys {
		if strings.HasPrefix(k.KeyPrefix, prefix) && k.DeletedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	k.LastUsedAt = &now
	return nil
}

func (s *MemStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	max := 0
	for _, j := range s.jobs {
		if j.AgentID == job.AgentID && j.Number > max {
			max = j.Number
		}
	}
	job.Number = max + 1
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MemStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJob(j), nil
}

func (s *MemStore) ListJobs(_ context.Context, filter JobFilter) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Job
	for _, j := range s.jobs {
		if filter.AgentID != nil && j.AgentID != *filter.AgentID {
			continue
		}
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgentID != out[j].AgentID {
			return out[i].AgentID.String() < out[j].AgentID.String()
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (s *MemStore) ApplyTransition(_ context.Context, id uuid.UUID, from, to models.JobStatus, opts ...TransitionOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != from {
		return ErrWrongState
	}

	var p transitionParams
	for _, opt := range opts {
		opt(&p)
	}

	j.Status = to
	if p.InspectionDate != nil {
		j.DateOfInspection = p.InspectionDate
	}
	if p.QuoteRef != nil {
		j.Quote = *p.QuoteRef
	}
	if p.Decision != nil {
		j.QuoteDecision = *p.Decision
	}
	if p.DepositPOPRef != nil {
		j.DepositPOP = *p.DepositPOPRef
	}
	if p.OnsiteDate != nil {
		j.OnsiteWorkDate = p.OnsiteDate
	}
	if p.InvoiceRef != nil {
		j.Invoice = *p.InvoiceRef
	}
	if p.Comments != nil {
		j.Comments = *p.Comments
	}
	if p.Complete != nil {
		j.Complete = *p.Complete
	}
	if p.FinalPOPRef != nil {
		j.FinalPaymentPOP = *p.FinalPOPRef
	}
	now := time.Now().UTC()
	for i, ref := range p.PhotoRefs {
		j.Photos = append(j.Photos, &models.JobPhoto{
			ID:        uuid.New(),
			JobID:     j.ID,
			FileRef:   ref,
			Position:  i + 1,
			CreatedAt: now,
		})
	}
	j.UpdatedAt = now
	return nil
}

func copyUser(u *models.User) *models.User {
	cp := *u
	return &cp
}

func copyJob(j *models.Job) *models.Job {
	cp := *j
	if len(j.Photos) > 0 {
		cp.Photos = make([]*models.JobPhoto, len(j.Photos))
		for i, p := range j.Photos {
			pc := *p
			cp.Photos[i] = &pc
		}
	}
	return &cp
}
