package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marniemm/jobsvc/internal/store"
	"github.com/marniemm/jobsvc/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("jobsvc_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newUser(username string, mutate func(*models.User)) *models.User {
	u := &models.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         username + "@example.com",
		EmailVerified: true,
	}
	if mutate != nil {
		mutate(u)
	}
	return u
}

// seedUsers creates the standard contractor + agent pair.
func seedUsers(t *testing.T, s store.Store) (contractor, agent *models.User) {
	t.Helper()
	ctx := context.Background()

	contractor = newUser("marnie", func(u *models.User) { u.IsContractor = true })
	require.NoError(t, s.CreateUser(ctx, contractor))
	agent = newUser("bob", func(u *models.User) { u.IsAgent = true })
	require.NoError(t, s.CreateUser(ctx, agent))
	return contractor, agent
}

func seedJob(t *testing.T, s store.Store, agentID uuid.UUID) *models.Job {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &models.Job{
		ID:                  uuid.New(),
		AgentID:             agentID,
		Status:              models.StatusPendingInspection,
		Date:                now,
		AddressDetails:      "1 Main St",
		GPSLink:             "https://maps.app.goo.gl/abc",
		QuoteRequestDetails: "Geyser is leaking",
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

// --- User Tests ---

func TestCreateUser_AgentRequiresContractor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	agent := newUser("bob", func(u *models.User) { u.IsAgent = true })
	err := s.CreateUser(ctx, agent)
	assert.ErrorIs(t, err, store.ErrAgentRequiresContractor)

	contractor := newUser("marnie", func(u *models.User) { u.IsContractor = true })
	require.NoError(t, s.CreateUser(ctx, contractor))
	require.NoError(t, s.CreateUser(ctx, agent))

	dup := newUser("bob", func(u *models.User) { u.IsAgent = true })
	assert.ErrorIs(t, s.CreateUser(ctx, dup), store.ErrDuplicateKey)
}

func TestGetUserByUsername(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	_, agent := seedUsers(t, s)

	got, err := s.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.ID)
	assert.True(t, got.IsAgent)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetContractor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := s.GetContractor(ctx)
	assert.ErrorIs(t, err, store.ErrContractorNotFound)

	first := newUser("marnie", func(u *models.User) { u.IsContractor = true })
	require.NoError(t, s.CreateUser(ctx, first))

	got, err := s.GetContractor(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	second := newUser("marnie2", func(u *models.User) { u.IsContractor = true })
	require.NoError(t, s.CreateUser(ctx, second))

	_, err = s.GetContractor(ctx)
	assert.ErrorIs(t, err, store.ErrMultipleContractors)
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGetByPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	contractor, _ := seedUsers(t, s)

	key := &models.APIKey{
		ID:        uuid.New(),
		UserID:    contractor.ID,
		Name:      "test-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "mmm_abcd",
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeysByPrefix(ctx, "mmm_abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Nil(t, keys[0].LastUsedAt)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))
	keys, err = s.GetAPIKeysByPrefix(ctx, "mmm_abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)

	keys, err = s.GetAPIKeysByPrefix(ctx, "mmm_zzzz")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// --- Job Tests ---

func TestCreateJob_SequentialNumbering(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	_, bob := seedUsers(t, s)

	peter := newUser("peter", func(u *models.User) { u.IsAgent = true })
	require.NoError(t, s.CreateUser(ctx, peter))

	j1 := seedJob(t, s, bob.ID)
	j2 := seedJob(t, s, bob.ID)
	j3 := seedJob(t, s, peter.ID)

	assert.Equal(t, 1, j1.Number)
	assert.Equal(t, 2, j2.Number)
	// Numbering is independent per agent.
	assert.Equal(t, 1, j3.Number)
}

func TestCreateJob_ConcurrentNumbering(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	_, bob := seedUsers(t, s)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := time.Now().UTC()
			errs[i] = s.CreateJob(context.Background(), &models.Job{
				ID:                  uuid.New(),
				AgentID:             bob.ID,
				Status:              models.StatusPendingInspection,
				Date:                now,
				AddressDetails:      "1 Main St",
				GPSLink:             "https://maps.app.goo.gl/abc",
				QuoteRequestDetails: "Leak",
				CreatedAt:           now,
				UpdatedAt:           now,
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "job %d", i)
	}

	// The advisory lock serializes numbering: 1..n with no gaps or repeats.
	jobs, err := s.ListJobs(context.Background(), store.JobFilter{AgentID: &bob.ID})
	require.NoError(t, err)
	require.Len(t, jobs, n)

	seen := make(map[int]bool, n)
	for _, j := range jobs {
		seen[j.Number] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, seen[i], "missing number %d", i)
	}
}

func TestApplyTransition_CAS(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	_, bob := seedUsers(t, s)
	job := seedJob(t, s, bob.ID)

	inspected := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApplyTransition(ctx, job.ID,
		models.StatusPendingInspection, models.StatusInspectionCompleted,
		store.WithInspectionDate(inspected)))

	// Replaying the same expected-status transition loses the race.
	err := s.ApplyTransition(ctx, job.ID,
		models.StatusPendingInspection, models.StatusInspectionCompleted,
		store.WithInspectionDate(inspected))
	assert.ErrorIs(t, err, store.ErrWrongState)

	err = s.ApplyTransition(ctx, uuid.New(),
		models.StatusPendingInspection, models.StatusInspectionCompleted)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInspectionCompleted, got.Status)
	require.NotNil(t, got.DateOfInspection)
	assert.Equal(t, inspected, got.DateOfInspection.UTC())
}

func TestApplyTransition_DocumentationPersistsPhotos(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	_, bob := seedUsers(t, s)
	job := seedJob(t, s, bob.ID)

	// Walk the row to the state documentation expects.
	steps := []struct {
		from, to models.JobStatus
		opts     []store.TransitionOption
	}{
		{models.StatusPendingInspection, models.StatusInspectionCompleted,
			[]store.TransitionOption{store.WithInspectionDate(time.Now().UTC())}},
		{models.StatusInspectionCompleted, models.StatusQuoteUploaded,
			[]store.TransitionOption{store.WithQuoteRef("q/quote.pdf")}},
		{models.StatusQuoteUploaded, models.StatusQuoteAcceptedByAgent,
			[]store.TransitionOption{store.WithDecision(models.DecisionAccepted)}},
		{models.StatusQuoteAcceptedByAgent, models.StatusDepositPOPUploaded,
			[]store.TransitionOption{store.WithDepositPOPRef("d/deposit.pdf")}},
		{models.StatusDepositPOPUploaded, models.StatusContractorCompletedOnsite,
			[]store.TransitionOption{store.WithOnsiteDate(time.Now().UTC())}},
	}
	for _, step := range steps {
		require.NoError(t, s.ApplyTransition(ctx, job.ID, step.from, step.to, step.opts...))
	}

	require.NoError(t, s.ApplyTransition(ctx, job.ID,
		models.StatusContractorCompletedOnsite, models.StatusContractorCompleted,
		store.WithDocumentation("i/invoice.pdf", "Replaced the valve",
			[]string{"p/before.jpg", "p/after.jpg"})))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusContractorCompleted, got.Status)
	assert.True(t, got.Complete)
	assert.Equal(t, "i/invoice.pdf", got.Invoice)
	assert.Equal(t, "Replaced the valve", got.Comments)
	require.Len(t, got.Photos, 2)
	assert.Equal(t, "p/before.jpg", got.Photos[0].FileRef)
	assert.Equal(t, 1, got.Photos[0].Position)
	assert.Equal(t, "p/after.jpg", got.Photos[1].FileRef)
	assert.Equal(t, 2, got.Photos[1].Position)
}

func TestListJobs_Filter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	_, bob := seedUsers(t, s)

	peter := newUser("peter", func(u *models.User) { u.IsAgent = true })
	require.NoError(t, s.CreateUser(ctx, peter))

	seedJob(t, s, bob.ID)
	seedJob(t, s, bob.ID)
	seedJob(t, s, peter.ID)

	all, err := s.ListJobs(ctx, store.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bobs, err := s.ListJobs(ctx, store.JobFilter{AgentID: &bob.ID})
	require.NoError(t, err)
	require.Len(t, bobs, 2)
	for _, j := range bobs {
		assert.Equal(t, bob.ID, j.AgentID)
	}
}
