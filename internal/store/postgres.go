package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marniemm/jobsvc/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

const userColumns = `id, username, email, email_verified, is_agent, is_contractor, is_admin, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.EmailVerified,
		&u.IsAgent, &u.IsContractor, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback(ctx)

	// An agent account may only exist if a contractor account exists.
	if user.IsAgent {
		var contractors int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM users WHERE is_contractor AND deleted_at IS NULL`,
		).Scan(&contractors)
		if err != nil {
			return fmt.Errorf("count contractors: %w", err)
		}
		if contractors == 0 {
			return ErrAgentRequiresContractor
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, username, email, email_verified, is_agent, is_contractor, is_admin, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Username, user.Email, user.EmailVerified,
		user.IsAgent, user.IsContractor, user.IsAdmin, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND deleted_at IS NULL`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (s *PostgresStore) GetContractor(ctx context.Context) (*models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_contractor AND deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("get contractor: %w", err)
	}
	defer rows.Close()

	contractors, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}
	switch len(contractors) {
	case 0:
		return nil, ErrContractorNotFound
	case 1:
		return contractors[0], nil
	default:
		return nil, ErrMultipleContractors
	}
}

func (s *PostgresStore) ListAdmins(ctx context.Context) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_admin AND deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]*models.User, error) {
	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	key.UpdatedAt = key.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api keys by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, agent_id, number, status, date, address_details, gps_link, quote_request_details,
	date_of_inspection, quote, quote_decision, deposit_pop, onsite_work_date, invoice, comments,
	complete, final_payment_pop, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.AgentID, &j.Number, &j.Status, &j.Date,
		&j.AddressDetails, &j.GPSLink, &j.QuoteRequestDetails,
		&j.DateOfInspection, &j.Quote, &j.QuoteDecision, &j.DepositPOP,
		&j.OnsiteWorkDate, &j.Invoice, &j.Comments, &j.Complete,
		&j.FinalPaymentPOP, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize numbering per agent. The advisory lock is released at commit,
	// so two concurrent creations for the same agent cannot read the same max.
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, job.AgentID); err != nil {
		return fmt.Errorf("lock agent job numbering: %w", err)
	}

	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM jobs WHERE agent_id = $1`, job.AgentID,
	).Scan(&job.Number); err != nil {
		return fmt.Errorf("next job number: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO jobs (id, agent_id, number, status, date, address_details, gps_link, quote_request_details, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.AgentID, job.Number, job.Status, job.Date,
		job.AddressDetails, job.GPSLink, job.QuoteRequestDetails,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, file_ref, position, created_at
		 FROM job_photos WHERE job_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get job photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.JobPhoto
		if err := rows.Scan(&p.ID, &p.JobID, &p.FileRef, &p.Position, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job photo: %w", err)
		}
		j.Photos = append(j.Photos, &p)
	}
	return j, rows.Err()
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if filter.AgentID != nil {
		query += ` WHERE agent_id = $1`
		args = append(args, *filter.AgentID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) ApplyTransition(ctx context.Context, id uuid.UUID, from, to models.JobStatus, opts ...TransitionOption) error {
	params := &transitionParams{}
	for _, opt := range opts {
		opt(params)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $3, updated_at = $4`
	args := []any{id, from, to, now}
	argIdx := 5

	setField := func(column string, value any) {
		query += fmt.Sprintf(", %s = $%d", column, argIdx)
		args = append(args, value)
		argIdx++
	}

	if params.InspectionDate != nil {
		setField("date_of_inspection", *params.InspectionDate)
	}
	if params.QuoteRef != nil {
		setField("quote", *params.QuoteRef)
	}
	if params.Decision != nil {
		setField("quote_decision", *params.Decision)
	}
	if params.DepositPOPRef != nil {
		setField("deposit_pop", *params.DepositPOPRef)
	}
	if params.OnsiteDate != nil {
		setField("onsite_work_date", *params.OnsiteDate)
	}
	if params.InvoiceRef != nil {
		setField("invoice", *params.InvoiceRef)
	}
	if params.Comments != nil {
		setField("comments", *params.Comments)
	}
	if params.Complete != nil {
		setField("complete", *params.Complete)
	}
	if params.FinalPOPRef != nil {
		setField("final_payment_pop", *params.FinalPOPRef)
	}

	query += ` WHERE id = $1 AND status = $2`

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing job from a lost status race.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check job exists: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrWrongState
	}

	for i, ref := range params.PhotoRefs {
		_, err := tx.Exec(ctx,
			`INSERT INTO job_photos (id, job_id, file_ref, position, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), id, ref, i+1, now)
		if err != nil {
			return fmt.Errorf("insert job photo: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
