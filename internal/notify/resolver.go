package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marniemm/jobsvc/pkg/models"
)

var (
	ErrEmailMissing    = errors.New("email address is missing")
	ErrEmailUnverified = errors.New("email address is not verified")
	ErrNoSysadmin      = errors.New("no system administrator user found")
)

// UserDirectory is the cross-cutting user lookup the notifier depends on.
// store.Store satisfies it; tests substitute fakes.
type UserDirectory interface {
	GetContractor(ctx context.Context) (*models.User, error)
	ListAdmins(ctx context.Context) ([]*models.User, error)
}

// Resolver turns role lookups into deliverable recipients, with the explicit
// error taxonomy the degraded-mode handling depends on.
type Resolver struct {
	dir    UserDirectory
	logger *slog.Logger
}

func NewResolver(dir UserDirectory, logger *slog.Logger) *Resolver {
	return &Resolver{dir: dir, logger: logger}
}

// Contractor returns the single contractor user, verifying that a usable
// email address is on file.
func (r *Resolver) Contractor(ctx context.Context) (*models.User, error) {
	contractor, err := r.dir.GetContractor(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve contractor: %w", err)
	}
	if contractor.Email == "" {
		return nil, fmt.Errorf("contractor %s: %w", contractor.Username, ErrEmailMissing)
	}
	if !contractor.EmailVerified {
		return nil, fmt.Errorf("contractor %s: %w", contractor.Username, ErrEmailUnverified)
	}
	return contractor, nil
}

// CheckSendable verifies that a counterpart user can receive mail.
func CheckSendable(user *models.User) error {
	if user.Email == "" {
		return fmt.Errorf("user %s: %w", user.Username, ErrEmailMissing)
	}
	if !user.EmailVerified {
		return fmt.Errorf("user %s: %w", user.Username, ErrEmailUnverified)
	}
	return nil
}

// SysadminEmail returns the address users are told to contact when a
// notification cannot be delivered. With several admins the first by creation
// wins and a warning is logged; with none the error surfaces to the caller.
func (r *Resolver) SysadminEmail(ctx context.Context) (string, error) {
	admins, err := r.dir.ListAdmins(ctx)
	if err != nil {
		return "", fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		return "", ErrNoSysadmin
	}
	if len(admins) > 1 {
		r.logger.Warn("multiple system administrator users found, defaulting to the first",
			"user_id", admins[0].ID)
	}
	return admins[0].Email, nil
}
