package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/target/sitegate/internal/data/pgxutil"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	apperrors "github.com/target/sitegate/internal/errors"
	"github.com/target/sitegate/internal/ports"
)

var _ ports.AdminDirectory = (*AdminPrincipalRepo)(nil)

// ErrAdminEmailRequired is returned when an operation is given a blank email.
var ErrAdminEmailRequired = errors.New("admin email is required")

const adminColumns = `email, role, is_active, last_login_at, created_at`

type adminRow struct {
	Email       string     `db:"email"`
	Role        string     `db:"role"`
	IsActive    bool       `db:"is_active"`
	LastLoginAt *time.Time `db:"last_login_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (r adminRow) principal() domainauth.AdminPrincipal {
	return domainauth.AdminPrincipal{
		Email:       r.Email,
		Role:        domainauth.Role(r.Role),
		IsActive:    r.IsActive,
		LastLoginAt: r.LastLoginAt,
		CreatedAt:   r.CreatedAt,
	}
}

// AdminPrincipalRepo is the PostgreSQL-backed admin directory.
type AdminPrincipalRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAdminPrincipalRepo creates a new AdminPrincipalRepo with real time provider.
func NewAdminPrincipalRepo(db *sql.DB) *AdminPrincipalRepo {
	return &AdminPrincipalRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewAdminPrincipalRepoWithTimeProvider creates a repo with a custom time provider (useful for tests).
func NewAdminPrincipalRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AdminPrincipalRepo {
	return &AdminPrincipalRepo{DB: db, timeProvider: tp}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindActiveByEmail looks up an active principal. A missing or inactive row is
// LookupNotFound; any other failure is LookupError.
func (r *AdminPrincipalRepo) FindActiveByEmail(ctx context.Context, email string) domainauth.AdminLookup {
	email = normalizeEmail(email)
	if email == "" {
		return domainauth.NotFound()
	}
	row, err := pgxutil.CollectOne[adminRow](ctx, r.DB,
		`SELECT `+adminColumns+` FROM admin_users WHERE email = $1 AND is_active`, email)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			return domainauth.NotFound()
		}
		return domainauth.LookupFailed(fmt.Errorf("find admin principal: %w", mapped))
	}
	return domainauth.Found(row.principal())
}

// TouchLastLogin records a successful elevation.
func (r *AdminPrincipalRepo) TouchLastLogin(ctx context.Context, email string, at time.Time) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrAdminEmailRequired
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE admin_users SET last_login_at = $2, updated_at = $3 WHERE email = $1`,
		email, at.UTC(), r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("touch last login: %w", apperrors.MapDBError(err))
	}
	return requireAffected(res, email)
}

// CreateAdminRequest describes a new administrative principal.
type CreateAdminRequest struct {
	Email string
	Role  domainauth.Role
}

// Create inserts an active principal. A duplicate email is a Conflict error.
func (r *AdminPrincipalRepo) Create(ctx context.Context, req CreateAdminRequest) (domainauth.AdminPrincipal, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return domainauth.AdminPrincipal{}, apperrors.ValidationField("email", ErrAdminEmailRequired.Error())
	}
	role := req.Role
	if role == "" {
		role = domainauth.RoleAdmin
	}
	now := r.timeProvider.Now().UTC()
	row, err := pgxutil.CollectOne[adminRow](ctx, r.DB, `
		INSERT INTO admin_users (email, role, is_active, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $3)
		RETURNING `+adminColumns, email, string(role), now)
	if err != nil {
		return domainauth.AdminPrincipal{}, apperrors.MapDBError(err)
	}
	return row.principal(), nil
}

// SetActive enables or disables a principal.
func (r *AdminPrincipalRepo) SetActive(ctx context.Context, email string, active bool) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrAdminEmailRequired
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE admin_users SET is_active = $2, updated_at = $3 WHERE email = $1`,
		email, active, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("set admin active: %w", apperrors.MapDBError(err))
	}
	return requireAffected(res, email)
}

// List returns principals ordered by email, including inactive ones.
func (r *AdminPrincipalRepo) List(ctx context.Context, limit, offset int) ([]domainauth.AdminPrincipal, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := pgxutil.CollectAll[adminRow](ctx, r.DB,
		`SELECT `+adminColumns+` FROM admin_users ORDER BY email LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list admin principals: %w", apperrors.MapDBError(err))
	}
	out := make([]domainauth.AdminPrincipal, len(rows))
	for i := range rows {
		out[i] = rows[i].principal()
	}
	return out, nil
}

func requireAffected(res sql.Result, email string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFoundf("admin principal %s not found", email)
	}
	return nil
}
