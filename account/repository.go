package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"colabatr/db"
)

var (
	// ErrNotFound signals that the account does not exist.
	ErrNotFound = errors.New("account: not found")
	// ErrRoleInvalid signals a role outside influencer and brand.
	ErrRoleInvalid = errors.New("account: invalid role")
	// ErrContactInUse signals that an email or phone belongs to another account.
	ErrContactInUse = errors.New("account: contact already in use")
)

// Repository handles data access for accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByPhone(ctx context.Context, phone string) (Account, error)
	Create(ctx context.Context, attrs Attrs) (Account, error)
	FillMissing(ctx context.Context, id string, attrs Attrs) (Account, error)
	SetRole(ctx context.Context, id string, role Role) error
	MarkOnboarded(ctx context.Context, id string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed account repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, full_name, email, phone, country_code, password_hash, role, is_onboarded, created_at, updated_at`

// GetByID reads the account from the primary, so writes made by the caller are visible.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Account, error) {
	const selectSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if isNoAccount(err) {
			return Account{}, ErrNotFound
		}
		return Account{}, db.Classify(fmt.Errorf("account: get by id: %w", err))
	}
	return acc, nil
}

// GetByEmail matches case-insensitively.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Account{}, ErrNotFound
	}
	const selectSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = $1`

	acc, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, db.Classify(fmt.Errorf("account: get by email: %w", err))
	}
	return acc, nil
}

func (r *PGRepository) GetByPhone(ctx context.Context, phone string) (Account, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return Account{}, ErrNotFound
	}
	const selectSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE phone = $1`

	acc, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, db.Classify(fmt.Errorf("account: get by phone: %w", err))
	}
	return acc, nil
}

// Create inserts a new account. Empty attributes are stored as NULL. A
// collision on email or phone is reported as db.ErrUniqueViolation.
func (r *PGRepository) Create(ctx context.Context, attrs Attrs) (Account, error) {
	const insertSQL = `
		INSERT INTO accounts (full_name, email, phone, country_code, password_hash)
		VALUES (NULLIF($1::text, ''), NULLIF(lower($2::text), ''), NULLIF($3::text, ''), NULLIF($4::text, ''), NULLIF($5::text, ''))
		RETURNING ` + accountColumns

	attrs = attrs.Normalize()
	acc, err := scanAccount(r.pool.QueryRow(ctx, insertSQL,
		attrs.FullName, attrs.Email, attrs.Phone, attrs.CountryCode, attrs.PasswordHash))
	if err != nil {
		return Account{}, db.Classify(fmt.Errorf("account: create: %w", err))
	}
	return acc, nil
}

// FillMissing sets each attribute only where the stored value is NULL or
// empty. Email and phone are skipped when a different account already holds
// them. The merge is one statement, so concurrent fills never lose a value.
func (r *PGRepository) FillMissing(ctx context.Context, id string, attrs Attrs) (Account, error) {
	const updateSQL = `
		UPDATE accounts a SET
			full_name = COALESCE(NULLIF(a.full_name, ''), NULLIF($2::text, '')),
			email = COALESCE(NULLIF(a.email, ''), CASE
				WHEN NULLIF($3::text, '') IS NOT NULL
				 AND NOT EXISTS (SELECT 1 FROM accounts o WHERE lower(o.email) = $3::text AND o.id <> a.id)
				THEN $3::text END),
			phone = COALESCE(NULLIF(a.phone, ''), CASE
				WHEN NULLIF($4::text, '') IS NOT NULL
				 AND NOT EXISTS (SELECT 1 FROM accounts o WHERE o.phone = $4::text AND o.id <> a.id)
				THEN $4::text END),
			country_code = COALESCE(NULLIF(a.country_code, ''), NULLIF($5::text, '')),
			password_hash = COALESCE(NULLIF(a.password_hash, ''), NULLIF($6::text, '')),
			updated_at = now()
		WHERE a.id = $1
		RETURNING ` + accountColumns

	attrs = attrs.Normalize()
	acc, err := scanAccount(r.pool.QueryRow(ctx, updateSQL, id,
		attrs.FullName, attrs.Email, attrs.Phone, attrs.CountryCode, attrs.PasswordHash))
	if err != nil {
		if isNoAccount(err) {
			return Account{}, ErrNotFound
		}
		return Account{}, db.Classify(fmt.Errorf("account: fill missing: %w", err))
	}
	return acc, nil
}

func (r *PGRepository) SetRole(ctx context.Context, id string, role Role) error {
	const updateSQL = `UPDATE accounts SET role = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, updateSQL, id, string(role))
	if err != nil {
		if isNoAccount(err) {
			return ErrNotFound
		}
		return db.Classify(fmt.Errorf("account: set role: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) MarkOnboarded(ctx context.Context, id string) error {
	const updateSQL = `UPDATE accounts SET is_onboarded = true, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, updateSQL, id)
	if err != nil {
		if isNoAccount(err) {
			return ErrNotFound
		}
		return db.Classify(fmt.Errorf("account: mark onboarded: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc          Account
		fullName     *string
		email        *string
		phone        *string
		countryCode  *string
		passwordHash *string
		role         string
	)
	err := row.Scan(
		&acc.ID,
		&fullName,
		&email,
		&phone,
		&countryCode,
		&passwordHash,
		&role,
		&acc.IsOnboarded,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}

	acc.FullName = deref(fullName)
	acc.Email = deref(email)
	acc.Phone = deref(phone)
	acc.CountryCode = deref(countryCode)
	acc.PasswordHash = deref(passwordHash)
	acc.Role = Role(role)
	return acc, nil
}

// isNoAccount also treats a malformed uuid as a missing row.
func isNoAccount(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
