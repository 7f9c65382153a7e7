package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"colabatr/db"
)

// LinkRepository handles data access for identity links.
type LinkRepository interface {
	Find(ctx context.Context, provider Provider, providerUserID string) (Link, error)
	Upsert(ctx context.Context, link Link) (UpsertResult, error)
	ListByAccount(ctx context.Context, accountID string) ([]Link, error)
}

// PGLinkRepository implements LinkRepository backed by PostgreSQL.
type PGLinkRepository struct {
	pool *pgxpool.Pool
}

func NewLinkRepository(pool *pgxpool.Pool) *PGLinkRepository {
	return &PGLinkRepository{pool: pool}
}

const linkColumns = `provider, provider_user_id, account_id, linked_email, linked_phone, created_at, updated_at`

func (r *PGLinkRepository) Find(ctx context.Context, provider Provider, providerUserID string) (Link, error) {
	const selectSQL = `SELECT ` + linkColumns + ` FROM identity_links WHERE provider = $1 AND provider_user_id = $2`

	link, err := scanLink(r.pool.QueryRow(ctx, selectSQL, string(provider), providerUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Link{}, ErrLinkNotFound
		}
		return Link{}, db.Classify(fmt.Errorf("identity: find link: %w", err))
	}
	return link, nil
}

// Upsert inserts the link or, when the key exists, points it at link.AccountID
// and replaces the contact snapshot. It is a single statement, so concurrent
// upserts of one key never produce two rows.
func (r *PGLinkRepository) Upsert(ctx context.Context, link Link) (UpsertResult, error) {
	const upsertSQL = `
		WITH prev AS (
			SELECT account_id FROM identity_links WHERE provider = $1 AND provider_user_id = $2
		)
		INSERT INTO identity_links (provider, provider_user_id, account_id, linked_email, linked_phone)
		VALUES ($1, $2, $3, NULLIF($4::text, ''), NULLIF($5::text, ''))
		ON CONFLICT (provider, provider_user_id) DO UPDATE SET
			account_id   = EXCLUDED.account_id,
			linked_email = EXCLUDED.linked_email,
			linked_phone = EXCLUDED.linked_phone,
			updated_at   = now()
		RETURNING ` + linkColumns + `, (SELECT account_id::text FROM prev)`

	var prev *string
	row := r.pool.QueryRow(ctx, upsertSQL, string(link.Provider), link.ProviderUserID, link.AccountID, link.LinkedEmail, link.LinkedPhone)
	saved, err := scanLink(row, &prev)
	if err != nil {
		return UpsertResult{}, db.Classify(fmt.Errorf("identity: upsert link: %w", err))
	}
	res := UpsertResult{Link: saved}
	if prev != nil {
		res.PreviousAccountID = *prev
	}
	return res, nil
}

func (r *PGLinkRepository) ListByAccount(ctx context.Context, accountID string) ([]Link, error) {
	const selectSQL = `SELECT ` + linkColumns + ` FROM identity_links WHERE account_id = $1 ORDER BY created_at, provider`

	rows, err := r.pool.Query(ctx, selectSQL, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return nil, nil
		}
		return nil, db.Classify(fmt.Errorf("identity: list links: %w", err))
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, db.Classify(fmt.Errorf("identity: scan link: %w", err))
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("identity: list links: %w", err))
	}
	return links, nil
}

func scanLink(row pgx.Row, extra ...any) (Link, error) {
	var (
		link        Link
		provider    string
		linkedEmail *string
		linkedPhone *string
	)
	dest := []any{
		&provider,
		&link.ProviderUserID,
		&link.AccountID,
		&linkedEmail,
		&linkedPhone,
		&link.CreatedAt,
		&link.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Link{}, err
	}

	link.Provider = Provider(provider)
	if linkedEmail != nil {
		link.LinkedEmail = *linkedEmail
	}
	if linkedPhone != nil {
		link.LinkedPhone = *linkedPhone
	}
	return link, nil
}
