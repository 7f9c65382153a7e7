package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"colabatr/account"
	"colabatr/db"
	"colabatr/events"
)

const DefaultMaxAttempts = 3

var (
	// ErrInvalidCredential signals a claim that cannot be resolved, or a
	// credential that did not verify.
	ErrInvalidCredential = errors.New("identity: invalid credential")
	// ErrAccountConflict signals that contact collisions kept recurring until
	// the attempt budget ran out.
	ErrAccountConflict = errors.New("identity: account conflict")
	// ErrLinkNotFound signals that no account is bound to the identity.
	ErrLinkNotFound = errors.New("identity: link not found")
)

// AccountStore is the part of the account repository the resolver drives.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	GetByPhone(ctx context.Context, phone string) (account.Account, error)
	Create(ctx context.Context, attrs account.Attrs) (account.Account, error)
	FillMissing(ctx context.Context, id string, attrs account.Attrs) (account.Account, error)
}

// Publisher receives lifecycle events. Failures are logged, never returned.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Resolver maps a verified claim to exactly one account, creating or
// enriching the account and binding the identity to it.
type Resolver struct {
	accounts    AccountStore
	links       LinkRepository
	publisher   Publisher
	log         *zap.Logger
	maxAttempts int
}

func NewResolver(accounts AccountStore, links LinkRepository, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		accounts:    accounts,
		links:       links,
		publisher:   events.Nop{},
		log:         log,
		maxAttempts: DefaultMaxAttempts,
	}
}

func (r *Resolver) WithPublisher(p Publisher) *Resolver {
	if p != nil {
		r.publisher = p
	}
	return r
}

func (r *Resolver) WithMaxAttempts(n int) *Resolver {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

// Resolve returns the account the claim belongs to. A unique violation from a
// concurrent writer restarts resolution; db.ErrStorageUnavailable and context
// errors are returned as they occur.
func (r *Resolver) Resolve(ctx context.Context, claim Claim) (account.Account, error) {
	claim, err := claim.Normalize()
	if err != nil {
		return account.Account{}, err
	}
	log := r.log.With(zap.String("provider", string(claim.Provider)), zap.String("provider_user_id", claim.ProviderUserID))

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		acc, err := r.resolveOnce(ctx, log, claim)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, db.ErrUniqueViolation) {
			return account.Account{}, err
		}
		lastErr = err
		log.Debug("identity resolve collided, retrying",
			zap.Int("attempt", attempt),
			zap.String("constraint", db.ConstraintName(err)))
		if err := ctx.Err(); err != nil {
			return account.Account{}, err
		}
	}

	log.Warn("identity resolve exhausted attempts", zap.Int("attempts", r.maxAttempts), zap.Error(lastErr))
	return account.Account{}, fmt.Errorf("identity: resolve after %d attempts: %w (last: %v)", r.maxAttempts, ErrAccountConflict, lastErr)
}

func (r *Resolver) resolveOnce(ctx context.Context, log *zap.Logger, claim Claim) (account.Account, error) {
	attrs := claim.attrs()

	acc, created, err := r.locate(ctx, claim)
	if err != nil {
		return account.Account{}, err
	}
	if !created {
		if acc, err = r.accounts.FillMissing(ctx, acc.ID, attrs); err != nil {
			return account.Account{}, err
		}
	}

	res, err := r.links.Upsert(ctx, Link{
		Provider:       claim.Provider,
		ProviderUserID: claim.ProviderUserID,
		AccountID:      acc.ID,
		LinkedEmail:    claim.Email,
		LinkedPhone:    claim.Phone,
	})
	if err != nil {
		return account.Account{}, err
	}

	final, err := r.accounts.GetByID(ctx, acc.ID)
	if err != nil {
		return account.Account{}, err
	}

	if created {
		log.Info("account created", zap.String("account_id", final.ID))
		r.publish(ctx, events.TopicAccountCreated, events.AccountCreated{AccountID: final.ID, Provider: string(claim.Provider)})
	}
	switch {
	case res.Inserted():
		log.Info("identity linked", zap.String("account_id", final.ID))
		r.publish(ctx, events.TopicIdentityLinked, events.IdentityLinked{
			AccountID:      final.ID,
			Provider:       string(claim.Provider),
			ProviderUserID: claim.ProviderUserID,
		})
	case res.Reassigned():
		log.Warn("identity link reassigned",
			zap.String("previous_account_id", res.PreviousAccountID),
			zap.String("account_id", final.ID))
		r.publish(ctx, events.TopicLinkReassigned, events.LinkReassigned{
			Provider:          string(claim.Provider),
			ProviderUserID:    claim.ProviderUserID,
			PreviousAccountID: res.PreviousAccountID,
			AccountID:         final.ID,
		})
	}
	return final, nil
}

// locate applies the precedence: existing link, then email, then phone,
// then a new account.
func (r *Resolver) locate(ctx context.Context, claim Claim) (account.Account, bool, error) {
	link, err := r.links.Find(ctx, claim.Provider, claim.ProviderUserID)
	switch {
	case err == nil:
		return account.Account{ID: link.AccountID}, false, nil
	case !errors.Is(err, ErrLinkNotFound):
		return account.Account{}, false, err
	}

	if claim.Email != "" {
		acc, err := r.accounts.GetByEmail(ctx, claim.Email)
		if err == nil {
			return acc, false, nil
		}
		if !errors.Is(err, account.ErrNotFound) {
			return account.Account{}, false, err
		}
	}
	if claim.Phone != "" {
		acc, err := r.accounts.GetByPhone(ctx, claim.Phone)
		if err == nil {
			return acc, false, nil
		}
		if !errors.Is(err, account.ErrNotFound) {
			return account.Account{}, false, err
		}
	}

	acc, err := r.accounts.Create(ctx, claim.attrs())
	if err != nil {
		return account.Account{}, false, err
	}
	return acc, true, nil
}

// Links lists every identity bound to the account.
func (r *Resolver) Links(ctx context.Context, accountID string) ([]Link, error) {
	return r.links.ListByAccount(ctx, accountID)
}

func (r *Resolver) publish(ctx context.Context, topic string, payload any) {
	if err := r.publisher.Publish(ctx, topic, payload); err != nil {
		r.log.Warn("publish event failed", zap.String("topic", topic), zap.Error(err))
	}
}
