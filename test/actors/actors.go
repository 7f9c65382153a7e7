package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"colabatr/account"
	"colabatr/db"
	"colabatr/identity"
)

// Persona is one human who may sign in through any provider.
type Persona struct {
	Email string
	Phone string
	Name  string
}

// NewPersonas builds n personas whose contacts are unique to this run.
func NewPersonas(n int, run int64) []Persona {
	out := make([]Persona, n)
	for i := range out {
		out[i] = Persona{
			Email: fmt.Sprintf("Persona%d+%d@Stress.Test", i, run),
			Phone: fmt.Sprintf("+1%03d%07d", run%1000, i),
			Name:  fmt.Sprintf("Persona %d", i),
		}
	}
	return out
}

// Counters tallies tolerated outcomes across actors.
type Counters struct {
	Resolved    atomic.Int64
	Unavailable atomic.Int64
	Conflicts   atomic.Int64
}

// claimFor builds a claim for p through a random provider, carrying a random
// subset of the persona's contacts the way that provider would.
func claimFor(p Persona, idx int) identity.Claim {
	switch rand.Intn(3) {
	case 0:
		return identity.Claim{Provider: identity.ProviderEmailPassword, ProviderUserID: account.NormalizeEmail(p.Email), Email: p.Email, FullName: p.Name}
	case 1:
		return identity.Claim{Provider: identity.ProviderPhoneOTP, ProviderUserID: p.Phone, Phone: p.Phone}
	default:
		c := identity.Claim{Provider: identity.ProviderGoogle, ProviderUserID: fmt.Sprintf("g-%d", idx), Email: p.Email}
		if rand.Intn(2) == 0 {
			c.Phone = p.Phone
		}
		return c
	}
}

// Resolver signs personas in concurrently through random providers.
// Storage loss from chaos and exhausted retries are counted, anything else
// stops the run.
func Resolver(ctx context.Context, r *identity.Resolver, personas []Persona, counters *Counters, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		idx := rand.Intn(len(personas))
		claim := claimFor(personas[idx], idx)

		_, err := r.Resolve(ctx, claim)
		switch {
		case err == nil:
			counters.Resolved.Add(1)
		case errors.Is(err, db.ErrStorageUnavailable):
			counters.Unavailable.Add(1)
		case errors.Is(err, identity.ErrAccountConflict):
			counters.Conflicts.Add(1)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return fmt.Errorf("resolve %s/%s: %w", claim.Provider, claim.ProviderUserID, err)
		}
		time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
	}
}

// Onboarder sets roles and onboarding flags on random accounts, racing the
// resolver's enrichment writes.
func Onboarder(ctx context.Context, pool *pgxpool.Pool, svc *account.Service, stop <-chan struct{}) error {
	roles := []string{string(account.RoleInfluencer), string(account.RoleBrand)}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var id string
		if err := pool.QueryRow(ctx, `SELECT id::text FROM accounts ORDER BY random() LIMIT 1`).Scan(&id); err == nil {
			err = svc.SetRole(ctx, id, roles[rand.Intn(len(roles))])
			if err == nil && rand.Intn(2) == 0 {
				err = svc.MarkOnboarded(ctx, id)
			}
			if err != nil && !errors.Is(err, db.ErrStorageUnavailable) && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("onboard %s: %w", id, err)
			}
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}
