package account

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"colabatr/db"
)

// Service exposes the account mutations callers may perform after sign-in.
type Service struct {
	repo Repository
	log  *zap.Logger
}

// NewService creates a new account service.
func NewService(repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log}
}

func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// SetRole assigns influencer or brand. Any other value yields ErrRoleInvalid.
func (s *Service) SetRole(ctx context.Context, id, role string) error {
	r, err := ParseRole(role)
	if err != nil {
		return fmt.Errorf("account: set role %q: %w", role, err)
	}
	if err := s.repo.SetRole(ctx, id, r); err != nil {
		return err
	}
	s.log.Info("account role set", zap.String("account_id", id), zap.String("role", string(r)))
	return nil
}

func (s *Service) MarkOnboarded(ctx context.Context, id string) error {
	return s.repo.MarkOnboarded(ctx, id)
}

// MergeProfileAttrs fills absent attributes from a profile form. Present
// values are never replaced. An email or phone held by another account is
// rejected with ErrContactInUse instead of being silently skipped.
func (s *Service) MergeProfileAttrs(ctx context.Context, id string, attrs Attrs) (Account, error) {
	attrs = attrs.Normalize()
	attrs.PasswordHash = ""

	if attrs.Email != "" {
		if err := s.ensureContactFree(ctx, id, s.repo.GetByEmail, attrs.Email); err != nil {
			return Account{}, err
		}
	}
	if attrs.Phone != "" {
		if err := s.ensureContactFree(ctx, id, s.repo.GetByPhone, attrs.Phone); err != nil {
			return Account{}, err
		}
	}

	acc, err := s.repo.FillMissing(ctx, id, attrs)
	if err != nil {
		if errors.Is(err, db.ErrUniqueViolation) {
			return Account{}, fmt.Errorf("account: merge profile: %w", ErrContactInUse)
		}
		return Account{}, err
	}
	return acc, nil
}

func (s *Service) ensureContactFree(ctx context.Context, id string, lookup func(context.Context, string) (Account, error), value string) error {
	other, err := lookup(ctx, value)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != id:
		return fmt.Errorf("account: merge profile: %w", ErrContactInUse)
	}
	return nil
}
