// Package accounttest provides an in-memory account.Repository for tests.
package accounttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"colabatr/account"
	"colabatr/db"
)

// Memory mirrors the Postgres repository semantics, including the unique
// email and phone constraints and the guarded fill of contact fields.
type Memory struct {
	mu       sync.Mutex
	byID     map[string]account.Account
	order    []string
	nextID   int
	now      func() time.Time
	calls    map[string]int
	failures map[string]error

	// BeforeCreate runs outside the lock before every Create.
	BeforeCreate func(ctx context.Context, attrs account.Attrs)
	// BeforeFill runs outside the lock before every FillMissing.
	BeforeFill func(ctx context.Context, id string, attrs account.Attrs)
}

func NewMemory() *Memory {
	return &Memory{
		byID:     make(map[string]account.Account),
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// FailOn makes every call to method return err until cleared with a nil err.
func (m *Memory) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// Calls reports how many times method was invoked.
func (m *Memory) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// All returns every stored account in creation order.
func (m *Memory) All() []account.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]account.Account, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// Insert stores an account directly, bypassing hooks. It returns the same
// unique violation Create would.
func (m *Memory) Insert(attrs account.Attrs) (account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(attrs.Normalize())
}

func (m *Memory) enter(method string) error {
	m.calls[method]++
	return m.failures[method]
}

func (m *Memory) GetByID(ctx context.Context, id string) (account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetByID"); err != nil {
		return account.Account{}, err
	}
	acc, ok := m.byID[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return acc, nil
}

func (m *Memory) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetByEmail"); err != nil {
		return account.Account{}, err
	}
	if acc, ok := m.findLocked(func(a account.Account) bool {
		return email != "" && a.Email == account.NormalizeEmail(email)
	}); ok {
		return acc, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (m *Memory) GetByPhone(ctx context.Context, phone string) (account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetByPhone"); err != nil {
		return account.Account{}, err
	}
	if acc, ok := m.findLocked(func(a account.Account) bool {
		return phone != "" && a.Phone == account.NormalizePhone(phone)
	}); ok {
		return acc, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (m *Memory) Create(ctx context.Context, attrs account.Attrs) (account.Account, error) {
	if m.BeforeCreate != nil {
		m.BeforeCreate(ctx, attrs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Create"); err != nil {
		return account.Account{}, err
	}
	return m.insertLocked(attrs.Normalize())
}

func (m *Memory) FillMissing(ctx context.Context, id string, attrs account.Attrs) (account.Account, error) {
	if m.BeforeFill != nil {
		m.BeforeFill(ctx, id, attrs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FillMissing"); err != nil {
		return account.Account{}, err
	}
	acc, ok := m.byID[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}

	attrs = attrs.Normalize()
	if acc.FullName == "" {
		acc.FullName = attrs.FullName
	}
	if acc.Email == "" && attrs.Email != "" && !m.heldByOtherLocked(id, func(a account.Account) bool { return a.Email == attrs.Email }) {
		acc.Email = attrs.Email
	}
	if acc.Phone == "" && attrs.Phone != "" && !m.heldByOtherLocked(id, func(a account.Account) bool { return a.Phone == attrs.Phone }) {
		acc.Phone = attrs.Phone
	}
	if acc.CountryCode == "" {
		acc.CountryCode = attrs.CountryCode
	}
	if acc.PasswordHash == "" {
		acc.PasswordHash = attrs.PasswordHash
	}
	acc.UpdatedAt = m.now()
	m.byID[id] = acc
	return acc, nil
}

func (m *Memory) SetRole(ctx context.Context, id string, role account.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SetRole"); err != nil {
		return err
	}
	acc, ok := m.byID[id]
	if !ok {
		return account.ErrNotFound
	}
	acc.Role = role
	acc.UpdatedAt = m.now()
	m.byID[id] = acc
	return nil
}

func (m *Memory) MarkOnboarded(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("MarkOnboarded"); err != nil {
		return err
	}
	acc, ok := m.byID[id]
	if !ok {
		return account.ErrNotFound
	}
	acc.IsOnboarded = true
	acc.UpdatedAt = m.now()
	m.byID[id] = acc
	return nil
}

func (m *Memory) insertLocked(attrs account.Attrs) (account.Account, error) {
	if attrs.Email != "" && m.heldByOtherLocked("", func(a account.Account) bool { return a.Email == attrs.Email }) {
		return account.Account{}, uniqueViolation("accounts_email_key")
	}
	if attrs.Phone != "" && m.heldByOtherLocked("", func(a account.Account) bool { return a.Phone == attrs.Phone }) {
		return account.Account{}, uniqueViolation("accounts_phone_key")
	}

	now := m.now()
	acc := account.Account{
		ID:           fmt.Sprintf("account-%d", m.nextID),
		FullName:     attrs.FullName,
		Email:        attrs.Email,
		Phone:        attrs.Phone,
		CountryCode:  attrs.CountryCode,
		PasswordHash: attrs.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.nextID++
	m.byID[acc.ID] = acc
	m.order = append(m.order, acc.ID)
	return acc, nil
}

func (m *Memory) findLocked(match func(account.Account) bool) (account.Account, bool) {
	for _, id := range m.order {
		if acc := m.byID[id]; match(acc) {
			return acc, true
		}
	}
	return account.Account{}, false
}

func (m *Memory) heldByOtherLocked(id string, match func(account.Account) bool) bool {
	for otherID, acc := range m.byID {
		if otherID != id && match(acc) {
			return true
		}
	}
	return false
}

func uniqueViolation(constraint string) error {
	return &db.Error{
		Kind:       db.ErrUniqueViolation,
		Constraint: constraint,
		Err:        errors.New("duplicate key value violates unique constraint"),
	}
}
