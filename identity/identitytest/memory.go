// Package identitytest provides an in-memory identity.LinkRepository for tests.
package identitytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"colabatr/identity"
)

type key struct {
	provider       identity.Provider
	providerUserID string
}

// Links is a mutex-guarded map keyed by (provider, providerUserId).
type Links struct {
	mu       sync.Mutex
	links    map[key]identity.Link
	seq      map[key]int
	next     int
	calls    map[string]int
	failures map[string]error
	now      func() time.Time
}

func NewLinks() *Links {
	return &Links{
		links:    make(map[key]identity.Link),
		seq:      make(map[key]int),
		calls:    make(map[string]int),
		failures: make(map[string]error),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FailOn makes every call to method return err until cleared with a nil err.
func (s *Links) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Links) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// All returns every link ordered by insertion.
func (s *Links) All() []identity.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.Link, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[key{out[i].Provider, out[i].ProviderUserID}] < s.seq[key{out[j].Provider, out[j].ProviderUserID}]
	})
	return out
}

func (s *Links) Find(ctx context.Context, provider identity.Provider, providerUserID string) (identity.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Find"]++
	if err := s.failures["Find"]; err != nil {
		return identity.Link{}, err
	}
	l, ok := s.links[key{provider, providerUserID}]
	if !ok {
		return identity.Link{}, identity.ErrLinkNotFound
	}
	return l, nil
}

func (s *Links) Upsert(ctx context.Context, link identity.Link) (identity.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Upsert"]++
	if err := s.failures["Upsert"]; err != nil {
		return identity.UpsertResult{}, err
	}

	k := key{link.Provider, link.ProviderUserID}
	now := s.now()
	var res identity.UpsertResult
	if prev, ok := s.links[k]; ok {
		res.PreviousAccountID = prev.AccountID
		link.CreatedAt = prev.CreatedAt
	} else {
		link.CreatedAt = now
		s.next++
		s.seq[k] = s.next
	}
	link.UpdatedAt = now
	s.links[k] = link
	res.Link = link
	return res, nil
}

func (s *Links) ListByAccount(ctx context.Context, accountID string) ([]identity.Link, error) {
	s.mu.Lock()
	s.calls["ListByAccount"]++
	if err := s.failures["ListByAccount"]; err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	var out []identity.Link
	for _, l := range s.All() {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}
	return out, nil
}
