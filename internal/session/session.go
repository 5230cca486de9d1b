// Package session owns the credential used to talk to the device gateway and
// keeps it in step with its durable copy.
package session

import (
	"context"
	"fmt"
	"sync"

	"tolppa-client/internal/model"
	"tolppa-client/internal/store"
)

// Store holds the in-memory credential. Every mutation writes the durable
// copy first and touches memory only after that write succeeded, under the
// same lock, so readers never observe the two diverging.
type Store struct {
	kv store.KV

	mu   sync.RWMutex
	cred model.Credential
}

// New loads the persisted credential from kv.
func New(ctx context.Context, kv store.KV) (*Store, error) {
	values, err := kv.Load(ctx, store.SessionKeys...)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &Store{
		kv: kv,
		cred: model.Credential{
			Token:    values[store.KeyToken],
			Email:    values[store.KeyEmail],
			Password: values[store.KeyPassword],
		},
	}, nil
}

// Get returns a copy of the current credential.
func (s *Store) Get() model.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Token is shorthand for Get().Token.
func (s *Store) Token() string {
	return s.Get().Token
}

// Update stores token and reports whether polling should run, which is
// exactly when token is non-empty.
func (s *Store) Update(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Put(ctx, map[string]string{store.KeyToken: token}); err != nil {
		return false, fmt.Errorf("persist token: %w", err)
	}
	s.cred.Token = token
	return token != "", nil
}

// Clear removes the token. Delegated credentials are kept.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, store.KeyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	s.cred.Token = ""
	return nil
}

// Revoke clears the token only if it still equals token, and reports whether
// it did. A token installed in the meantime is left alone.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" || s.cred.Token != token {
		return false, nil
	}
	if err := s.kv.Delete(ctx, store.KeyToken); err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	s.cred.Token = ""
	return true, nil
}

// SetDelegatedCredentials stores email and password for a later automatic
// login. It never touches the network.
func (s *Store) SetDelegatedCredentials(ctx context.Context, email, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Put(ctx, map[string]string{
		store.KeyEmail:    email,
		store.KeyPassword: password,
	}); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	s.cred.Email = email
	s.cred.Password = password
	return nil
}

// Purge forgets token, email and password.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, store.SessionKeys...); err != nil {
		return fmt.Errorf("purge session: %w", err)
	}
	s.cred = model.Credential{}
	return nil
}
