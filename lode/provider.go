// Package lode serves Indirect addresses from lode stores.
//
// An address names an authority and a key: content://<authority>/<key> or
// s3://<bucket>/<key>. The authority selects a store from a StoreFactory,
// the key is passed to Store.Get unchanged.
package lode

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/intake/staging"
)

// StoreFactory returns the store backing one authority.
type StoreFactory func(authority string) (lode.Store, error)

// NewFSStoreFactory maps each authority to a filesystem store rooted at
// root/<authority>.
func NewFSStoreFactory(root string) StoreFactory {
	return func(authority string) (lode.Store, error) {
		return lode.NewFSFactory(filepath.Join(root, authority))()
	}
}

// NewSharedStoreFactory serves every authority from one store.
// Used with lode.NewMemory() in tests and for single-root deployments.
func NewSharedStoreFactory(store lode.Store) StoreFactory {
	return func(string) (lode.Store, error) {
		return store, nil
	}
}

// StoreProvider is a staging.Provider backed by lode stores.
// Stores are created lazily and cached per authority.
type StoreProvider struct {
	factory StoreFactory

	mu     sync.Mutex
	stores map[string]lode.Store
}

// NewStoreProvider creates a provider using factory.
func NewStoreProvider(factory StoreFactory) *StoreProvider {
	return &StoreProvider{
		factory: factory,
		stores:  make(map[string]lode.Store),
	}
}

// Open implements staging.Provider.
func (p *StoreProvider) Open(ctx context.Context, raw string) (io.ReadCloser, error) {
	authority, key, err := splitAddress(raw)
	if err != nil {
		return nil, err
	}

	store, err := p.store(authority)
	if err != nil {
		return nil, WrapInitError(err, authority)
	}

	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, WrapReadError(err, raw)
	}
	return rc, nil
}

func (p *StoreProvider) store(authority string) (lode.Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[authority]; ok {
		return s, nil
	}
	s, err := p.factory(authority)
	if err != nil {
		return nil, err
	}
	p.stores[authority] = s
	return s, nil
}

// splitAddress extracts the authority and store key from raw.
func splitAddress(raw string) (authority, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid address %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("address %q has no authority", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("address %q has no key", raw)
	}
	return u.Host, key, nil
}

var _ staging.Provider = (*StoreProvider)(nil)
