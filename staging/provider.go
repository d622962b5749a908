package staging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pithecene-io/intake/iox"
)

// Provider opens a readable stream for an Indirect address.
// The caller closes the returned stream.
type Provider interface {
	Open(ctx context.Context, raw string) (io.ReadCloser, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, raw string) (io.ReadCloser, error)

// Open implements Provider.
func (f ProviderFunc) Open(ctx context.Context, raw string) (io.ReadCloser, error) {
	return f(ctx, raw)
}

// Registry routes Indirect addresses to providers by URI scheme.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register binds scheme (e.g. "content", "s3", "https") to p.
// Registering the same scheme again replaces the previous provider.
func (r *Registry) Register(scheme string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(scheme)] = p
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for scheme := range r.providers {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}

// Open implements Provider by dispatching on the scheme of raw.
func (r *Registry) Open(ctx context.Context, raw string) (io.ReadCloser, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)

	r.mu.RLock()
	p, ok := r.providers[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoProvider, scheme)
	}
	return p.Open(ctx, raw)
}

// DefaultHTTPTimeout bounds a whole HTTP transfer, body included.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPProvider streams http:// and https:// addresses.
type HTTPProvider struct {
	client  *http.Client
	headers map[string]string
}

// NewHTTPProvider creates an HTTP provider. A non-positive timeout selects
// DefaultHTTPTimeout.
func NewHTTPProvider(timeout time.Duration, headers map[string]string) *HTTPProvider {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPProvider{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// Open issues a GET and returns the response body on 2xx.
func (p *HTTPProvider) Open(ctx context.Context, raw string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		iox.DiscardClose(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return resp.Body, nil
}

// Verify implementations satisfy Provider.
var (
	_ Provider = (*Registry)(nil)
	_ Provider = (*HTTPProvider)(nil)
	_ Provider = ProviderFunc(nil)
)
