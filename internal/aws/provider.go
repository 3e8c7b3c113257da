package aws

import (
	"context"
	"errors"
	"sync"
)

// Provider builds the AWS client bundle once per process and hands the same
// bundle to every invocation. A failed build is not cached, so the next
// invocation tries again.
type Provider struct {
	mu      sync.Mutex
	load    func(ctx context.Context) (*AWSClients, error)
	clients *AWSClients
}

// NewProvider returns a Provider that uses load on first use.
func NewProvider(load func(ctx context.Context) (*AWSClients, error)) *Provider {
	return &Provider{load: load}
}

// Clients returns the shared bundle, building it on first call.
func (p *Provider) Clients(ctx context.Context) (*AWSClients, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clients != nil {
		return p.clients, nil
	}
	if p.load == nil {
		return nil, errors.New("aws provider has no loader")
	}
	c, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	p.clients = c
	return c, nil
}

type clientsKey struct{}

// NewContext returns a copy of ctx carrying clients.
func NewContext(ctx context.Context, clients *AWSClients) context.Context {
	return context.WithValue(ctx, clientsKey{}, clients)
}

// FromContext returns the clients stored by NewContext.
func FromContext(ctx context.Context) (*AWSClients, bool) {
	c, ok := ctx.Value(clientsKey{}).(*AWSClients)
	return c, ok && c != nil
}
