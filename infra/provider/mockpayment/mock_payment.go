// Package mockpayment simulates a payment backend for tests and local
// development. Not for production use.
package mockpayment

import (
	"context"
	"fmt"
	"sync"

	"github.com/tapyield/cashout/pkg/provider/payment"
)

// Provider is a scriptable in-memory payment backend. By default every
// submission succeeds; FailNext and AlwaysFail script failures.
type Provider struct {
	id       string
	realTime bool

	mu         sync.Mutex
	submits    int
	pings      int
	failNext   int
	alwaysFail bool
	pingErr    error
}

var _ payment.Provider = (*Provider)(nil)

// New creates a mock provider with the given ID.
func New(id string) *Provider {
	return &Provider{id: id, realTime: true}
}

func (p *Provider) ID() string     { return p.id }
func (p *Provider) RealTime() bool { return p.realTime }

// FailNext scripts the next n submissions to fail.
func (p *Provider) FailNext(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = n
}

// AlwaysFail scripts every submission to fail.
func (p *Provider) AlwaysFail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alwaysFail = true
}

// FailPings scripts health probes to return err (nil restores health).
func (p *Provider) FailPings(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingErr = err
}

// Submits returns how many submissions this provider has received.
func (p *Provider) Submits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submits
}

func (p *Provider) Submit(ctx context.Context, params *payment.SubmitParams) (*payment.SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submits++
	if p.alwaysFail {
		return &payment.SubmitResult{Success: false, Error: "mock: provider unavailable"}, nil
	}
	if p.failNext > 0 {
		p.failNext--
		return &payment.SubmitResult{Success: false, Error: "mock: transient failure"}, nil
	}
	return &payment.SubmitResult{
		Success:               true,
		ProviderTransactionID: fmt.Sprintf("%s-tx-%d", p.id, p.submits),
	}, nil
}

func (p *Provider) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pings++
	return p.pingErr
}
