package gateway

import (
	"context"
	"encoding/hex"
	"math/rand"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
)

// FakeProvider simulates a payment backend in memory. Authorizations are
// idempotent on the idempotency key via an LRU cache, and a configurable
// fraction of calls fails with a transient error so the retry path gets
// exercised in dev environments.
type FakeProvider struct {
	mu       sync.Mutex
	byRef    map[string]*Transaction
	order    []string
	idemp    *lru.Cache[string, *Result]
	failRate float64
	rnd      *rand.Rand
}

func NewFakeProvider(failRate float64, seed int64) *FakeProvider {
	cache, _ := lru.New[string, *Result](4096)
	return &FakeProvider{
		byRef:    make(map[string]*Transaction),
		idemp:    cache,
		failRate: failRate,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

func (p *FakeProvider) newRef() string {
	buf := make([]byte, 12)
	p.rnd.Read(buf)
	return "ch_" + hex.EncodeToString(buf)
}

func (p *FakeProvider) maybeFail() error {
	if p.failRate > 0 && p.rnd.Float64() < p.failRate {
		return &Error{Code: CodeAPIError, Message: "simulated transient failure"}
	}
	return nil
}

func (p *FakeProvider) Authorize(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idempotencyKey != "" {
		if cached, ok := p.idemp.Get(idempotencyKey); ok {
			return cached, nil
		}
	}
	if err := p.maybeFail(); err != nil {
		return nil, err
	}

	ref := p.newRef()
	p.byRef[ref] = &Transaction{Ref: ref, Amount: amount, Currency: currency, Status: StatusRequiresCapture}
	p.order = append(p.order, ref)

	res := &Result{Status: StatusRequiresCapture, Ref: ref}
	if idempotencyKey != "" {
		p.idemp.Add(idempotencyKey, res)
	}
	return res, nil
}

func (p *FakeProvider) Capture(ctx context.Context, ref string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.maybeFail(); err != nil {
		return nil, err
	}
	tx, ok := p.byRef[ref]
	if !ok {
		return nil, &Error{Code: "not_found", Message: "unknown charge " + ref}
	}
	tx.Status = StatusSucceeded
	return &Result{Status: StatusSucceeded, Ref: ref}, nil
}

func (p *FakeProvider) Refund(ctx context.Context, ref string, amount decimal.Decimal) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.maybeFail(); err != nil {
		return nil, err
	}
	if _, ok := p.byRef[ref]; !ok {
		return nil, &Error{Code: "not_found", Message: "unknown charge " + ref}
	}
	return &Result{Status: StatusSucceeded, Ref: "re_" + ref}, nil
}

func (p *FakeProvider) GetStatus(ctx context.Context, ref string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, ok := p.byRef[ref]
	if !ok {
		return nil, &Error{Code: "not_found", Message: "unknown charge " + ref}
	}
	return &Result{Status: tx.Status, Ref: ref}, nil
}

func (p *FakeProvider) ListRecentTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := 0
	if len(p.order) > limit {
		start = len(p.order) - limit
	}
	var txs []Transaction
	for _, ref := range p.order[start:] {
		txs = append(txs, *p.byRef[ref])
	}
	return txs, nil
}

// SetTransaction overrides a remote charge, used to stage reconciliation
// scenarios in dev environments.
func (p *FakeProvider) SetTransaction(tx Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byRef[tx.Ref]; !ok {
		p.order = append(p.order, tx.Ref)
	}
	cp := tx
	p.byRef[tx.Ref] = &cp
}
