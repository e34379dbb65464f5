package unmask

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-autofill/pkg/record"
)

type fakeStore struct {
	mu      sync.Mutex
	updated []record.Record
}

func (s *fakeStore) Profiles(context.Context) ([]record.Profile, error)       { return nil, nil }
func (s *fakeStore) CreditCards(context.Context) ([]record.CreditCard, error) { return nil, nil }
func (s *fakeStore) RecordUsed(string)                                        {}

func (s *fakeStore) RecordUpdated(r record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, r)
}

func (s *fakeStore) updatedRecords() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]record.Record(nil), s.updated...)
}

// manualRisk captures the delivery callback so tests control when the risk
// signal arrives.
type manualRisk struct {
	mu      sync.Mutex
	calls   int
	deliver func(string, error)
	ready   chan struct{}
}

func newManualRisk() *manualRisk {
	return &manualRisk{ready: make(chan struct{}, 1)}
}

func (p *manualRisk) FetchRiskData(_ context.Context, _ string, deliver func(string, error)) {
	p.mu.Lock()
	p.calls++
	p.deliver = deliver
	p.mu.Unlock()
	p.ready <- struct{}{}
}

func (p *manualRisk) fire(token string, err error) {
	p.mu.Lock()
	deliver := p.deliver
	p.mu.Unlock()
	deliver(token, err)
}

func (p *manualRisk) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeExchanger struct {
	mu    sync.Mutex
	calls int
	pan   string
	err   error
	last  Request
}

func (e *fakeExchanger) Exchange(_ context.Context, req Request) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.last = req
	return e.pan, e.err
}

func (e *fakeExchanger) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *fakeExchanger) lastRequest() Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *fakeExchanger) set(pan string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pan = pan
	e.err = err
}

func maskedCard() record.CreditCard {
	return record.CreditCard{ID: "c1", NameOnCard: "Ada Lovelace", LastFour: "1111", ExpMonth: 3, ExpYear: 2027, Masked: true}
}

func awaitResult(t *testing.T, results chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("no result delivered")
		return Result{}
	}
}

func TestUsableCardResolvesWithoutExchange(t *testing.T) {
	risk := newManualRisk()
	exchanger := &fakeExchanger{}
	c := New(&fakeStore{}, risk, exchanger)

	usable := maskedCard()
	usable.Masked = false
	usable.Number = "4111111111111111"

	results := make(chan Result, 1)
	if err := c.Begin(context.Background(), usable, func(r Result) { results <- r }); err != nil {
		t.Fatalf("begin: %v", err)
	}
	r := awaitResult(t, results)
	if r.Err != nil || r.Card.Number != "4111111111111111" {
		t.Fatalf("expected immediate success, got %+v", r)
	}
	if risk.callCount() != 0 {
		t.Fatalf("usable card must not trigger a risk fetch")
	}
	if exchanger.callCount() != 0 {
		t.Fatalf("usable card must not trigger an exchange")
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}

func TestExchangeWaitsForBothHalves(t *testing.T) {
	risk := newManualRisk()
	exchanger := &fakeExchanger{pan: "4111111111111111"}
	store := &fakeStore{}
	c := New(store, risk, exchanger)

	results := make(chan Result, 1)
	if err := c.Begin(context.Background(), maskedCard(), func(r Result) { results <- r }); err != nil {
		t.Fatalf("begin: %v", err)
	}
	<-risk.ready

	// User input first: still waiting on the risk half.
	if err := c.SubmitVerification(context.Background(), Verification{Code: "123"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if exchanger.callCount() != 0 {
		t.Fatalf("exchange must wait for the risk signal")
	}

	// Risk arrives second and triggers the transition.
	risk.fire("risk-token", nil)
	r := awaitResult(t, results)
	if r.Err != nil {
		t.Fatalf("exchange failed: %v", r.Err)
	}
	if r.Card.Number != "4111111111111111" {
		t.Fatalf("unmasked number missing from result")
	}

	req := exchanger.lastRequest()
	if req.Verification.Code != "123" || req.RiskToken != "risk-token" {
		t.Fatalf("exchange request incomplete: %+v", req)
	}

	updated := store.updatedRecords()
	if len(updated) != 1 {
		t.Fatalf("store must learn the unmasked card")
	}
	card, ok := updated[0].(record.CreditCard)
	if !ok || card.RequiresUnmask() {
		t.Fatalf("updated card should be usable without re-verification: %+v", updated[0])
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}

func TestSecondFlowRejectedWhileActive(t *testing.T) {
	risk := newManualRisk()
	c := New(&fakeStore{}, risk, &fakeExchanger{})

	results := make(chan Result, 1)
	if err := c.Begin(context.Background(), maskedCard(), func(r Result) { results <- r }); err != nil {
		t.Fatalf("begin: %v", err)
	}
	<-risk.ready

	err := c.Begin(context.Background(), maskedCard(), func(Result) {})
	if !errors.Is(err, ErrFlowActive) {
		t.Fatalf("expected ErrFlowActive, got %v", err)
	}
	if c.State() != StatePromptShown {
		t.Fatalf("first flow must be unaffected")
	}
}

func TestTransientFailureStaysRetryEligible(t *testing.T) {
	risk := newManualRisk()
	exchanger := &fakeExchanger{err: &Failure{Kind: FailureTransient, Msg: "wrong code"}}
	c := New(&fakeStore{}, risk, exchanger)

	results := make(chan Result, 2)
	if err := c.Begin(context.Background(), maskedCard(), func(r Result) { results <- r }); err != nil {
		t.Fatalf("begin: %v", err)
	}
	<-risk.ready
	risk.fire("risk-token", nil)
	if err := c.SubmitVerification(context.Background(), Verification{Code: "000"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	r := awaitResult(t, results)
	if r.Err == nil || !r.Retryable {
		t.Fatalf("transient failure must be retry-eligible: %+v", r)
	}
	if c.State() != StatePromptShown {
		t.Fatalf("flow should await a corrected code, state = %v", c.State())
	}

	// A corrected code reuses the already-fetched risk signal.
	exchanger.set("4111111111111111", nil)
	if err := c.SubmitVerification(context.Background(), Verification{Code: "123"}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	r = awaitResult(t, results)
	if r.Err != nil || r.Card.Number != "4111111111111111" {
		t.Fatalf("retry should succeed: %+v", r)
	}
	if risk.callCount() != 1 {
		t.Fatalf("risk data must not be re-fetched on retry")
	}
}

func TestPermanentFailureTerminates(t *testing.T) {
	risk := newManualRisk()
	exchanger := &fakeExchanger{err: &Failure{Kind: FailurePermanent, Msg: "card blocked"}}
	c := New(&fakeStore{}, risk, exchanger)

	results := make(chan Result, 1)
	c.Begin(context.Background(), maskedCard(), func(r Result) { results <- r })
	<-risk.ready
	risk.fire("risk-token", nil)
	c.SubmitVerification(context.Background(), Verification{Code: "123"})

	r := awaitResult(t, results)
	if r.Err == nil || r.Retryable {
		t.Fatalf("permanent failure must terminate: %+v", r)
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}

func TestRiskFailureTerminates(t *testing.T) {
	risk := newManualRisk()
	c := New(&fakeStore{}, risk, &fakeExchanger{})

	results := make(chan Result, 1)
	c.Begin(context.Background(), maskedCard(), func(r Result) { results <- r })
	<-risk.ready
	risk.fire("", errors.New("offline"))

	r := awaitResult(t, results)
	if r.Err == nil || r.Retryable {
		t.Fatalf("risk failure must terminate: %+v", r)
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}

func TestCancelInvalidatesLateCallbacks(t *testing.T) {
	risk := newManualRisk()
	exchanger := &fakeExchanger{pan: "4111111111111111"}
	c := New(&fakeStore{}, risk, exchanger)

	results := make(chan Result, 2)
	c.Begin(context.Background(), maskedCard(), func(r Result) { results <- r })
	<-risk.ready

	c.Cancel()
	r := awaitResult(t, results)
	if !errors.Is(r.Err, ErrCanceled) {
		t.Fatalf("expected canceled result, got %+v", r)
	}

	// The risk signal arriving after cancellation is a no-op.
	risk.fire("risk-token", nil)
	if exchanger.callCount() != 0 {
		t.Fatalf("late risk delivery must not trigger an exchange")
	}
	if err := c.SubmitVerification(context.Background(), Verification{Code: "123"}); !errors.Is(err, ErrNoInput) {
		t.Fatalf("input after cancel must be rejected, got %v", err)
	}

	select {
	case extra := <-results:
		t.Fatalf("no further results expected, got %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}
