// Package unmask coordinates the verification round trip that exchanges a
// masked card for its full number. One short-lived state machine runs per
// flow: risk data and the user's verification input are awaited in
// parallel, the exchange fires when the second of the two arrives, and a
// generation token invalidates late collaborator callbacks after
// cancellation.
package unmask

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-autofill/pkg/record"
	"github.com/goliatone/go-autofill/pkg/telemetry"
)

// State names the coordinator's position in the flow.
type State int

const (
	StateIdle State = iota
	StatePromptShown
	StateExchanging
)

func (s State) String() string {
	switch s {
	case StatePromptShown:
		return "prompt_shown"
	case StateExchanging:
		return "exchanging"
	default:
		return "idle"
	}
}

var (
	// ErrFlowActive rejects a second unmask request while one is
	// outstanding. The first flow is unaffected.
	ErrFlowActive = errors.New("unmask: flow already active")

	// ErrCanceled reports a flow the user dismissed before resolution.
	ErrCanceled = errors.New("unmask: canceled")

	// ErrNoInput rejects verification input outside an active prompt.
	ErrNoInput = errors.New("unmask: no prompt awaiting input")
)

// FailureKind classifies a remote outcome.
type FailureKind int

const (
	// FailureTransient leaves the flow retry-eligible: the prompt stays up
	// and the user may submit a corrected code.
	FailureTransient FailureKind = iota
	// FailurePermanent terminates the flow.
	FailurePermanent
	// FailureNetwork terminates the flow; connectivity problems are not
	// worth re-prompting for.
	FailureNetwork
)

// Failure is the error type exchangers return for remote rejections.
type Failure struct {
	Kind FailureKind
	Msg  string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("unmask: exchange failed (%s)", f.Msg)
}

// Verification is the user's input from the prompt. Updated expiry fields
// are optional corrections for cards stored with a stale date.
type Verification struct {
	Code        string
	NewExpMonth int
	NewExpYear  int
}

// Request is what the exchanger sends to the remote service.
type Request struct {
	Card         record.CreditCard
	Verification Verification
	RiskToken    string
}

// Result delivers a terminal or retry-eligible outcome to the caller.
type Result struct {
	Card      record.CreditCard
	Err       error
	Retryable bool
}

// RiskProvider fetches the risk signal accompanying the exchange. Delivery
// is asynchronous; the coordinator drops late deliveries after cancellation.
type RiskProvider interface {
	FetchRiskData(ctx context.Context, cardID string, deliver func(token string, err error))
}

// Exchanger performs the remote verification exchange and returns the full
// card number. Rejections should be *Failure values so the coordinator can
// tell transient from terminal.
type Exchanger interface {
	Exchange(ctx context.Context, req Request) (string, error)
}

// Option customises the coordinator configuration.
type Option func(*Coordinator)

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithTelemetry attaches a telemetry sink.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(c *Coordinator) { c.sink = sink }
}

// Coordinator runs at most one unmask flow at a time.
type Coordinator struct {
	mu sync.Mutex

	state  State
	flowID uuid.UUID

	card      record.CreditCard
	deliver   func(Result)
	riskToken string
	riskReady bool
	input     *Verification

	store     record.Store
	provider  RiskProvider
	exchanger Exchanger

	log  zerolog.Logger
	sink telemetry.Sink
}

// New constructs a Coordinator around its collaborators.
func New(store record.Store, provider RiskProvider, exchanger Exchanger, options ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		provider:  provider,
		exchanger: exchanger,
		log:       zerolog.Nop(),
		sink:      telemetry.NopSink{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// State reports the coordinator's current position.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Begin starts an unmask flow for the card. A card that is already fully
// usable resolves to success immediately, with no risk fetch and no network
// exchange. Otherwise the prompt state is entered and the risk signal is
// requested in parallel with the user's input; deliver fires once per
// outcome, terminal or retry-eligible.
func (c *Coordinator) Begin(ctx context.Context, card record.CreditCard, deliver func(Result)) error {
	if deliver == nil {
		return errors.New("unmask: nil delivery callback")
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrFlowActive
	}

	if !card.RequiresUnmask() {
		c.mu.Unlock()
		telemetry.Emit(c.sink, telemetry.EventUnmaskResolved, telemetry.Fields{"card": card.ID, "exchange": false})
		deliver(Result{Card: card})
		return nil
	}

	id := uuid.New()
	c.state = StatePromptShown
	c.flowID = id
	c.card = card
	c.deliver = deliver
	c.riskToken = ""
	c.riskReady = false
	c.input = nil
	c.mu.Unlock()

	telemetry.Emit(c.sink, telemetry.EventUnmaskStarted, telemetry.Fields{"card": card.ID})
	c.log.Debug().Str("card", card.ID).Msg("unmask prompt shown")

	// The risk fetch runs in parallel with the prompt; whichever half
	// arrives second triggers the exchange.
	go c.provider.FetchRiskData(ctx, card.ID, func(token string, err error) {
		c.onRiskData(ctx, id, token, err)
	})
	return nil
}

// SubmitVerification hands over the user's input from the prompt.
func (c *Coordinator) SubmitVerification(ctx context.Context, v Verification) error {
	c.mu.Lock()
	if c.state != StatePromptShown {
		c.mu.Unlock()
		return ErrNoInput
	}
	c.input = &v
	c.maybeExchangeLocked(ctx)
	c.mu.Unlock()
	return nil
}

// Cancel dismisses the flow. Any in-flight collaborator callback becomes a
// no-op; the caller receives a canceled result if a flow was active.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	deliver := c.deliver
	cardID := c.card.ID
	c.resetLocked()
	c.mu.Unlock()

	telemetry.Emit(c.sink, telemetry.EventUnmaskFailed, telemetry.Fields{"card": cardID, "reason": "canceled"})
	deliver(Result{Err: ErrCanceled})
}

func (c *Coordinator) onRiskData(ctx context.Context, id uuid.UUID, token string, err error) {
	c.mu.Lock()
	if c.flowID != id || c.state != StatePromptShown {
		c.mu.Unlock()
		return
	}
	if err != nil {
		deliver := c.deliver
		cardID := c.card.ID
		c.resetLocked()
		c.mu.Unlock()
		telemetry.Emit(c.sink, telemetry.EventUnmaskFailed, telemetry.Fields{"card": cardID, "reason": "risk"})
		deliver(Result{Err: fmt.Errorf("unmask: risk data: %w", err)})
		return
	}
	c.riskToken = token
	c.riskReady = true
	c.maybeExchangeLocked(ctx)
	c.mu.Unlock()
}

// maybeExchangeLocked fires the exchange once both the risk signal and the
// user's input are present.
func (c *Coordinator) maybeExchangeLocked(ctx context.Context) {
	if !c.riskReady || c.input == nil {
		return
	}
	c.state = StateExchanging
	req := Request{Card: c.card, Verification: *c.input, RiskToken: c.riskToken}
	id := c.flowID

	go func() {
		pan, err := c.exchanger.Exchange(ctx, req)
		c.onOutcome(id, pan, err)
	}()
}

func (c *Coordinator) onOutcome(id uuid.UUID, pan string, err error) {
	c.mu.Lock()
	if c.flowID != id || c.state != StateExchanging {
		c.mu.Unlock()
		return
	}
	deliver := c.deliver
	card := c.card

	if err == nil {
		card.Number = pan
		c.resetLocked()
		c.mu.Unlock()

		// The unmasked number sticks for the session so a second use needs
		// no re-verification.
		c.store.RecordUpdated(card)
		telemetry.Emit(c.sink, telemetry.EventUnmaskResolved, telemetry.Fields{"card": card.ID, "exchange": true})
		deliver(Result{Card: card})
		return
	}

	var failure *Failure
	if errors.As(err, &failure) && failure.Kind == FailureTransient {
		// Retry-eligible: back to the prompt, awaiting a corrected code.
		c.state = StatePromptShown
		c.input = nil
		c.mu.Unlock()
		telemetry.Emit(c.sink, telemetry.EventUnmaskFailed, telemetry.Fields{"card": card.ID, "reason": "transient"})
		deliver(Result{Err: err, Retryable: true})
		return
	}

	c.resetLocked()
	c.mu.Unlock()
	telemetry.Emit(c.sink, telemetry.EventUnmaskFailed, telemetry.Fields{"card": card.ID, "reason": "terminal"})
	deliver(Result{Err: err})
}

func (c *Coordinator) resetLocked() {
	c.state = StateIdle
	c.flowID = uuid.New()
	c.card = record.CreditCard{}
	c.deliver = nil
	c.riskToken = ""
	c.riskReady = false
	c.input = nil
}
