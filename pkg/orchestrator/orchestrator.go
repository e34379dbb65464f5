// Package orchestrator is the stateful hub of the engine. It owns every
// FormStructure observed during a session, mediates between live page state
// and retained structures, and drives fill, preview and submission
// workflows. All public methods are meant to be called from one interactive
// goroutine; the worker pool only ever sees immutable snapshots.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/goliatone/go-autofill/pkg/classify"
	"github.com/goliatone/go-autofill/pkg/form"
	"github.com/goliatone/go-autofill/pkg/predict"
	"github.com/goliatone/go-autofill/pkg/record"
	"github.com/goliatone/go-autofill/pkg/telemetry"
)

const (
	// DefaultMaxRetainedForms bounds the retained-structure map. Beyond it
	// new forms are simply not retained and the caller is told so; existing
	// structures are never evicted mid-session.
	DefaultMaxRetainedForms = 100

	// DefaultWorkerLimit bounds concurrent submission-matching tasks.
	DefaultWorkerLimit = 4

	// autofilledRingSize is how many recently autofilled form signatures are
	// remembered for upload bookkeeping.
	autofilledRingSize = 10
)

// History is the best-effort local form-history collaborator. Submission
// events are forwarded to it even when the form is unknown to the engine.
type History interface {
	RecordSubmission(meta form.Metadata, sig form.FormSignature)
}

// NopHistory discards every submission event.
type NopHistory struct{}

func (NopHistory) RecordSubmission(form.Metadata, form.FormSignature) {}

// Option customises the manager configuration.
type Option func(*Manager)

// WithMaxRetainedForms overrides the retained-structure bound.
func WithMaxRetainedForms(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxRetained = n
		}
	}
}

// WithWorkerLimit bounds concurrent submission-matching tasks.
func WithWorkerLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithCrowdsourcing gates network queries and uploads. Classification and
// filling keep working from local heuristics when disabled.
func WithCrowdsourcing(enabled bool) Option {
	return func(m *Manager) { m.crowdsource = enabled }
}

// WithHistory attaches the local form-history collaborator.
func WithHistory(h History) Option {
	return func(m *Manager) {
		if h != nil {
			m.history = h
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithTelemetry attaches a telemetry sink.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithClock injects the time source used for card-expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the session's retained form structures and every
// user-initiated operation over them.
type Manager struct {
	mu sync.Mutex

	classifier *classify.Classifier
	client     *predict.Client
	store      record.Store
	history    History

	retained      map[form.FormSignature][]*form.FormStructure
	retainedCount int
	maxRetained   int

	ring    [autofilledRingSize]form.FormSignature
	ringPos int

	workers     *semaphore.Weighted
	inflight    sync.WaitGroup
	crowdsource bool

	now  func() time.Time
	log  zerolog.Logger
	sink telemetry.Sink
}

// New constructs a Manager around its three mandatory collaborators.
func New(classifier *classify.Classifier, client *predict.Client, store record.Store, options ...Option) *Manager {
	m := &Manager{
		classifier:  classifier,
		client:      client,
		store:       store,
		history:     NopHistory{},
		retained:    make(map[form.FormSignature][]*form.FormStructure),
		maxRetained: DefaultMaxRetainedForms,
		crowdsource: true,
		workers:     semaphore.NewWeighted(DefaultWorkerLimit),
		now:         time.Now,
		log:         zerolog.Nop(),
		sink:        telemetry.NopSink{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(m)
	}
	return m
}

// Observe classifies newly observed forms, copies forward any cached field
// metadata, retains the eligible ones, and batches a crowdsourced query for
// those worth querying. Forms below the query threshold are still retained
// and type-annotated locally.
func (m *Manager) Observe(ctx context.Context, forms []*form.FormStructure) {
	var queryable []*form.FormStructure

	m.mu.Lock()
	for _, s := range forms {
		if s == nil {
			continue
		}
		// Hints must be parsed before eligibility is judged: an author hint
		// rescues forms below the size bound.
		m.classifier.Classify(s)
		if !s.ShouldBeParsed() {
			continue
		}
		if prev, ok := m.lookupLocked(s); ok {
			s.RetrieveCachedMetadata(prev)
		}
		if !m.retainLocked(s) {
			continue
		}
		if s.ShouldBeQueried() {
			queryable = append(queryable, s)
		}
	}
	m.mu.Unlock()

	telemetry.Emit(m.sink, telemetry.EventFormsObserved, telemetry.Fields{
		"observed": len(forms), "queryable": len(queryable),
	})
	if len(queryable) == 0 || !m.crowdsource {
		return
	}

	m.client.Query(ctx, queryable, func(r predict.QueryResult) {
		if r.Err != nil {
			// Query failures are invisible: local heuristic types stand.
			m.log.Debug().Err(r.Err).Msg("crowdsourced query failed")
			return
		}
		m.mu.Lock()
		predict.ApplyToForms(queryable, r.Predictions)
		m.mu.Unlock()
	})
}

// Resolve finds the most recent retained structure matching the live form,
// preferring an instance whose field count matches when several coexist. If
// none is retained and the live form is eligible, it is classified and
// retained fresh. A false return means retention is full and fill or preview
// cannot proceed this round.
func (m *Manager) Resolve(live *form.FormStructure) (*form.FormStructure, bool) {
	if live == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.lookupLocked(live); ok {
		return cached, true
	}
	m.classifier.Classify(live)
	if !live.ShouldBeParsed() {
		return nil, false
	}
	if !m.retainLocked(live) {
		return nil, false
	}
	return live, true
}

// lookupLocked returns the best retained match for the live form: the most
// recent instance with an equal field count, else the most recent overall.
func (m *Manager) lookupLocked(live *form.FormStructure) (*form.FormStructure, bool) {
	candidates := m.retained[live.Signature()]
	if len(candidates) == 0 {
		return nil, false
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].FieldCount() == live.FieldCount() {
			return candidates[i], true
		}
	}
	return candidates[len(candidates)-1], true
}

// retainLocked appends the structure to the retained map. Existing
// structures are never evicted, even when superseded, so in-flight network
// responses can always rejoin their request.
func (m *Manager) retainLocked(s *form.FormStructure) bool {
	for _, existing := range m.retained[s.Signature()] {
		if existing == s {
			return true
		}
	}
	if m.retainedCount >= m.maxRetained {
		telemetry.Emit(m.sink, telemetry.EventFormRetentionFull, telemetry.Fields{
			"form": s.Signature().String(), "retained": m.retainedCount,
		})
		m.log.Debug().Str("form", s.Signature().String()).Msg("form retention full")
		return false
	}
	m.retained[s.Signature()] = append(m.retained[s.Signature()], s)
	m.retainedCount++
	return true
}

// RetainedCount reports how many structures are currently retained.
func (m *Manager) RetainedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retainedCount
}

// markAutofilled remembers the form signature in the bounded ring.
func (m *Manager) markAutofilled(sig form.FormSignature) {
	m.ring[m.ringPos%autofilledRingSize] = sig
	m.ringPos++
}

// WasAutofilled reports whether the form was autofilled recently enough to
// still be in the ring.
func (m *Manager) WasAutofilled(sig form.FormSignature) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wasAutofilledLocked(sig)
}

func (m *Manager) wasAutofilledLocked(sig form.FormSignature) bool {
	if sig == 0 {
		return false
	}
	for _, s := range m.ring {
		if s == sig {
			return true
		}
	}
	return false
}

// Reset clears session state on navigation. Pending submission tasks are
// drained first so their upload is forced through its fire-and-forget call
// rather than silently lost; outstanding network retries are abandoned
// because their target state no longer exists.
func (m *Manager) Reset() {
	m.inflight.Wait()
	m.client.CancelPending()

	m.mu.Lock()
	m.retained = make(map[form.FormSignature][]*form.FormStructure)
	m.retainedCount = 0
	m.ring = [autofilledRingSize]form.FormSignature{}
	m.ringPos = 0
	m.mu.Unlock()
}
