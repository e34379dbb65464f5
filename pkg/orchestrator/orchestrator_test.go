package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-autofill/internal/wire"
	"github.com/goliatone/go-autofill/pkg/classify"
	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
	"github.com/goliatone/go-autofill/pkg/predict"
	"github.com/goliatone/go-autofill/pkg/record"
)

type fakeStore struct {
	mu       sync.Mutex
	profiles []record.Profile
	cards    []record.CreditCard
	used     []string
	updated  []record.Record
}

func (s *fakeStore) Profiles(context.Context) ([]record.Profile, error) {
	return s.profiles, nil
}

func (s *fakeStore) CreditCards(context.Context) ([]record.CreditCard, error) {
	return s.cards, nil
}

func (s *fakeStore) RecordUsed(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = append(s.used, id)
}

func (s *fakeStore) RecordUpdated(r record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, r)
}

func (s *fakeStore) usedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.used...)
}

type fakeHistory struct {
	mu   sync.Mutex
	sigs []form.FormSignature
}

func (h *fakeHistory) RecordSubmission(_ form.Metadata, sig form.FormSignature) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sigs = append(h.sigs, sig)
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sigs)
}

func testForm(name string, fields ...form.FormField) *form.FormStructure {
	meta := form.Metadata{Host: "shop.example.com", Name: name, IsFormTag: true}
	return form.Construct(meta, fields)
}

func textField(name string) form.FormField {
	return form.FormField{Name: name, Kind: form.ControlText, Focusable: true}
}

func hintedField(name, autocomplete string) form.FormField {
	f := textField(name)
	f.Autocomplete = autocomplete
	return f
}

func newTestManager(t *testing.T, baseURL string, store record.Store, options ...Option) *Manager {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}
	return New(classify.New(), predict.New(baseURL), store, options...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}

func TestObserveAppliesServerPredictions(t *testing.T) {
	payload := wire.EncodeQueryResponse(wire.QueryResponse{
		Predictions: []wire.Prediction{
			{Type: int32(fieldtype.EmailAddress)},
			{Type: int32(fieldtype.NameFirst)},
			{Type: int32(fieldtype.NameLast)},
		},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)
	s := testForm("checkout", textField("field_a"), textField("field_b"), textField("field_c"))
	m.Observe(context.Background(), []*form.FormStructure{s})

	if m.RetainedCount() != 1 {
		t.Fatalf("form should be retained, count = %d", m.RetainedCount())
	}
	waitFor(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return s.Field(0).ServerType == fieldtype.EmailAddress
	}, "server prediction applied")

	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Field(1).ServerType != fieldtype.NameFirst || s.Field(2).ServerType != fieldtype.NameLast {
		t.Fatalf("predictions misaligned: %v %v", s.Field(1).ServerType, s.Field(2).ServerType)
	}
}

func TestObserveSkipsIneligibleForms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("ineligible forms must not be queried")
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)
	small := testForm("search", textField("q"))
	m.Observe(context.Background(), []*form.FormStructure{small})
	if m.RetainedCount() != 0 {
		t.Fatalf("a lone unhinted field is not worth retaining")
	}

	// The same size rescued by an author hint is retained but, being fully
	// author-typed and password-free, still not queried.
	hinted := testForm("newsletter", hintedField("em", "email"))
	m.Observe(context.Background(), []*form.FormStructure{hinted})
	if m.RetainedCount() != 1 {
		t.Fatalf("author-hinted form should be retained")
	}
	time.Sleep(20 * time.Millisecond)
}

func TestResolvePrefersMatchingFieldCount(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:0", nil)

	base := []form.FormField{textField("name"), textField("email"), textField("phone")}
	small := testForm("contact", base...)

	// An unchecked checkbox is stripped from the signature but not the
	// field list, so both instances share a signature with different counts.
	extra := append(append([]form.FormField(nil), base...),
		form.FormField{Name: "subscribe", Kind: form.ControlCheckbox, Focusable: true})
	large := testForm("contact", extra...)
	if small.Signature() != large.Signature() {
		t.Fatalf("test forms must share a signature")
	}

	m.Observe(context.Background(), []*form.FormStructure{small, large})

	live := testForm("contact", extra...)
	got, ok := m.Resolve(live)
	if !ok || got != large {
		t.Fatalf("expected the field-count match to win")
	}

	liveSmall := testForm("contact", base...)
	got, ok = m.Resolve(liveSmall)
	if !ok || got != small {
		t.Fatalf("expected the three-field instance for a three-field live form")
	}
}

func TestResolveRetainsFreshEligibleForm(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:0", nil)
	live := testForm("signup", textField("name"), textField("email"), textField("phone"))

	got, ok := m.Resolve(live)
	if !ok || got != live {
		t.Fatalf("eligible live form should be classified and retained")
	}
	if m.RetainedCount() != 1 {
		t.Fatalf("retained count = %d", m.RetainedCount())
	}
	if got.Field(0).Section == "" {
		t.Fatalf("fresh retention must classify the form")
	}
}

func TestRetentionBoundReportsFailureWithoutEvicting(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:0", nil, WithMaxRetainedForms(1))

	first := testForm("one", textField("a"), textField("b"), textField("c"))
	if _, ok := m.Resolve(first); !ok {
		t.Fatalf("first form should be retained")
	}

	second := testForm("two", textField("x"), textField("y"), textField("z"))
	if _, ok := m.Resolve(second); ok {
		t.Fatalf("retention is full; the second form must report failure")
	}

	// The original stays resolvable; nothing was evicted.
	if got, ok := m.Resolve(testForm("one", textField("a"), textField("b"), textField("c"))); !ok || got != first {
		t.Fatalf("existing structure must survive retention pressure")
	}
}

func TestResetClearsStateAndRing(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:0", nil)
	s := testForm("checkout", textField("a"), textField("b"), textField("c"))
	if _, ok := m.Resolve(s); !ok {
		t.Fatalf("retain failed")
	}
	m.mu.Lock()
	m.markAutofilled(s.Signature())
	m.mu.Unlock()

	m.Reset()
	if m.RetainedCount() != 0 {
		t.Fatalf("reset must clear retained structures")
	}
	if m.WasAutofilled(s.Signature()) {
		t.Fatalf("reset must clear the autofilled ring")
	}
}
