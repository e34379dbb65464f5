package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
	"github.com/goliatone/go-autofill/pkg/predict"
	"github.com/goliatone/go-autofill/pkg/record"
	"github.com/goliatone/go-autofill/pkg/telemetry"
)

// SubmissionOptions carries the caller-side context of a submit event.
type SubmissionOptions struct {
	ObservedSubmission bool
	LoginSignature     form.FormSignature
}

// submittedField is the immutable per-field snapshot the worker pool
// operates on. It is captured on the interactive goroutine before any
// matching work is scheduled, so concurrent record mutation cannot corrupt
// an in-flight computation.
type submittedField struct {
	index     int
	signature form.FieldSignature
	kind      form.ControlKind
	value     string
	overall   fieldtype.Type
	possible  []fieldtype.Type
}

type submissionTask struct {
	structure *form.FormStructure
	fields    []submittedField
	profiles  []record.Profile
	cards     []record.CreditCard
	opts      SubmissionOptions
	filled    bool
}

// HandleSubmission processes a pre-submit or submit event. The event is
// always forwarded to the local history collaborator; it only feeds the
// crowdsourcing pipeline when a retained structure matches the submitted
// form. The heavy value-matching runs on the worker pool and the result is
// uploaded when the form is eligible. The return value says whether matching
// work was scheduled.
func (m *Manager) HandleSubmission(ctx context.Context, live *form.FormStructure, opts SubmissionOptions) bool {
	if live == nil {
		return false
	}
	m.history.RecordSubmission(live.Metadata, live.Signature())

	m.mu.Lock()
	cached, ok := m.lookupLocked(live)
	if !ok {
		m.mu.Unlock()
		m.log.Debug().Str("form", live.Signature().String()).Msg("submission for unknown form dropped")
		return false
	}

	task := &submissionTask{
		structure: cached,
		opts:      opts,
		filled:    m.wasAutofilledLocked(cached.Signature()),
	}
	for i := range cached.Fields {
		f := cached.Field(i)
		value := f.Value
		// The user typed into the live form; prefer its value when the
		// field still exists there.
		if j := live.FieldIndexBySignature(f.Signature); j >= 0 {
			value = live.Field(j).Value
		}
		task.fields = append(task.fields, submittedField{
			index:     i,
			signature: f.Signature,
			kind:      f.Kind,
			value:     value,
			overall:   f.OverallType(),
		})
	}
	m.mu.Unlock()

	// Record snapshots are taken on the interactive goroutine too. A store
	// failure degrades to empty candidate sets, never an error.
	profiles, err := m.store.Profiles(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("profile snapshot failed")
	}
	cards, err := m.store.CreditCards(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("card snapshot failed")
	}
	task.profiles = profiles
	task.cards = cards

	m.inflight.Add(1)
	go m.runSubmission(ctx, task)
	return true
}

// runSubmission executes one matching task on the worker pool and delivers
// the result back through the manager's lock.
func (m *Manager) runSubmission(ctx context.Context, task *submissionTask) {
	defer m.inflight.Done()

	if err := m.workers.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.workers.Release(1)

	g := new(errgroup.Group)
	g.SetLimit(DefaultWorkerLimit)
	for i := range task.fields {
		f := &task.fields[i]
		if f.kind.IsCheckable() {
			continue
		}
		g.Go(func() error {
			f.possible = record.PossibleTypes(f.value, task.profiles, task.cards)
			return nil
		})
	}
	g.Wait()

	for i := range task.fields {
		task.fields[i].possible = m.disambiguate(task.fields, i)
	}

	m.mu.Lock()
	for _, f := range task.fields {
		if f.index < task.structure.FieldCount() {
			task.structure.Field(f.index).PossibleTypes = f.possible
		}
	}
	m.mu.Unlock()

	telemetry.Emit(m.sink, telemetry.EventSubmissionMatched, telemetry.Fields{
		"form": task.structure.Signature().String(), "fields": len(task.fields),
	})

	if !m.crowdsource {
		return
	}
	m.client.Upload(ctx, task.structure, predict.UploadOptions{
		WasAutofilled:      task.filled,
		AvailableTypes:     record.AvailableTypes(task.profiles, task.cards),
		LoginSignature:     task.opts.LoginSignature,
		ObservedSubmission: task.opts.ObservedSubmission,
	}, nil)
}

// disambiguate applies the fixed, ordered rules for a field left with
// exactly two candidate types. Anything else passes through untouched, and
// an unresolvable case keeps both candidates rather than guessing.
func (m *Manager) disambiguate(fields []submittedField, i int) []fieldtype.Type {
	possible := fields[i].possible
	if len(possible) != 2 {
		return possible
	}

	resolved := possible
	switch {
	case hasPair(possible, fieldtype.AddressLine1, fieldtype.StreetAddress):
		// Line one wins only when the next field is empty and predicted to
		// be line two; otherwise the value was the whole address.
		if next := i + 1; next < len(fields) &&
			fields[next].value == "" && fields[next].overall == fieldtype.AddressLine2 {
			resolved = []fieldtype.Type{fieldtype.AddressLine1}
		} else {
			resolved = []fieldtype.Type{fieldtype.StreetAddress}
		}

	case hasPair(possible, fieldtype.PhoneLocalNumber, fieldtype.PhoneWholeNumber):
		// The country code is handled elsewhere; local always wins.
		resolved = []fieldtype.Type{fieldtype.PhoneLocalNumber}

	case namePair(possible):
		resolved = m.resolveNamePair(fields, i, possible)
	}

	if len(resolved) != len(possible) {
		telemetry.Emit(m.sink, telemetry.EventDisambiguationApplied, telemetry.Fields{
			"field": fields[i].signature.String(), "type": resolved[0].String(),
		})
	}
	return resolved
}

// resolveNamePair settles a personal-name vs cardholder-name ambiguity by
// inheriting the group of the nearest non-name typed neighbor on either
// side. Disagreeing neighbors keep both candidates.
func (m *Manager) resolveNamePair(fields []submittedField, i int, possible []fieldtype.Type) []fieldtype.Type {
	leftPayment, leftFound := nearestNonNameGroup(fields, i, -1)
	rightPayment, rightFound := nearestNonNameGroup(fields, i, +1)

	var payment bool
	switch {
	case leftFound && rightFound:
		if leftPayment != rightPayment {
			return possible
		}
		payment = leftPayment
	case leftFound:
		payment = leftPayment
	case rightFound:
		payment = rightPayment
	default:
		return possible
	}

	for _, t := range possible {
		if fieldtype.IsPayment(t) == payment {
			return []fieldtype.Type{t}
		}
	}
	return possible
}

// nearestNonNameGroup walks outward from i in the given direction and
// reports whether the first field with a known non-name type is a payment
// field.
func nearestNonNameGroup(fields []submittedField, i, dir int) (payment, found bool) {
	for j := i + dir; j >= 0 && j < len(fields); j += dir {
		t := fields[j].overall
		if !t.Known() || fieldtype.IsName(t) {
			continue
		}
		return fieldtype.IsPayment(t), true
	}
	return false, false
}

func hasPair(possible []fieldtype.Type, a, b fieldtype.Type) bool {
	return (possible[0] == a && possible[1] == b) || (possible[0] == b && possible[1] == a)
}

// namePair reports whether both candidates are name variants, one personal
// and one cardholder, at the same granularity.
func namePair(possible []fieldtype.Type) bool {
	pairs := [][2]fieldtype.Type{
		{fieldtype.NameFull, fieldtype.CardNameFull},
		{fieldtype.NameFirst, fieldtype.CardNameFirst},
		{fieldtype.NameLast, fieldtype.CardNameLast},
	}
	for _, p := range pairs {
		if hasPair(possible, p[0], p[1]) {
			return true
		}
	}
	return false
}
