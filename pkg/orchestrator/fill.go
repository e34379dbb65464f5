package orchestrator

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
	"github.com/goliatone/go-autofill/pkg/record"
	"github.com/goliatone/go-autofill/pkg/telemetry"
)

var (
	// ErrNotRetained means the live form could not be resolved or retained,
	// usually because the retention bound was hit.
	ErrNotRetained = errors.New("orchestrator: form not retained")

	// ErrUnmaskRequired means the chosen card's number is still masked; the
	// unmask flow must run before the number can be filled.
	ErrUnmaskRequired = errors.New("orchestrator: card requires unmasking")
)

// Action distinguishes a committed fill from a transient preview.
type Action int

const (
	ActionFill Action = iota
	ActionPreview
)

// Instruction tells the page boundary to write one value into one field.
// The engine never touches the page itself.
type Instruction struct {
	FieldIndex     int
	FieldSignature form.FieldSignature
	Value          string
	Preview        bool

	// Notify asks the UI surface to flag the write to the user: the field
	// was previously empty, was the one directly interacted with, or is a
	// selection control.
	Notify bool
}

// FillOptions carries per-call context for Fill and Preview.
type FillOptions struct {
	// CVCOverride supplies a verification code for the one field kind that
	// is otherwise always skipped.
	CVCOverride string
}

// Fill resolves the live form, scopes the operation, and returns the write
// instructions for the page boundary. When the targeted field's section is
// already partially autofilled only that field is written; otherwise every
// fillable field in the section is. The record store is notified of use.
func (m *Manager) Fill(live *form.FormStructure, fieldIndex int, rec record.Record, opts FillOptions) ([]Instruction, error) {
	return m.fill(ActionFill, live, fieldIndex, rec, opts)
}

// Preview computes the same instructions as Fill without committing any
// state: no autofilled flags, no ring entry, no store notification.
func (m *Manager) Preview(live *form.FormStructure, fieldIndex int, rec record.Record, opts FillOptions) ([]Instruction, error) {
	return m.fill(ActionPreview, live, fieldIndex, rec, opts)
}

func (m *Manager) fill(action Action, live *form.FormStructure, fieldIndex int, rec record.Record, opts FillOptions) ([]Instruction, error) {
	if rec == nil {
		return nil, errors.New("orchestrator: nil record")
	}
	if live == nil || fieldIndex < 0 || fieldIndex >= live.FieldCount() {
		return nil, fmt.Errorf("orchestrator: field index %d out of range", fieldIndex)
	}

	cached, ok := m.Resolve(live)
	if !ok {
		return nil, ErrNotRetained
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	target := cached.FieldIndexBySignature(live.Field(fieldIndex).Signature)
	if target < 0 {
		return nil, fmt.Errorf("orchestrator: field %s not in retained structure", live.Field(fieldIndex).Signature)
	}

	scope := cached.FieldsInSection(cached.SectionOf(target))
	if m.sectionPartiallyFilled(cached, scope) {
		scope = []int{target}
	}

	var out []Instruction
	for _, i := range scope {
		f := cached.Field(i)
		if !f.Active() || !f.Autofillable() {
			continue
		}
		value, err := m.valueFor(rec, f.OverallType(), opts)
		if err != nil {
			return nil, err
		}
		if value == "" {
			continue
		}
		out = append(out, Instruction{
			FieldIndex:     i,
			FieldSignature: f.Signature,
			Value:          value,
			Preview:        action == ActionPreview,
			Notify:         f.Value == "" || i == target || f.Kind.IsSelection(),
		})
		if action == ActionFill {
			f.IsAutofilled = true
		}
	}

	if action == ActionFill && len(out) > 0 {
		m.markAutofilled(cached.Signature())
		m.store.RecordUsed(rec.RecordID())
		telemetry.Emit(m.sink, telemetry.EventFillPerformed, telemetry.Fields{
			"form": cached.Signature().String(), "fields": len(out),
		})
	}
	return out, nil
}

// sectionPartiallyFilled reports whether any field in the scope already
// carries an autofilled value.
func (m *Manager) sectionPartiallyFilled(s *form.FormStructure, scope []int) bool {
	for _, i := range scope {
		if s.Field(i).IsAutofilled {
			return true
		}
	}
	return false
}

// valueFor resolves the record's value for one field type, applying the CVC
// and expired-card rules.
func (m *Manager) valueFor(rec record.Record, t fieldtype.Type, opts FillOptions) (string, error) {
	switch r := rec.(type) {
	case record.Profile:
		return r.ValueFor(t), nil
	case record.CreditCard:
		switch t {
		case fieldtype.CardCVC:
			// Verification codes are never stored; only an explicit
			// override fills them.
			return opts.CVCOverride, nil
		case fieldtype.CardNumber:
			if r.RequiresUnmask() {
				return "", ErrUnmaskRequired
			}
		case fieldtype.CardExpMonth, fieldtype.CardExpYear2, fieldtype.CardExpYear4, fieldtype.CardExpDate:
			if r.IsExpired(m.now()) {
				return "", nil
			}
		}
		return r.ValueFor(t), nil
	default:
		return "", fmt.Errorf("orchestrator: unsupported record kind %d", rec.RecordKind())
	}
}
