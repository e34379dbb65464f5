// Package form models observed web forms: immutable field snapshots, the
// typed structures built from them, and the stable signatures that join a
// classification request to its asynchronous response.
package form

import "github.com/goliatone/go-autofill/pkg/fieldtype"

// ControlKind identifies the native widget backing an observed field.
type ControlKind string

const (
	ControlText      ControlKind = "text"
	ControlPassword  ControlKind = "password"
	ControlSearch    ControlKind = "search"
	ControlEmail     ControlKind = "email"
	ControlNumber    ControlKind = "number"
	ControlTelephone ControlKind = "tel"
	ControlSelect    ControlKind = "select-one"
	ControlTextarea  ControlKind = "textarea"
	ControlCheckbox  ControlKind = "checkbox"
	ControlRadio     ControlKind = "radio"
	ControlMonth     ControlKind = "month"
	ControlHidden    ControlKind = "hidden"
)

// IsCheckable reports whether the widget carries checked state rather than a
// text value.
func (k ControlKind) IsCheckable() bool {
	return k == ControlCheckbox || k == ControlRadio
}

// IsSelection reports whether the widget picks from a fixed option list.
// Selection controls are never "empty" in the usual sense, which matters for
// fill notifications.
func (k ControlKind) IsSelection() bool {
	return k == ControlSelect || k.IsCheckable()
}

// IsTextual reports whether the widget accepts free text input.
func (k ControlKind) IsTextual() bool {
	switch k {
	case ControlText, ControlPassword, ControlSearch, ControlEmail, ControlNumber, ControlTelephone, ControlTextarea:
		return true
	}
	return false
}

// SelectOption is one entry of a select control's option list.
type SelectOption struct {
	Value string
	Text  string
}

// FormField is an immutable snapshot of one observed input, select or
// textarea. Re-observation supersedes the snapshot; it is never mutated.
type FormField struct {
	Name         string
	Label        string
	Kind         ControlKind
	Value        string
	Autocomplete string
	MaxLength    int
	Focusable    bool
	Checked      bool
	Options      []SelectOption
}

// AutofillField wraps an observed field with everything the engine learns
// about it: its signature, the competing type opinions, its section
// assignment, and fill bookkeeping. Type fields are mutated in place as new
// information arrives.
type AutofillField struct {
	FormField

	Signature FieldSignature

	// ParseableName is the field name with any shared framework prefix
	// removed. Heuristics match against it; signatures never do.
	ParseableName string

	HeuristicType fieldtype.Type
	ServerType    fieldtype.Type

	// AuthorType is the type declared through the autocomplete attribute.
	// Zero (Unknown) when the attribute was absent or invalid.
	AuthorType  fieldtype.Type
	AuthorMode  SectionMode
	Section     string

	// PossibleTypes is computed only at submission time by matching the
	// observed value against stored records. It feeds uploads, never fills.
	PossibleTypes []fieldtype.Type

	IsAutofilled         bool
	PreviouslyAutofilled bool
}

// SectionMode is the shipping/billing prefix parsed from an autocomplete
// attribute.
type SectionMode string

const (
	SectionModeNone     SectionMode = ""
	SectionModeShipping SectionMode = "shipping"
	SectionModeBilling  SectionMode = "billing"
)

// OverallType fuses the three type opinions with a fixed priority: an
// author-declared type always wins, a crowdsourced type beats the local
// heuristic, and the heuristic is the floor.
func (f *AutofillField) OverallType() fieldtype.Type {
	if f.AuthorType.Known() {
		return f.AuthorType
	}
	if f.ServerType.Known() {
		return f.ServerType
	}
	return f.HeuristicType
}

// Autofillable reports whether the engine could ever write into this field.
func (f *AutofillField) Autofillable() bool {
	return fieldtype.Fillable(f.OverallType())
}

// Active reports whether the field participates in prediction: focusable and
// not an unchecked checkable.
func (f *AutofillField) Active() bool {
	if !f.Focusable {
		return false
	}
	if f.Kind.IsCheckable() && !f.Checked {
		return false
	}
	return f.Kind != ControlHidden
}
