package form

import (
	"net/url"
	"strings"
)

const (
	// MinFillableFields is the smallest field count worth classifying.
	// Anything below it is usually a search box or a newsletter signup.
	MinFillableFields = 3

	// MaxParseableFields bounds implausibly large forms. Beyond it the form
	// is flagged malformed and excluded from any network request.
	MaxParseableFields = 250

	// commonPrefixMinFields and commonPrefixMinLength gate the detection of
	// framework name prefixes such as "ctl00$ContentPlaceHolder1$".
	commonPrefixMinFields = 3
	commonPrefixMinLength = 10
)

// Metadata locates a form on its page.
type Metadata struct {
	// Host is the origin host the form targets, the first signature input.
	Host string
	// Name is the author-assigned form name or id.
	Name string
	// SourceURL is the page the form was observed on.
	SourceURL string
	// TargetURL is the submission target.
	TargetURL string
	// IsFormTag distinguishes a genuine <form> from a bare collection of
	// unrelated inputs gathered off a page.
	IsFormTag bool
}

// FormStructure is the engine's working representation of one observed form.
// Fields are owned as a contiguous slice; all internal cross-references are
// indices into it. A structure is created on first observation, mutated in
// place as type information arrives, and evicted only on session end or
// capacity pressure.
type FormStructure struct {
	Metadata Metadata

	Fields []AutofillField

	signature FormSignature

	// HasAuthorTypes and HasAuthorSections flip when the classifier parses a
	// valid autocomplete attribute; they gate heuristics and crowdsourcing.
	HasAuthorTypes    bool
	HasAuthorSections bool

	// Malformed marks a form with zero or implausibly many fields. Malformed
	// forms never reach the network but remain usable for local heuristics.
	Malformed bool
}

// Construct builds a FormStructure from raw observed fields. Fields whose
// native widget is checkable-but-unchecked are kept in the field list but
// stripped from the signature inputs, since they are noise for prediction.
// A long literal prefix shared by at least three field names is recorded as
// each field's parseable name without touching the original.
func Construct(meta Metadata, fields []FormField) *FormStructure {
	s := &FormStructure{Metadata: meta}
	s.Malformed = len(fields) == 0 || len(fields) > MaxParseableFields

	s.Fields = make([]AutofillField, 0, len(fields))
	var retained []string
	for _, f := range fields {
		af := AutofillField{
			FormField:     f,
			Signature:     ComputeFieldSignature(f.Name, f.Kind),
			ParseableName: f.Name,
		}
		s.Fields = append(s.Fields, af)
		if !(f.Kind.IsCheckable() && !f.Checked) {
			retained = append(retained, f.Name)
		}
	}
	s.signature = ComputeFormSignature(meta.Host, meta.Name, retained)
	s.stripCommonPrefix()
	return s
}

// stripCommonPrefix records de-prefixed parseable names when enough fields
// share a long literal prefix. Signatures always use the original name.
func (s *FormStructure) stripCommonPrefix() {
	var named []int
	for i := range s.Fields {
		if s.Fields[i].Name != "" {
			named = append(named, i)
		}
	}
	if len(named) < commonPrefixMinFields {
		return
	}
	prefix := s.Fields[named[0]].Name
	for _, i := range named[1:] {
		prefix = commonPrefix(prefix, s.Fields[i].Name)
		if len(prefix) < commonPrefixMinLength {
			return
		}
	}
	for _, i := range named {
		stripped := s.Fields[i].Name[len(prefix):]
		if stripped != "" {
			s.Fields[i].ParseableName = stripped
		}
	}
}

func commonPrefix(a, b string) string {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	i := 0
	for i < max && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// Signature returns the form's stable 64-bit signature.
func (s *FormStructure) Signature() FormSignature { return s.signature }

// Field returns the field at index i for in-place mutation.
func (s *FormStructure) Field(i int) *AutofillField { return &s.Fields[i] }

// FieldCount returns the total observed field count, unchecked checkables
// included.
func (s *FormStructure) FieldCount() int { return len(s.Fields) }

// FieldIndexBySignature finds the first field with the given signature, or
// -1 when absent.
func (s *FormStructure) FieldIndexBySignature(sig FieldSignature) int {
	for i := range s.Fields {
		if s.Fields[i].Signature == sig {
			return i
		}
	}
	return -1
}

// ActiveCount counts fields that participate in prediction.
func (s *FormStructure) ActiveCount() int {
	n := 0
	for i := range s.Fields {
		if s.Fields[i].Active() {
			n++
		}
	}
	return n
}

// AutofillableCount counts fields the engine could fill.
func (s *FormStructure) AutofillableCount() int {
	n := 0
	for i := range s.Fields {
		if s.Fields[i].Active() && s.Fields[i].Autofillable() {
			n++
		}
	}
	return n
}

// HasPasswordField reports whether any field is a password control.
func (s *FormStructure) HasPasswordField() bool {
	for i := range s.Fields {
		if s.Fields[i].Kind == ControlPassword {
			return true
		}
	}
	return false
}

// AllFieldsArePasswords reports whether every active field is a password
// control. Login and change-password forms get a relaxed size bound.
func (s *FormStructure) AllFieldsArePasswords() bool {
	active := 0
	for i := range s.Fields {
		if !s.Fields[i].Active() {
			continue
		}
		active++
		if s.Fields[i].Kind != ControlPassword {
			return false
		}
	}
	return active > 0
}

// ShouldBeParsed reports whether the form is eligible for autofill
// consideration at all: enough active fields (bound relaxed for all-password
// forms), or an author hint present, and not a generic site search.
func (s *FormStructure) ShouldBeParsed() bool {
	if s.Malformed {
		return false
	}
	if s.looksLikeSearch() {
		return false
	}
	if s.HasAuthorTypes {
		return true
	}
	active := s.ActiveCount()
	if s.AllFieldsArePasswords() {
		return active >= 1
	}
	return active >= MinFillableFields
}

// ShouldBeQueried reports whether the form is eligible for a crowdsourced
// query. Forms whose author fully specified types and which carry no
// password field are deliberately not crowdsourced.
func (s *FormStructure) ShouldBeQueried() bool {
	if !s.ShouldBeParsed() {
		return false
	}
	hasPassword := s.HasPasswordField()
	if s.HasAuthorTypes && !hasPassword {
		return false
	}
	return hasPassword || s.ActiveCount() >= MinFillableFields
}

// ShouldBeUploaded reports whether submission votes for this form are worth
// sending. The rule matches the query rule: author-typed, password-free
// forms already told the service everything it would learn.
func (s *FormStructure) ShouldBeUploaded() bool {
	return s.ShouldBeQueried()
}

// looksLikeSearch flags forms whose submission target is a generic site
// search endpoint.
func (s *FormStructure) looksLikeSearch() bool {
	if s.Metadata.TargetURL == "" {
		return false
	}
	u, err := url.Parse(s.Metadata.TargetURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.Contains(path, "search") && !s.HasAuthorTypes
}

// RetrieveCachedMetadata copies forward the field metadata learned on a
// previous observation of the same form: server types and autofill history.
// Fields are matched by signature, so dynamically inserted fields simply
// keep their defaults.
func (s *FormStructure) RetrieveCachedMetadata(cached *FormStructure) {
	if cached == nil {
		return
	}
	for i := range s.Fields {
		j := cached.FieldIndexBySignature(s.Fields[i].Signature)
		if j < 0 {
			continue
		}
		prev := cached.Field(j)
		if prev.ServerType.Known() && !s.Fields[i].ServerType.Known() {
			s.Fields[i].ServerType = prev.ServerType
		}
		if prev.IsAutofilled || prev.PreviouslyAutofilled {
			s.Fields[i].PreviouslyAutofilled = true
		}
	}
}

// ActiveFieldSignatures returns signatures of active fields in order; the
// prediction request is positionally aligned to this sequence.
func (s *FormStructure) ActiveFieldSignatures() []FieldSignature {
	var sigs []FieldSignature
	for i := range s.Fields {
		if s.Fields[i].Active() {
			sigs = append(sigs, s.Fields[i].Signature)
		}
	}
	return sigs
}

// ActiveFieldIndices returns indices of active fields in order.
func (s *FormStructure) ActiveFieldIndices() []int {
	var idx []int
	for i := range s.Fields {
		if s.Fields[i].Active() {
			idx = append(idx, i)
		}
	}
	return idx
}

// SectionOf groups field indices by their assigned section name.
func (s *FormStructure) SectionOf(i int) string { return s.Fields[i].Section }

// FieldsInSection returns indices of fields sharing the given section.
func (s *FormStructure) FieldsInSection(section string) []int {
	var idx []int
	for i := range s.Fields {
		if s.Fields[i].Section == section {
			idx = append(idx, i)
		}
	}
	return idx
}
