package classify

import (
	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
)

// RunHeuristics assigns each field a best heuristic type from label/name
// pattern matching. It only executes on genuine form contexts with at least
// the minimum fillable field count; below that, pattern matching produces
// too many false positives on search boxes and the like. Author-declared
// types are never overwritten.
func RunHeuristics(s *form.FormStructure, patterns *PatternSet) {
	if s.Malformed || !s.Metadata.IsFormTag {
		return
	}
	if s.ActiveCount() < form.MinFillableFields && !s.AllFieldsArePasswords() {
		return
	}

	for i := range s.Fields {
		f := s.Field(i)
		if f.AuthorType.Known() {
			continue
		}
		if !f.Kind.IsTextual() && f.Kind != form.ControlSelect && f.Kind != form.ControlMonth {
			continue
		}

		t := patterns.Match(normalizeLabel(f.Label), normalizeName(f.ParseableName), f.Kind)
		if !t.Known() {
			t = kindFallback(f.Kind)
		}
		f.HeuristicType = t
	}
}

// kindFallback maps self-describing control kinds to a type when no pattern
// matched.
func kindFallback(kind form.ControlKind) fieldtype.Type {
	switch kind {
	case form.ControlPassword:
		return fieldtype.Password
	case form.ControlEmail:
		return fieldtype.EmailAddress
	case form.ControlTelephone:
		return fieldtype.PhoneWholeNumber
	case form.ControlSearch:
		return fieldtype.SearchTerm
	case form.ControlMonth:
		return fieldtype.CardExpDate
	default:
		return fieldtype.Unknown
	}
}
