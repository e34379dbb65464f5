package classify

import (
	"strings"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
)

const sectionPrefix = "section-"

// ParseAuthorHints tokenizes every field's autocomplete attribute against the
// grammar `[section-<name>] [shipping|billing] [home|work|mobile] <type>`,
// read right-to-left. An invalid trailing type token, a contact qualifier on
// a type that cannot carry one, or leftover tokens invalidate the whole
// attribute for that field and the classifier falls through to heuristics.
//
// A valid hint sets the field's declared type and, when a section or mode
// prefix was present, its section name. Structure-level flags are flipped so
// downstream stages know author intent exists.
func ParseAuthorHints(s *form.FormStructure) {
	for i := range s.Fields {
		f := s.Field(i)
		hint, ok := parseHint(f.Autocomplete)
		if !ok || !hint.fieldType.Known() {
			continue
		}
		f.AuthorType = hint.fieldType
		f.AuthorMode = hint.mode
		s.HasAuthorTypes = true
		if hint.section != "" {
			f.Section = hint.section
			s.HasAuthorSections = true
		} else if hint.mode != form.SectionModeNone {
			f.Section = string(hint.mode)
			s.HasAuthorSections = true
		}
	}
}

type authorHint struct {
	fieldType fieldtype.Type
	mode      form.SectionMode
	section   string
}

// parseHint parses one attribute value. The boolean is false when the
// attribute is present but invalid; a missing or on/off attribute parses as
// an empty, valid hint.
func parseHint(value string) (authorHint, bool) {
	folded := labelCaseFolder.String(strings.TrimSpace(value))
	if folded == "" || folded == "on" || folded == "off" {
		return authorHint{}, true
	}

	tokens := strings.Fields(folded)
	idx := len(tokens) - 1

	t, ok := fieldtype.FromAutocompleteToken(tokens[idx])
	if !ok {
		return authorHint{}, false
	}
	hint := authorHint{fieldType: t}
	idx--

	if idx >= 0 {
		switch tokens[idx] {
		case "home", "work", "mobile":
			if !fieldtype.AcceptsContactQualifier(t) {
				return authorHint{}, false
			}
			idx--
		}
	}

	if idx >= 0 {
		switch tokens[idx] {
		case "shipping":
			hint.mode = form.SectionModeShipping
			idx--
		case "billing":
			hint.mode = form.SectionModeBilling
			idx--
		}
	}

	if idx >= 0 && strings.HasPrefix(tokens[idx], sectionPrefix) && len(tokens[idx]) > len(sectionPrefix) {
		hint.section = tokens[idx][len(sectionPrefix):]
		idx--
	}

	if idx >= 0 {
		return authorHint{}, false
	}
	return hint, true
}
