package classify

import (
	"fmt"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
)

const (
	paymentSectionSuffix = "-payment"
	contactSectionSuffix = "-contact"
)

// IdentifySections partitions fields into logical sections with a single
// forward scan: a new section starts whenever a field's resolved type was
// already seen in the current section, except that phone-part repeats never
// force a split (phone heuristics are noisy), immediately-adjacent same-type
// fields stay together (confirm-email pairs, split locale widgets), and
// non-focusable fields are ignored entirely.
//
// Afterwards every field's section gets a payment or contact suffix so
// payment-instrument fields are never coalesced with contact fields.
func IdentifySections(s *form.FormStructure) {
	if !s.HasAuthorSections {
		scanSections(s)
	}
	applyGroupSuffix(s)
}

func scanSections(s *form.FormStructure) {
	section := 0
	seen := make(map[fieldtype.Type]bool)
	prevType := fieldtype.Unknown
	prevIndex := -1

	for i := range s.Fields {
		f := s.Field(i)
		if !f.Focusable {
			f.Section = sectionName(section)
			continue
		}

		t := f.OverallType()
		if t.Known() {
			adjacentRepeat := prevIndex == i-1 && prevType == t
			if seen[t] && !fieldtype.IsPhonePart(t) && !adjacentRepeat {
				section++
				seen = make(map[fieldtype.Type]bool)
			}
			seen[t] = true
			prevType = t
		} else {
			prevType = fieldtype.Unknown
		}
		prevIndex = i
		f.Section = sectionName(section)
	}
}

func sectionName(n int) string {
	return fmt.Sprintf("section%d", n)
}

func applyGroupSuffix(s *form.FormStructure) {
	for i := range s.Fields {
		f := s.Field(i)
		if f.Section == "" {
			f.Section = sectionName(0)
		}
		if fieldtype.IsPayment(f.OverallType()) {
			f.Section += paymentSectionSuffix
		} else {
			f.Section += contactSectionSuffix
		}
	}
}
