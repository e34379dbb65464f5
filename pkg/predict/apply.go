package predict

import (
	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
)

// ApplyToForms writes crowdsourced predictions onto the queried structures.
// Predictions align positionally to the active fields of the forms in
// request order; a response that ended early leaves trailing fields unset.
func ApplyToForms(forms []*form.FormStructure, predictions []Prediction) {
	p := 0
	for _, s := range forms {
		for _, i := range s.ActiveFieldIndices() {
			if p >= len(predictions) {
				return
			}
			s.Field(i).ServerType = predictions[p].Type
			p++
		}
		rationalize(s)
	}
}

// rationalize repairs obviously inconsistent server predictions on one
// structure. The service aggregates votes from many sites, so a form can
// come back with, say, two expiry-month fields; only the first of a
// duplicated payment-component prediction is kept.
func rationalize(s *form.FormStructure) {
	seen := make(map[fieldtype.Type]bool)
	for i := range s.Fields {
		t := s.Fields[i].ServerType
		if !t.Known() || !fieldtype.IsPayment(t) {
			continue
		}
		switch t {
		case fieldtype.CardNumber, fieldtype.CardExpMonth, fieldtype.CardExpYear2,
			fieldtype.CardExpYear4, fieldtype.CardExpDate, fieldtype.CardCVC:
			if seen[t] {
				s.Fields[i].ServerType = fieldtype.Unknown
				continue
			}
			seen[t] = true
		}
	}
}
