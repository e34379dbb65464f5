package classify_test

import (
	"testing"

	"github.com/goliatone/go-autofill/pkg/classify"
	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/testsupport"
)

// The checkout fixture runs the whole pipeline over a realistic mixed
// contact-and-payment form.
func TestClassifyCheckoutFixture(t *testing.T) {
	s := testsupport.LoadForm(t, "testdata/checkout.yaml")
	classify.New().Classify(s)

	want := []struct {
		name    string
		ftype   fieldtype.Type
		section string
	}{
		{"fullname", fieldtype.NameFull, "section0-contact"},
		{"email", fieldtype.EmailAddress, "section0-contact"},
		{"phone", fieldtype.PhoneWholeNumber, "section0-contact"},
		{"address1", fieldtype.AddressLine1, "section0-contact"},
		{"city", fieldtype.AddressCity, "section0-contact"},
		{"zip", fieldtype.AddressZip, "section0-contact"},
		{"cardholder", fieldtype.CardNameFull, "section0-payment"},
		{"cardnumber", fieldtype.CardNumber, "section0-payment"},
		{"expiry", fieldtype.CardExpDate, "section0-payment"},
		{"cvc", fieldtype.CardCVC, "section0-payment"},
	}
	if s.FieldCount() != len(want) {
		t.Fatalf("fixture has %d fields, want %d", s.FieldCount(), len(want))
	}
	for i, w := range want {
		f := s.Field(i)
		if f.Name != w.name {
			t.Fatalf("field %d is %q, want %q", i, f.Name, w.name)
		}
		if f.HeuristicType != w.ftype {
			t.Errorf("%s: heuristic type = %v, want %v", w.name, f.HeuristicType, w.ftype)
		}
		if f.Section != w.section {
			t.Errorf("%s: section = %q, want %q", w.name, f.Section, w.section)
		}
	}

	if !s.ShouldBeQueried() {
		t.Fatalf("a ten-field heuristic form is worth crowdsourcing")
	}
}
