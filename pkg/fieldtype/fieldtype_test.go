package fieldtype

import "testing"

func TestGroupOfCoversEveryNamedType(t *testing.T) {
	for typ := range typeNames {
		if !typ.Known() {
			continue
		}
		if GroupOf(typ) == GroupUnknown {
			t.Fatalf("type %s has no group", typ)
		}
	}
}

func TestIsPaymentPartition(t *testing.T) {
	payment := []Type{CardNameFull, CardNameFirst, CardNameLast, CardNumber, CardExpMonth, CardExpYear2, CardExpYear4, CardExpDate, CardCVC}
	for _, typ := range payment {
		if !IsPayment(typ) {
			t.Fatalf("expected %s to be a payment type", typ)
		}
	}
	other := []Type{NameFull, EmailAddress, PhoneWholeNumber, AddressLine1, Company, Username}
	for _, typ := range other {
		if IsPayment(typ) {
			t.Fatalf("expected %s to be non-payment", typ)
		}
	}
}

func TestFromAutocompleteToken(t *testing.T) {
	cases := []struct {
		token string
		want  Type
		ok    bool
	}{
		{"given-name", NameFirst, true},
		{"cc-number", CardNumber, true},
		{"tel-local", PhoneLocalNumber, true},
		{"postal-code", AddressZip, true},
		{"banana", Unknown, false},
		{"", Unknown, false},
	}
	for _, tc := range cases {
		got, ok := FromAutocompleteToken(tc.token)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("FromAutocompleteToken(%q) = %s, %v; want %s, %v", tc.token, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAcceptsContactQualifier(t *testing.T) {
	if !AcceptsContactQualifier(PhoneWholeNumber) {
		t.Fatalf("phone types should accept home/work/mobile")
	}
	if !AcceptsContactQualifier(EmailAddress) {
		t.Fatalf("email should accept home/work/mobile")
	}
	if AcceptsContactQualifier(AddressLine1) {
		t.Fatalf("address types should reject contact qualifiers")
	}
	if AcceptsContactQualifier(CardNumber) {
		t.Fatalf("payment types should reject contact qualifiers")
	}
}
