package record

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
)

var valueFolder = cases.Fold()

// contactTypes and paymentTypes enumerate every type a record can produce.
var contactTypes = []fieldtype.Type{
	fieldtype.NameFull, fieldtype.NameFirst, fieldtype.NameMiddle, fieldtype.NameLast,
	fieldtype.EmailAddress,
	fieldtype.PhoneWholeNumber, fieldtype.PhoneLocalNumber, fieldtype.PhoneCityCode,
	fieldtype.Company,
	fieldtype.AddressLine1, fieldtype.AddressLine2, fieldtype.StreetAddress,
	fieldtype.AddressCity, fieldtype.AddressState, fieldtype.AddressZip, fieldtype.AddressCountry,
}

var paymentTypes = []fieldtype.Type{
	fieldtype.CardNameFull, fieldtype.CardNameFirst, fieldtype.CardNameLast,
	fieldtype.CardNumber,
	fieldtype.CardExpMonth, fieldtype.CardExpYear2, fieldtype.CardExpYear4, fieldtype.CardExpDate,
}

// PossibleTypes computes the stored-record field types whose value matches
// what the user actually typed. The result feeds the crowdsourcing upload
// only; it is never used for filling. An empty value yields the Empty
// placeholder.
func PossibleTypes(value string, profiles []Profile, cards []CreditCard) []fieldtype.Type {
	if strings.TrimSpace(value) == "" {
		return []fieldtype.Type{fieldtype.Empty}
	}

	seen := make(map[fieldtype.Type]bool)
	var out []fieldtype.Type
	add := func(t fieldtype.Type) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	for _, p := range profiles {
		for _, t := range contactTypes {
			if matches(value, p.ValueFor(t), t) {
				add(t)
			}
		}
	}
	for _, c := range cards {
		for _, t := range paymentTypes {
			if matches(value, c.ValueFor(t), t) {
				add(t)
			}
		}
		// A masked card can still vouch for its number via the last four.
		if c.Number == "" && c.LastFour != "" && digitsOnly(value) != "" &&
			strings.HasSuffix(digitsOnly(value), c.LastFour) && len(digitsOnly(value)) >= 12 {
			add(fieldtype.CardNumber)
		}
	}
	return out
}

// AvailableTypes enumerates every type the given records could produce,
// the caller-side set the upload invariant is checked against.
func AvailableTypes(profiles []Profile, cards []CreditCard) []fieldtype.Type {
	seen := make(map[fieldtype.Type]bool)
	var out []fieldtype.Type
	add := func(t fieldtype.Type) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, p := range profiles {
		for _, t := range contactTypes {
			if p.ValueFor(t) != "" {
				add(t)
			}
		}
	}
	for _, c := range cards {
		for _, t := range paymentTypes {
			if c.ValueFor(t) != "" {
				add(t)
			}
		}
		if c.LastFour != "" {
			add(fieldtype.CardNumber)
		}
	}
	add(fieldtype.Empty)
	return out
}

// matches compares a typed value against a stored value under the
// normalization appropriate for the type's group.
func matches(typed, stored string, t fieldtype.Type) bool {
	if stored == "" {
		return false
	}
	switch fieldtype.GroupOf(t) {
	case fieldtype.GroupPhone:
		return digitsOnly(typed) != "" && digitsOnly(typed) == digitsOnly(stored)
	case fieldtype.GroupPayment:
		switch t {
		case fieldtype.CardNumber:
			return digitsOnly(typed) != "" && digitsOnly(typed) == digitsOnly(stored)
		case fieldtype.CardExpMonth, fieldtype.CardExpYear2, fieldtype.CardExpYear4:
			return trimLeadingZeros(digitsOnly(typed)) == trimLeadingZeros(digitsOnly(stored)) && digitsOnly(typed) != ""
		case fieldtype.CardExpDate:
			return digitsOnly(typed) != "" && digitsOnly(typed) == digitsOnly(stored)
		default:
			return fold(typed) == fold(stored)
		}
	default:
		return fold(typed) == fold(stored)
	}
}

func fold(s string) string {
	return valueFolder.String(strings.Join(strings.Fields(s), " "))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func trimLeadingZeros(s string) string {
	return strings.TrimLeft(s, "0")
}

// phoneLocal derives the local (subscriber) part of a whole number: the
// trailing seven digits.
func phoneLocal(phone string) string {
	d := digitsOnly(phone)
	if len(d) < 7 {
		return ""
	}
	return d[len(d)-7:]
}

// phoneCityCode derives the area code: the three digits ahead of the local
// part, when present.
func phoneCityCode(phone string) string {
	d := digitsOnly(phone)
	if len(d) < 10 {
		return ""
	}
	return d[len(d)-10 : len(d)-7]
}
