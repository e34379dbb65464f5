// Package record models the user's stored personal data as consumed by the
// fill engine: contact profiles and payment cards, the narrow store
// interface that owns their persistence, and the value matching used to
// compute submission-time possible types.
package record

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
)

// Kind discriminates the two record variants. Code consuming records should
// switch exhaustively on it.
type Kind int

const (
	KindProfile Kind = iota
	KindCreditCard
)

// Record is the two-variant sum over stored personal data. Only Profile and
// CreditCard implement it.
type Record interface {
	RecordID() string
	RecordKind() Kind
}

// Profile is a stored contact/address record.
type Profile struct {
	ID string

	NameFirst  string
	NameMiddle string
	NameLast   string

	Email   string
	Phone   string // whole number, digits may be formatted
	Company string

	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Zip          string
	Country      string
}

func (p Profile) RecordID() string { return p.ID }
func (p Profile) RecordKind() Kind { return KindProfile }

// FullName joins the name components the way they would be typed.
func (p Profile) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.NameFirst, p.NameMiddle, p.NameLast} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// StreetAddress joins the address lines into the single-field form.
func (p Profile) StreetAddress() string {
	if p.AddressLine2 == "" {
		return p.AddressLine1
	}
	return p.AddressLine1 + " " + p.AddressLine2
}

// ValueFor returns the profile's value for a contact field type, or ""
// when the type is not a contact type or the profile has no value for it.
func (p Profile) ValueFor(t fieldtype.Type) string {
	switch t {
	case fieldtype.NameFull:
		return p.FullName()
	case fieldtype.NameFirst:
		return p.NameFirst
	case fieldtype.NameMiddle:
		return p.NameMiddle
	case fieldtype.NameLast:
		return p.NameLast
	case fieldtype.EmailAddress:
		return p.Email
	case fieldtype.PhoneWholeNumber:
		return p.Phone
	case fieldtype.PhoneLocalNumber:
		return phoneLocal(p.Phone)
	case fieldtype.PhoneCityCode:
		return phoneCityCode(p.Phone)
	case fieldtype.Company:
		return p.Company
	case fieldtype.AddressLine1:
		return p.AddressLine1
	case fieldtype.AddressLine2:
		return p.AddressLine2
	case fieldtype.StreetAddress:
		return p.StreetAddress()
	case fieldtype.AddressCity:
		return p.City
	case fieldtype.AddressState:
		return p.State
	case fieldtype.AddressZip:
		return p.Zip
	case fieldtype.AddressCountry:
		return p.Country
	}
	return ""
}

// CreditCard is a stored payment card. Number holds the full PAN only after
// an unmask exchange; otherwise LastFour is all that is known locally.
type CreditCard struct {
	ID string

	NameOnCard string
	Number     string
	LastFour   string
	ExpMonth   int
	ExpYear    int // four digits

	// Masked marks a server-side card whose PAN requires an unmask
	// exchange before use. A local card is never masked.
	Masked bool
}

func (c CreditCard) RecordID() string { return c.ID }
func (c CreditCard) RecordKind() Kind { return KindCreditCard }

// RequiresUnmask reports whether filling this card's number needs the
// verification round trip first.
func (c CreditCard) RequiresUnmask() bool {
	return c.Masked && c.Number == ""
}

// IsExpired reports whether the card's expiry has passed.
func (c CreditCard) IsExpired(now time.Time) bool {
	if c.ExpYear == 0 {
		return false
	}
	if c.ExpYear != now.Year() {
		return c.ExpYear < now.Year()
	}
	return c.ExpMonth < int(now.Month())
}

// ValueFor returns the card's value for a payment field type, or "" when
// unavailable (a masked number, an unknown type).
func (c CreditCard) ValueFor(t fieldtype.Type) string {
	switch t {
	case fieldtype.CardNameFull:
		return c.NameOnCard
	case fieldtype.CardNameFirst:
		first, _ := splitName(c.NameOnCard)
		return first
	case fieldtype.CardNameLast:
		_, last := splitName(c.NameOnCard)
		return last
	case fieldtype.CardNumber:
		return c.Number
	case fieldtype.CardExpMonth:
		if c.ExpMonth == 0 {
			return ""
		}
		return fmt.Sprintf("%02d", c.ExpMonth)
	case fieldtype.CardExpYear2:
		if c.ExpYear == 0 {
			return ""
		}
		return fmt.Sprintf("%02d", c.ExpYear%100)
	case fieldtype.CardExpYear4:
		if c.ExpYear == 0 {
			return ""
		}
		return fmt.Sprintf("%04d", c.ExpYear)
	case fieldtype.CardExpDate:
		if c.ExpMonth == 0 || c.ExpYear == 0 {
			return ""
		}
		return fmt.Sprintf("%02d/%02d", c.ExpMonth, c.ExpYear%100)
	}
	return ""
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[len(parts)-1]
}

// Store is the external collaborator that owns persistence of the user's
// records. The engine only reads candidates and posts usage notifications;
// it never persists anything itself.
type Store interface {
	Profiles(ctx context.Context) ([]Profile, error)
	CreditCards(ctx context.Context) ([]CreditCard, error)

	// RecordUsed notes that a record filled a form.
	RecordUsed(id string)
	// RecordUpdated hands back an updated record, e.g. a card whose full
	// number was just unmasked so a second use needs no re-verification.
	RecordUpdated(r Record)
}
