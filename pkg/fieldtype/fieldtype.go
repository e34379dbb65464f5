// Package fieldtype defines the semantic field-type taxonomy shared by the
// classifier, the prediction client, and the fill engine. Numeric values are
// part of the wire contract with the prediction service and must never be
// reordered or reused.
package fieldtype

// Type identifies the semantic meaning of a single form field.
type Type int32

const (
	// Unknown means no information is available for the field.
	Unknown Type = 0
	// Empty marks a field the user left blank at submission time.
	Empty Type = 1

	NameFull   Type = 2
	NameFirst  Type = 3
	NameMiddle Type = 4
	NameLast   Type = 5

	EmailAddress Type = 6

	PhoneWholeNumber Type = 7
	PhoneLocalNumber Type = 8
	PhoneCountryCode Type = 9
	PhoneCityCode    Type = 10

	AddressLine1   Type = 11
	AddressLine2   Type = 12
	StreetAddress  Type = 13
	AddressCity    Type = 14
	AddressState   Type = 15
	AddressZip     Type = 16
	AddressCountry Type = 17

	Company Type = 18

	CardNameFull  Type = 19
	CardNameFirst Type = 20
	CardNameLast  Type = 21
	CardNumber    Type = 22
	CardExpMonth  Type = 23
	CardExpYear2  Type = 24
	CardExpYear4  Type = 25
	CardExpDate   Type = 26
	CardCVC       Type = 27

	Username    Type = 28
	Password    Type = 29
	NewPassword Type = 30

	SearchTerm Type = 31
)

var typeNames = map[Type]string{
	Unknown:          "unknown",
	Empty:            "empty",
	NameFull:         "name-full",
	NameFirst:        "name-first",
	NameMiddle:       "name-middle",
	NameLast:         "name-last",
	EmailAddress:     "email",
	PhoneWholeNumber: "phone-whole",
	PhoneLocalNumber: "phone-local",
	PhoneCountryCode: "phone-country-code",
	PhoneCityCode:    "phone-city-code",
	AddressLine1:     "address-line1",
	AddressLine2:     "address-line2",
	StreetAddress:    "street-address",
	AddressCity:      "address-city",
	AddressState:     "address-state",
	AddressZip:       "address-zip",
	AddressCountry:   "address-country",
	Company:          "company",
	CardNameFull:     "cc-name-full",
	CardNameFirst:    "cc-name-first",
	CardNameLast:     "cc-name-last",
	CardNumber:       "cc-number",
	CardExpMonth:     "cc-exp-month",
	CardExpYear2:     "cc-exp-year2",
	CardExpYear4:     "cc-exp-year4",
	CardExpDate:      "cc-exp-date",
	CardCVC:          "cc-csc",
	Username:         "username",
	Password:         "password",
	NewPassword:      "new-password",
	SearchTerm:       "search-term",
}

// String returns a stable lowercase identifier for the type, suitable for
// logging and telemetry payloads.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

var namesToTypes = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, name := range typeNames {
		m[name] = t
	}
	return m
}()

// Parse resolves the identifier produced by String back into a Type. Pattern
// sets reference types by these names.
func Parse(name string) (Type, bool) {
	t, ok := namesToTypes[name]
	return t, ok
}

// Known reports whether the type carries real semantic information, as
// opposed to the Unknown/Empty placeholders.
func (t Type) Known() bool {
	return t != Unknown && t != Empty
}

// Group partitions types into the coarse categories used for section
// assignment and record matching.
type Group int

const (
	GroupUnknown Group = iota
	GroupName
	GroupEmail
	GroupPhone
	GroupAddress
	GroupCompany
	GroupPayment
	GroupCredential
	GroupSearch
)

var groupNames = map[Group]string{
	GroupUnknown:    "unknown",
	GroupName:       "name",
	GroupEmail:      "email",
	GroupPhone:      "phone",
	GroupAddress:    "address",
	GroupCompany:    "company",
	GroupPayment:    "payment",
	GroupCredential: "credential",
	GroupSearch:     "search",
}

func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return "unknown"
}

// GroupOf returns the coarse category for a type.
func GroupOf(t Type) Group {
	switch t {
	case NameFull, NameFirst, NameMiddle, NameLast:
		return GroupName
	case EmailAddress:
		return GroupEmail
	case PhoneWholeNumber, PhoneLocalNumber, PhoneCountryCode, PhoneCityCode:
		return GroupPhone
	case AddressLine1, AddressLine2, StreetAddress, AddressCity, AddressState, AddressZip, AddressCountry:
		return GroupAddress
	case Company:
		return GroupCompany
	case CardNameFull, CardNameFirst, CardNameLast, CardNumber, CardExpMonth, CardExpYear2, CardExpYear4, CardExpDate, CardCVC:
		return GroupPayment
	case Username, Password, NewPassword:
		return GroupCredential
	case SearchTerm:
		return GroupSearch
	default:
		return GroupUnknown
	}
}

// IsPayment reports whether the type belongs to the payment-instrument group.
// Payment and non-payment fields are never coalesced into one fillable
// section.
func IsPayment(t Type) bool {
	return GroupOf(t) == GroupPayment
}

// IsName reports whether the type is a personal- or cardholder-name variant.
// Both flavors participate in the name-vs-cardholder disambiguation pass.
func IsName(t Type) bool {
	switch t {
	case NameFull, NameFirst, NameMiddle, NameLast, CardNameFull, CardNameFirst, CardNameLast:
		return true
	}
	return false
}

// IsPhonePart reports whether the type is one component of a split phone
// widget. Repeats of these inside a section never force a section break
// because phone heuristics are known to be noisy.
func IsPhonePart(t Type) bool {
	return GroupOf(t) == GroupPhone
}

// Fillable reports whether the engine will ever write a value into a field of
// this type. Credential and search fields are observed but never filled by
// this engine.
func Fillable(t Type) bool {
	switch GroupOf(t) {
	case GroupName, GroupEmail, GroupPhone, GroupAddress, GroupCompany, GroupPayment:
		return true
	}
	return false
}
