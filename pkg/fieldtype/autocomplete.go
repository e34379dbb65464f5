package fieldtype

// autocompleteTokens maps the type tokens of the HTML autocomplete grammar to
// the engine's taxonomy. Tokens absent from the map invalidate the whole
// attribute for that field.
var autocompleteTokens = map[string]Type{
	"name":               NameFull,
	"given-name":         NameFirst,
	"additional-name":    NameMiddle,
	"family-name":        NameLast,
	"email":              EmailAddress,
	"tel":                PhoneWholeNumber,
	"tel-national":       PhoneWholeNumber,
	"tel-local":          PhoneLocalNumber,
	"tel-country-code":   PhoneCountryCode,
	"tel-area-code":      PhoneCityCode,
	"street-address":     StreetAddress,
	"address-line1":      AddressLine1,
	"address-line2":      AddressLine2,
	"address-level1":     AddressState,
	"address-level2":     AddressCity,
	"postal-code":        AddressZip,
	"country":            AddressCountry,
	"country-name":       AddressCountry,
	"organization":       Company,
	"cc-name":            CardNameFull,
	"cc-given-name":      CardNameFirst,
	"cc-family-name":     CardNameLast,
	"cc-number":          CardNumber,
	"cc-exp":             CardExpDate,
	"cc-exp-month":       CardExpMonth,
	"cc-exp-year":        CardExpYear4,
	"cc-csc":             CardCVC,
	"username":           Username,
	"current-password":   Password,
	"new-password":       NewPassword,
}

// FromAutocompleteToken resolves a single autocomplete type token. The second
// return is false for unrecognized tokens.
func FromAutocompleteToken(token string) (Type, bool) {
	t, ok := autocompleteTokens[token]
	return t, ok
}

// AcceptsContactQualifier reports whether a home/work/mobile qualifier is
// semantically valid ahead of the given type token. The grammar only allows
// contact qualifiers on telephone and email types; anywhere else the
// qualifier invalidates the hint.
func AcceptsContactQualifier(t Type) bool {
	switch GroupOf(t) {
	case GroupPhone, GroupEmail:
		return true
	}
	return false
}
