package form

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
)

func textField(name string) FormField {
	return FormField{Name: name, Kind: ControlText, Focusable: true}
}

func TestConstructStripsUncheckedCheckables(t *testing.T) {
	meta := Metadata{Host: "example.com", Name: "checkout", IsFormTag: true}
	fields := []FormField{
		textField("name"),
		{Name: "newsletter", Kind: ControlCheckbox, Focusable: true, Checked: false},
		textField("email"),
	}
	withBox := Construct(meta, fields)
	withoutBox := Construct(meta, []FormField{textField("name"), textField("email")})

	if withBox.Signature() != withoutBox.Signature() {
		t.Fatalf("unchecked checkable leaked into the signature")
	}
	if withBox.FieldCount() != 3 {
		t.Fatalf("stripped field missing from field list: got %d fields", withBox.FieldCount())
	}

	checked := fields
	checked[1].Checked = true
	if Construct(meta, checked).Signature() == withoutBox.Signature() {
		t.Fatalf("checked checkable should participate in the signature")
	}
}

func TestConstructDetectsCommonPrefix(t *testing.T) {
	meta := Metadata{Host: "example.com", Name: "f", IsFormTag: true}
	s := Construct(meta, []FormField{
		textField("ctl00$billing$firstname"),
		textField("ctl00$billing$lastname"),
		textField("ctl00$billing$email"),
	})

	want := []string{"firstname", "lastname", "email"}
	var got []string
	for i := range s.Fields {
		got = append(got, s.Fields[i].ParseableName)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parseable names mismatch (-want +got):\n%s", diff)
	}
	for i := range s.Fields {
		if s.Fields[i].Name == s.Fields[i].ParseableName {
			t.Fatalf("original name must be preserved separately from parseable name")
		}
	}
}

func TestConstructSkipsShortOrSparsePrefix(t *testing.T) {
	meta := Metadata{Host: "example.com", Name: "f", IsFormTag: true}

	s := Construct(meta, []FormField{textField("fx_name"), textField("fx_email"), textField("fx_phone")})
	for i := range s.Fields {
		if s.Fields[i].ParseableName != s.Fields[i].Name {
			t.Fatalf("short prefix %q should not be stripped", "fx_")
		}
	}

	s = Construct(meta, []FormField{textField("verylongprefix_name"), textField("verylongprefix_email")})
	for i := range s.Fields {
		if s.Fields[i].ParseableName != s.Fields[i].Name {
			t.Fatalf("two fields are below the prefix detection threshold")
		}
	}
}

func TestMalformedForms(t *testing.T) {
	meta := Metadata{Host: "example.com", Name: "f", IsFormTag: true}
	if s := Construct(meta, nil); !s.Malformed {
		t.Fatalf("zero-field form should be malformed")
	}

	big := make([]FormField, MaxParseableFields+1)
	for i := range big {
		big[i] = textField("field")
	}
	s := Construct(meta, big)
	if !s.Malformed {
		t.Fatalf("oversized form should be malformed")
	}
	if s.ShouldBeQueried() {
		t.Fatalf("malformed form must never be queried")
	}
}

func TestEligibilityPredicates(t *testing.T) {
	meta := Metadata{Host: "example.com", Name: "f", IsFormTag: true}

	t.Run("small form not considered", func(t *testing.T) {
		s := Construct(meta, []FormField{textField("q")})
		if s.ShouldBeParsed() {
			t.Fatalf("single-field form should not be considered")
		}
	})

	t.Run("author hint rescues small form", func(t *testing.T) {
		s := Construct(meta, []FormField{textField("q")})
		s.HasAuthorTypes = true
		if !s.ShouldBeParsed() {
			t.Fatalf("author hint should make the form eligible")
		}
	})

	t.Run("all-password form relaxed bound", func(t *testing.T) {
		s := Construct(meta, []FormField{{Name: "pw", Kind: ControlPassword, Focusable: true}})
		if !s.ShouldBeParsed() {
			t.Fatalf("password-only form should be considered")
		}
		if !s.ShouldBeQueried() {
			t.Fatalf("password form should be queried")
		}
	})

	t.Run("author-typed password-free form not crowdsourced", func(t *testing.T) {
		s := Construct(meta, []FormField{textField("a"), textField("b"), textField("c")})
		s.HasAuthorTypes = true
		if !s.ShouldBeParsed() {
			t.Fatalf("form should still be considered")
		}
		if s.ShouldBeQueried() {
			t.Fatalf("fully author-typed form without passwords must not be crowdsourced")
		}
	})

	t.Run("search target excluded", func(t *testing.T) {
		searchMeta := meta
		searchMeta.TargetURL = "https://example.com/search"
		s := Construct(searchMeta, []FormField{textField("a"), textField("b"), textField("c")})
		if s.ShouldBeParsed() {
			t.Fatalf("generic search form should be excluded")
		}
	})
}

func TestOverallTypePriority(t *testing.T) {
	f := AutofillField{HeuristicType: fieldtype.NameFirst}
	if got := f.OverallType(); got != fieldtype.NameFirst {
		t.Fatalf("heuristic floor: got %s", got)
	}
	f.ServerType = fieldtype.EmailAddress
	if got := f.OverallType(); got != fieldtype.EmailAddress {
		t.Fatalf("server should beat heuristic: got %s", got)
	}
	f.AuthorType = fieldtype.PhoneWholeNumber
	if got := f.OverallType(); got != fieldtype.PhoneWholeNumber {
		t.Fatalf("author should beat server: got %s", got)
	}
}

func TestRetrieveCachedMetadata(t *testing.T) {
	meta := Metadata{Host: "example.com", Name: "f", IsFormTag: true}
	cached := Construct(meta, []FormField{textField("email"), textField("name")})
	cached.Field(0).ServerType = fieldtype.EmailAddress
	cached.Field(1).IsAutofilled = true

	fresh := Construct(meta, []FormField{textField("email"), textField("name"), textField("phone")})
	fresh.RetrieveCachedMetadata(cached)

	if got := fresh.Field(0).ServerType; got != fieldtype.EmailAddress {
		t.Fatalf("server type not copied forward: got %s", got)
	}
	if !fresh.Field(1).PreviouslyAutofilled {
		t.Fatalf("autofill history not copied forward")
	}
	if fresh.Field(2).ServerType.Known() {
		t.Fatalf("new field should keep its defaults")
	}
}
