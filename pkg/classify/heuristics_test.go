package classify

import (
	"strings"
	"testing"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
)

func buildForm(t *testing.T, fields ...form.FormField) *form.FormStructure {
	t.Helper()
	meta := form.Metadata{Host: "example.com", Name: "checkout", IsFormTag: true}
	return form.Construct(meta, fields)
}

func TestDefaultPatternSetParses(t *testing.T) {
	ps := DefaultPatternSet()
	if ps.Len() == 0 {
		t.Fatalf("embedded pattern set is empty")
	}
}

func TestLoadPatternSetRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown type", "rules:\n  - type: nonsense\n    pattern: x\n"},
		{"bad regexp", "rules:\n  - type: email\n    pattern: '['\n"},
		{"no rules", "rules: []\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadPatternSet(strings.NewReader(tc.yaml)); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestRunHeuristicsAssignsTypes(t *testing.T) {
	s := buildForm(t,
		form.FormField{Name: "first_name", Label: "First Name", Kind: form.ControlText, Focusable: true},
		form.FormField{Name: "last_name", Label: "Last Name", Kind: form.ControlText, Focusable: true},
		form.FormField{Name: "email", Label: "Email Address", Kind: form.ControlText, Focusable: true},
		form.FormField{Name: "cc", Label: "Card Number", Kind: form.ControlText, Focusable: true},
		form.FormField{Name: "cvc2", Label: "Security Code", Kind: form.ControlText, Focusable: true},
	)
	RunHeuristics(s, DefaultPatternSet())

	want := []fieldtype.Type{
		fieldtype.NameFirst,
		fieldtype.NameLast,
		fieldtype.EmailAddress,
		fieldtype.CardNumber,
		fieldtype.CardCVC,
	}
	for i, w := range want {
		if got := s.Field(i).HeuristicType; got != w {
			t.Fatalf("field %d (%s): got %s, want %s", i, s.Field(i).Name, got, w)
		}
	}
}

func TestRunHeuristicsMatchesParseableName(t *testing.T) {
	s := buildForm(t,
		form.FormField{Name: "ctl00$checkout$billing_zip", Kind: form.ControlText, Focusable: true},
		form.FormField{Name: "ctl00$checkout$billing_city", Kind: form.ControlText, Focusable: true},
		form.FormField{Name: "ctl00$checkout$billing_state", Kind: form.ControlText, Focusable: true},
	)
	RunHeuristics(s, DefaultPatternSet())

	want := []fieldtype.Type{fieldtype.AddressZip, fieldtype.AddressCity, fieldtype.AddressState}
	for i, w := range want {
		if got := s.Field(i).HeuristicType; got != w {
			t.Fatalf("field %d: got %s, want %s", i, got, w)
		}
	}
}

func TestRunHeuristicsSkipsSmallForms(t *testing.T) {
	s := buildForm(t,
		form.FormField{Name: "email", Label: "Email", Kind: form.ControlText, Focusable: true},
	)
	RunHeuristics(s, DefaultPatternSet())
	if s.Field(0).HeuristicType.Known() {
		t.Fatalf("heuristics must not run below the minimum fillable field count")
	}
}

func TestRunHeuristicsDoesNotOverwriteAuthorType(t *testing.T) {
	s := buildForm(t,
		form.FormField{Name: "email", Label: "Email", Kind: form.ControlText, Focusable: true, Autocomplete: "tel"},
		form.FormField{Name: "a", Label: "City", Kind: form.ControlText, Focusable: true},
		form.FormField{Name: "b", Label: "State", Kind: form.ControlText, Focusable: true},
	)
	ParseAuthorHints(s)
	RunHeuristics(s, DefaultPatternSet())

	if s.Field(0).HeuristicType.Known() {
		t.Fatalf("author-typed field should skip heuristics")
	}
	if got := s.Field(0).OverallType(); got != fieldtype.PhoneWholeNumber {
		t.Fatalf("author type must win: got %s", got)
	}
}

func TestRunHeuristicsStripsLabelMarkup(t *testing.T) {
	s := buildForm(t,
		form.FormField{Name: "f1", Label: "<b>Card</b> <span>Number</span>", Kind: form.ControlText, Focusable: true},
		form.FormField{Name: "f2", Label: "x", Kind: form.ControlText, Focusable: true},
		form.FormField{Name: "f3", Label: "y", Kind: form.ControlText, Focusable: true},
	)
	RunHeuristics(s, DefaultPatternSet())
	if got := s.Field(0).HeuristicType; got != fieldtype.CardNumber {
		t.Fatalf("markup in label broke matching: got %s", got)
	}
}

func TestKindFallback(t *testing.T) {
	s := buildForm(t,
		form.FormField{Name: "a1", Kind: form.ControlPassword, Focusable: true},
		form.FormField{Name: "a2", Kind: form.ControlEmail, Focusable: true},
		form.FormField{Name: "a3", Kind: form.ControlTelephone, Focusable: true},
	)
	RunHeuristics(s, DefaultPatternSet())

	want := []fieldtype.Type{fieldtype.Password, fieldtype.EmailAddress, fieldtype.PhoneWholeNumber}
	for i, w := range want {
		if got := s.Field(i).HeuristicType; got != w {
			t.Fatalf("field %d: got %s, want %s", i, got, w)
		}
	}
}
