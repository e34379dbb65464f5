// Package testsupport holds shared fixture helpers for the engine's tests:
// compact form construction and YAML form fixtures.
package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-autofill/pkg/form"
)

// TextField returns a focusable text input snapshot.
func TextField(name string) form.FormField {
	return form.FormField{Name: name, Kind: form.ControlText, Focusable: true}
}

// HintedField returns a text input carrying an autocomplete attribute.
func HintedField(name, autocomplete string) form.FormField {
	f := TextField(name)
	f.Autocomplete = autocomplete
	return f
}

// BuildForm constructs a structure for a genuine form tag on the given host.
func BuildForm(t *testing.T, host, name string, fields ...form.FormField) *form.FormStructure {
	t.Helper()
	meta := form.Metadata{Host: host, Name: name, IsFormTag: true}
	return form.Construct(meta, fields)
}

// formFixture mirrors the YAML shape used across testdata and the demo
// binary's fixtures.
type formFixture struct {
	Host   string `yaml:"host"`
	Name   string `yaml:"name"`
	Fields []struct {
		Name         string `yaml:"name"`
		Label        string `yaml:"label"`
		Kind         string `yaml:"kind"`
		Autocomplete string `yaml:"autocomplete"`
		Value        string `yaml:"value"`
	} `yaml:"fields"`
}

// LoadForm reads a YAML form fixture and constructs its structure. Testing
// helpers fail fatally to keep contract tests concise.
func LoadForm(t *testing.T, path string) *form.FormStructure {
	t.Helper()
	s, err := LoadFormFromPath(path)
	if err != nil {
		t.Fatalf("load form fixture: %v", err)
	}
	return s
}

// LoadFormFromPath returns a structure without requiring testing.T, so
// callers can wire fixtures in setup functions.
func LoadFormFromPath(path string) (*form.FormStructure, error) {
	if path == "" {
		return nil, errors.New("testsupport: form fixture path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: read fixture: %w", err)
	}

	var fix formFixture
	if err := yaml.Unmarshal(data, &fix); err != nil {
		return nil, fmt.Errorf("testsupport: parse fixture: %w", err)
	}
	if len(fix.Fields) == 0 {
		return nil, errors.New("testsupport: fixture has no fields")
	}

	fields := make([]form.FormField, 0, len(fix.Fields))
	for _, f := range fix.Fields {
		kind := form.ControlKind(f.Kind)
		if f.Kind == "" {
			kind = form.ControlText
		}
		fields = append(fields, form.FormField{
			Name:         f.Name,
			Label:        f.Label,
			Kind:         kind,
			Autocomplete: f.Autocomplete,
			Value:        f.Value,
			Focusable:    true,
		})
	}
	meta := form.Metadata{Host: fix.Host, Name: fix.Name, IsFormTag: true}
	return form.Construct(meta, fields), nil
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
