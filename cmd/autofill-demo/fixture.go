package main

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
	"github.com/goliatone/go-autofill/pkg/record"
)

//go:embed fixtures/checkout.yaml
var defaultFixture []byte

type fixtureField struct {
	Name         string `yaml:"name"`
	Label        string `yaml:"label"`
	Kind         string `yaml:"kind"`
	Autocomplete string `yaml:"autocomplete"`
	// Server is the type name the stub prediction service answers with.
	Server string `yaml:"server"`
}

func (f fixtureField) serverType() int32 {
	if t, ok := fieldtype.Parse(f.Server); ok {
		return int32(t)
	}
	return int32(fieldtype.Unknown)
}

type fixtureForm struct {
	Host   string         `yaml:"host"`
	Name   string         `yaml:"name"`
	Fields []fixtureField `yaml:"fields"`
}

type fixture struct {
	Form     fixtureForm         `yaml:"form"`
	Profiles []record.Profile    `yaml:"profiles"`
	Cards    []record.CreditCard `yaml:"cards"`
}

func loadFixture(path string) (fixture, error) {
	data := defaultFixture
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return fixture{}, fmt.Errorf("read fixture: %w", err)
		}
	}
	var fix fixture
	if err := yaml.Unmarshal(data, &fix); err != nil {
		return fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	if len(fix.Form.Fields) == 0 {
		return fixture{}, fmt.Errorf("fixture has no form fields")
	}
	return fix, nil
}

func (fix fixture) structure() *form.FormStructure {
	fields := make([]form.FormField, 0, len(fix.Form.Fields))
	for _, f := range fix.Form.Fields {
		kind := form.ControlKind(f.Kind)
		if f.Kind == "" {
			kind = form.ControlText
		}
		fields = append(fields, form.FormField{
			Name:         f.Name,
			Label:        f.Label,
			Kind:         kind,
			Autocomplete: f.Autocomplete,
			Focusable:    true,
		})
	}
	meta := form.Metadata{Host: fix.Form.Host, Name: fix.Form.Name, IsFormTag: true}
	return form.Construct(meta, fields)
}
